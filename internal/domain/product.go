package domain

// Product описывает товар на общем складе.
type Product struct {
	// Ref — уникальная числовая ссылка товара.
	Ref int64
	// Name — наименование товара.
	Name string
	// UnitsInStock — доступный остаток на складе; уменьшается при добавлении
	// строк заказа и при отправке.
	UnitsInStock int32
	// UnitsOnOrder — накопленное количество, заказанное по всем открытым строкам.
	UnitsOnOrder int32
	// Version используется для optimistic locking при конкурирующих изменениях остатка.
	Version int64
}
