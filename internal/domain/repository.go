package domain

// CustomerRepository описывает требования к хранилищу клиентов.
// Ядро только читает клиентов; владеет ими внешняя система.
type CustomerRepository interface {
	// Get возвращает клиента по коду или ErrCustomerNotFound, если его нет.
	Get(code string) (Customer, error)
	// OrderedArticleCount возвращает суммарное количество артикулов,
	// заказанных клиентом по всем его заказам (агрегирующий запрос).
	OrderedArticleCount(code string) (int64, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ и присваивает сгенерированный номер.
	Create(order Order) (Order, error)
	// Get возвращает заказ по номеру или ErrOrderNotFound, если его нет.
	Get(number int64) (Order, error)
	// ListByCustomer возвращает заказы клиента с опциональным ограничением на количество.
	ListByCustomer(code string, limit int) ([]Order, error)
	// Save применяет обновления к заказу и его строкам с учётом optimistic locking.
	Save(order Order) error
}

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	// Get возвращает товар по ссылке или ErrProductNotFound, если его нет.
	Get(ref int64) (Product, error)
	// Save применяет арифметические обновления остатков с учётом optimistic locking.
	Save(product Product) error
}
