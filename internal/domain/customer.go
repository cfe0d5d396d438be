package domain

// Customer описывает клиента, от имени которого оформляются заказы.
// Запись клиента принадлежит внешней системе: ядро только читает её.
type Customer struct {
	// Code — уникальный код клиента (например, "ALFKI").
	Code string
	// Company — название компании клиента.
	Company string
	// Address — текущий адрес клиента; копируется в адрес доставки нового заказа.
	Address string
}
