package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine представляет одну строку заказа: товар и его количество.
// Строка неизменяема после создания.
type OrderLine struct {
	// ID присваивается при вставке строки и нужен для однозначной идентификации.
	ID string
	// ProductRef — ссылка на заказанный товар.
	ProductRef int64
	// Quantity — положительное количество, зафиксированное при создании строки.
	Quantity int32
	// CreatedAt фиксирует момент добавления строки в заказ.
	CreatedAt time.Time
}

// Order агрегирует заказ клиента и его строки.
type Order struct {
	// Number — сгенерированный числовой ключ заказа; присваивается хранилищем.
	Number int64
	// CustomerCode — код клиента; устанавливается при создании и не меняется.
	CustomerCode string
	// DeliveryAddress инициализируется адресом клиента, но позже может отличаться.
	DeliveryAddress string
	// Discount — ставка скидки в [0,1]; вычисляется один раз при создании.
	Discount decimal.Decimal
	// ShippedAt — дата отправки; nil, пока заказ не отправлен.
	// Устанавливается не более одного раза и никогда не сбрасывается.
	ShippedAt *time.Time
	// Lines — строки заказа в порядке добавления.
	Lines []OrderLine
	// Version используется для optimistic locking.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Shipped сообщает, отправлен ли заказ. Дата отправки — единственный
// маркер состояния: Open (nil) → Shipped (не nil), переход необратим.
func (o *Order) Shipped() bool {
	return o.ShippedAt != nil
}

// ArticleCount возвращает суммарное количество артикулов по строкам заказа.
func (o *Order) ArticleCount() int64 {
	var total int64
	for _, line := range o.Lines {
		total += int64(line.Quantity)
	}
	return total
}
