package domain

import "errors"

var (
	// ErrCustomerNotFound возвращается, если клиент с таким кодом не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается, если товар с такой ссылкой не найден.
	ErrProductNotFound = errors.New("product not found")

	// ErrOrderAlreadyShipped — бизнес-ошибка: заказ уже отправлен, его нельзя менять.
	ErrOrderAlreadyShipped = errors.New("order already shipped")
	// ErrQuantityNotPositive — бизнес-ошибка: количество в строке должно быть положительным.
	ErrQuantityNotPositive = errors.New("quantity must be positive")
	// ErrInsufficientStock — бизнес-ошибка: на складе недостаточно товара для строки.
	ErrInsufficientStock = errors.New("insufficient stock for requested quantity")
	// ErrProductOutOfStock — защитный инвариант при отправке: в заказе оказалась
	// строка с нулевым количеством, чего AddLine не допускает.
	ErrProductOutOfStock = errors.New("out of stock")

	// ErrVersionConflict сигнализирует о конфликте версий при сохранении (optimistic locking).
	ErrVersionConflict = errors.New("version conflict")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к классу NotFound:
// ссылка на несуществующего клиента, заказ или товар.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound)
}

// IsInvalidState проверяет, относится ли ошибка к классу InvalidState:
// нарушение бизнес-правила, которое не ретраится автоматически.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrOrderAlreadyShipped) ||
		errors.Is(err, ErrQuantityNotPositive) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrProductOutOfStock)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
