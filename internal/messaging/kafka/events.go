package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderCreated EventType = "order.created"
	EventTypeLineAdded    EventType = "order.line_added"
	EventTypeOrderShipped EventType = "order.shipped"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "comptoirs.order.events"
	TopicDeadLetterQueue = "comptoirs.dlq" // Dead Letter Queue для failed messages
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType    EventType              `json:"event_type"`
	OrderNumber  int64                  `json:"order_number"`
	CustomerCode string                 `json:"customer_code"`
	Timestamp    time.Time              `json:"timestamp"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderNumber int64, customerCode string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:    eventType,
		OrderNumber:  orderNumber,
		CustomerCode: customerCode,
		Timestamp:    time.Now(),
		Metadata:     metadata,
	}
}
