package orders

import (
	"encoding/json"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
	"github.com/vladislavdragonenkov/comptoirs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/comptoirs/internal/metrics"
)

// eventEmitter развозит доменные события по outbox, timeline и Kafka.
// Ошибки доставки логируются и не прерывают бизнес-операцию.
type eventEmitter struct {
	outbox        domain.OutboxRepository
	timeline      domain.TimelineRepository
	kafkaProducer *kafka.Producer // опциональный Kafka producer для event-driven архитектуры
	logger        *log.Entry
	metrics       *metrics.OrderMetrics
}

func (e *eventEmitter) emit(order *domain.Order, eventType kafka.EventType, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_number"] = order.Number
	payload["customer_code"] = order.CustomerCode
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"order_number": order.Number,
			"event":        eventType,
		}).Error("marshal event failed")
		return
	}

	if e.outbox != nil {
		msg := domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   strconv.FormatInt(order.Number, 10),
			EventType:     string(eventType),
			Payload:       data,
		}
		if _, err := e.outbox.Enqueue(msg); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_number": order.Number,
				"event":        eventType,
			}).Error("enqueue event failed")
		} else if e.metrics != nil {
			e.metrics.RecordOutboxEvent()
		}
	}

	if e.timeline != nil {
		var reason string
		if r, ok := payload["reason"].(string); ok {
			reason = r
		}
		event := domain.TimelineEvent{
			OrderNumber: order.Number,
			Type:        string(eventType),
			Reason:      reason,
			Occurred:    time.Now().UTC(),
		}
		if err := e.timeline.Append(event); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_number": order.Number,
				"event":        eventType,
			}).Warn("append timeline event failed")
		} else if e.metrics != nil {
			e.metrics.RecordTimelineEvent()
		}
	}

	e.publishKafkaEvent(order, eventType, payload)
}

// publishKafkaEvent публикует событие заказа в Kafka (если producer настроен)
func (e *eventEmitter) publishKafkaEvent(order *domain.Order, eventType kafka.EventType, metadata map[string]interface{}) {
	if e.kafkaProducer == nil {
		return // Kafka не настроен, пропускаем
	}

	event := kafka.NewOrderEvent(eventType, order.Number, order.CustomerCode, metadata)
	key := strconv.FormatInt(order.Number, 10)
	if err := e.kafkaProducer.PublishEvent(kafka.TopicOrderEvents, key, event); err != nil {
		// Логируем ошибку, но не прерываем операцию - Kafka опциональный
		e.logger.WithError(err).WithFields(log.Fields{
			"event_type":   eventType,
			"order_number": order.Number,
		}).Warn("failed to publish order event to kafka")
	}
}
