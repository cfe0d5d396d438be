package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
	"github.com/vladislavdragonenkov/comptoirs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/comptoirs/internal/metrics"
)

// OrderLineService добавляет строки в открытые заказы с резервированием товара.
type OrderLineService struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
	emitter  *eventEmitter
}

// NewOrderLineService создаёт рабочий экземпляр сервиса.
func NewOrderLineService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *OrderLineService {
	return newOrderLineService(orders, products, outbox, timeline, nil, logger, metrics.NewOrderMetrics())
}

// NewOrderLineServiceWithKafka создаёт сервис с Kafka producer для event-driven архитектуры.
func NewOrderLineServiceWithKafka(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) *OrderLineService {
	return newOrderLineService(orders, products, outbox, timeline, kafkaProducer, logger, metrics.NewOrderMetrics())
}

// NewOrderLineServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewOrderLineServiceWithoutMetrics(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *OrderLineService {
	return newOrderLineService(orders, products, outbox, timeline, nil, logger, nil)
}

func newOrderLineService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
	m *metrics.OrderMetrics,
) *OrderLineService {
	if logger == nil {
		logger = log.New().WithField("component", "order-lines")
	}
	return &OrderLineService{
		orders:   orders,
		products: products,
		logger:   logger,
		metrics:  m,
		emitter: &eventEmitter{
			outbox:        outbox,
			timeline:      timeline,
			kafkaProducer: kafkaProducer,
			logger:        logger,
			metrics:       m,
		},
	}
}

// AddLine добавляет строку в открытый заказ и резервирует товар на складе.
// Списание со склада и добавление строки применяются вместе либо никак.
func (s *OrderLineService) AddLine(orderNumber, productRef int64, quantity int32) (domain.OrderLine, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration("add_line", time.Since(start))
		}
	}()

	for attempt := 0; attempt < maxRetries; attempt++ {
		// Порядок проверок фиксирован: товар, заказ, состояние заказа,
		// количество, остаток.
		product, err := s.products.Get(productRef)
		if err != nil {
			s.logger.WithError(err).WithField("product_ref", productRef).Warn("product not found for add line")
			s.reject("not_found")
			return domain.OrderLine{}, fmt.Errorf("product %d: %w", productRef, err)
		}

		order, err := s.orders.Get(orderNumber)
		if err != nil {
			s.logger.WithError(err).WithField("order_number", orderNumber).Warn("order not found for add line")
			s.reject("not_found")
			return domain.OrderLine{}, fmt.Errorf("order %d: %w", orderNumber, err)
		}

		if order.Shipped() {
			s.logger.WithField("order_number", orderNumber).Warn("add line rejected: order already shipped")
			s.reject("already_shipped")
			return domain.OrderLine{}, fmt.Errorf("order %d: %w", orderNumber, domain.ErrOrderAlreadyShipped)
		}

		if quantity <= 0 {
			s.reject("quantity_not_positive")
			return domain.OrderLine{}, fmt.Errorf("quantity %d: %w", quantity, domain.ErrQuantityNotPositive)
		}

		if product.UnitsInStock < quantity {
			s.reject("insufficient_stock")
			return domain.OrderLine{}, fmt.Errorf("product %d: %w", productRef, domain.ErrInsufficientStock)
		}

		product.UnitsInStock -= quantity
		product.UnitsOnOrder += quantity
		if err := s.products.Save(product); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.backoff(orderNumber, attempt)
				continue
			}
			s.logger.WithError(err).WithField("product_ref", productRef).Error("failed to reserve stock")
			return domain.OrderLine{}, fmt.Errorf("save product %d: %w", productRef, err)
		}

		line := domain.OrderLine{
			ID:         uuid.NewString(),
			ProductRef: productRef,
			Quantity:   quantity,
			CreatedAt:  time.Now().UTC(),
		}
		order.Lines = append(order.Lines, line)
		order.UpdatedAt = time.Now().UTC()

		if err := s.orders.Save(order); err != nil {
			s.release(productRef, quantity)
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.backoff(orderNumber, attempt)
				continue
			}
			s.logger.WithError(err).WithField("order_number", orderNumber).Error("failed to persist order line")
			return domain.OrderLine{}, err
		}

		s.logger.WithFields(log.Fields{
			"order_number": orderNumber,
			"product_ref":  productRef,
			"quantity":     quantity,
		}).Info("order line added")

		if s.metrics != nil {
			s.metrics.RecordLineAdded()
		}
		s.emitter.emit(&order, kafka.EventTypeLineAdded, map[string]interface{}{
			"line_id":     line.ID,
			"product_ref": productRef,
			"quantity":    quantity,
		})

		return line, nil
	}

	s.reject("version_conflict")
	return domain.OrderLine{}, domain.ErrVersionConflict
}

// release снимает резерв товара после неудачного сохранения заказа.
func (s *OrderLineService) release(productRef int64, quantity int32) {
	fresh, err := s.products.Get(productRef)
	if err != nil {
		s.logger.WithError(err).WithField("product_ref", productRef).Error("release failed: product reload")
		return
	}
	fresh.UnitsInStock += quantity
	fresh.UnitsOnOrder -= quantity
	if err := s.products.Save(fresh); err != nil {
		s.logger.WithError(err).WithField("product_ref", productRef).Error("release failed: save")
	}
}

func (s *OrderLineService) backoff(orderNumber int64, attempt int) {
	s.logger.WithFields(log.Fields{
		"order_number": orderNumber,
		"attempt":      attempt + 1,
	}).Warn("version conflict detected, retrying")
	time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
}

func (s *OrderLineService) reject(reason string) {
	if s.metrics != nil {
		s.metrics.RecordRejected(reason)
	}
}
