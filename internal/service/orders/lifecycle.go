package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
	"github.com/vladislavdragonenkov/comptoirs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/comptoirs/internal/metrics"
)

// Порог лояльности: скидка даётся строго при превышении порога.
const articleDiscountThreshold = 100

// loyaltyDiscount — фиксированная ставка скидки для постоянных клиентов.
var loyaltyDiscount = decimal.RequireFromString("0.15")

const (
	maxRetries = 3
	baseDelay  = 10 * time.Millisecond
)

// OrderLifecycleService управляет жизненным циклом заказа: создание и отгрузка.
type OrderLifecycleService struct {
	customers domain.CustomerRepository
	orders    domain.OrderRepository
	products  domain.ProductRepository
	timeline  domain.TimelineRepository
	logger    *log.Entry
	metrics   *metrics.OrderMetrics
	emitter   *eventEmitter
}

// NewOrderLifecycleService создаёт рабочий экземпляр сервиса.
func NewOrderLifecycleService(
	customers domain.CustomerRepository,
	orders domain.OrderRepository,
	products domain.ProductRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *OrderLifecycleService {
	return newOrderLifecycleService(customers, orders, products, outbox, timeline, nil, logger, metrics.NewOrderMetrics())
}

// NewOrderLifecycleServiceWithKafka создаёт сервис с Kafka producer для event-driven архитектуры.
func NewOrderLifecycleServiceWithKafka(
	customers domain.CustomerRepository,
	orders domain.OrderRepository,
	products domain.ProductRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) *OrderLifecycleService {
	return newOrderLifecycleService(customers, orders, products, outbox, timeline, kafkaProducer, logger, metrics.NewOrderMetrics())
}

// NewOrderLifecycleServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewOrderLifecycleServiceWithoutMetrics(
	customers domain.CustomerRepository,
	orders domain.OrderRepository,
	products domain.ProductRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *OrderLifecycleService {
	return newOrderLifecycleService(customers, orders, products, outbox, timeline, nil, logger, nil)
}

func newOrderLifecycleService(
	customers domain.CustomerRepository,
	orders domain.OrderRepository,
	products domain.ProductRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
	m *metrics.OrderMetrics,
) *OrderLifecycleService {
	if logger == nil {
		logger = log.New().WithField("component", "order-lifecycle")
	}
	return &OrderLifecycleService{
		customers: customers,
		orders:    orders,
		products:  products,
		timeline:  timeline,
		logger:    logger,
		metrics:   m,
		emitter: &eventEmitter{
			outbox:        outbox,
			timeline:      timeline,
			kafkaProducer: kafkaProducer,
			logger:        logger,
			metrics:       m,
		},
	}
}

// CreateOrder создаёт новый заказ для клиента. Адрес доставки копируется из
// карточки клиента, скидка назначается по накопленной истории покупок.
func (s *OrderLifecycleService) CreateOrder(customerCode string) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration("create_order", time.Since(start))
		}
	}()

	customer, err := s.customers.Get(customerCode)
	if err != nil {
		s.logger.WithError(err).WithField("customer_code", customerCode).Warn("customer lookup failed")
		s.reject("not_found")
		return domain.Order{}, fmt.Errorf("customer %q: %w", customerCode, err)
	}

	articleCount, err := s.customers.OrderedArticleCount(customerCode)
	if err != nil {
		return domain.Order{}, fmt.Errorf("count ordered articles for %q: %w", customerCode, err)
	}

	discount := decimal.Zero
	discounted := articleCount > articleDiscountThreshold
	if discounted {
		discount = loyaltyDiscount
	}

	now := time.Now().UTC()
	order := domain.Order{
		CustomerCode:    customer.Code,
		DeliveryAddress: customer.Address,
		Discount:        discount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created, err := s.orders.Create(order)
	if err != nil {
		s.logger.WithError(err).WithField("customer_code", customerCode).Error("failed to persist order")
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_number":  created.Number,
		"customer_code": created.CustomerCode,
		"discount":      created.Discount.String(),
	}).Info("order created")

	if s.metrics != nil {
		s.metrics.RecordOrderCreated(discounted)
	}
	s.emitter.emit(&created, kafka.EventTypeOrderCreated, map[string]interface{}{
		"discount":      created.Discount.String(),
		"article_count": articleCount,
	})

	return created, nil
}

// RecordShipment фиксирует отгрузку заказа: списывает остатки по всем строкам
// и проставляет дату отгрузки. Либо применяются все списания, либо ни одного.
func (s *OrderLifecycleService) RecordShipment(orderNumber int64) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration("record_shipment", time.Since(start))
		}
	}()

	for attempt := 0; attempt < maxRetries; attempt++ {
		order, err := s.orders.Get(orderNumber)
		if err != nil {
			s.logger.WithError(err).WithField("order_number", orderNumber).Warn("order not found for shipment")
			s.reject("not_found")
			return domain.Order{}, fmt.Errorf("order %d: %w", orderNumber, err)
		}

		if order.Shipped() {
			s.logger.WithField("order_number", orderNumber).Warn("shipment rejected: order already shipped")
			s.reject("already_shipped")
			return domain.Order{}, fmt.Errorf("order %d: %w", orderNumber, domain.ErrOrderAlreadyShipped)
		}

		// Несколько строк одного товара списываются суммарно. Строка с
		// нулевым количеством — нарушение предусловия вставки: защитная
		// проверка срабатывает до любых списаний.
		quantities := make(map[int64]int32, len(order.Lines))
		refs := make([]int64, 0, len(order.Lines))
		for _, line := range order.Lines {
			if line.Quantity == 0 {
				s.reject("out_of_stock")
				return domain.Order{}, fmt.Errorf("order %d line %s product %d: %w",
					orderNumber, line.ID, line.ProductRef, domain.ErrProductOutOfStock)
			}
			if _, seen := quantities[line.ProductRef]; !seen {
				refs = append(refs, line.ProductRef)
			}
			quantities[line.ProductRef] += line.Quantity
		}

		// Остаток был зарезервирован при вставке строк: списание при
		// отгрузке безусловное, без нижней границы в ноль.
		staged := make([]domain.Product, 0, len(refs))
		for _, ref := range refs {
			product, err := s.products.Get(ref)
			if err != nil {
				s.reject("not_found")
				return domain.Order{}, fmt.Errorf("product %d: %w", ref, err)
			}
			product.UnitsInStock -= quantities[ref]
			staged = append(staged, product)
		}

		saved, err := s.saveStaged(staged, quantities)
		if err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.backoff(orderNumber, attempt)
				continue
			}
			return domain.Order{}, err
		}

		shippedAt := time.Now().UTC().Truncate(24 * time.Hour)
		order.ShippedAt = &shippedAt
		order.UpdatedAt = time.Now().UTC()
		if err := s.orders.Save(order); err != nil {
			s.restock(saved, quantities)
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.backoff(orderNumber, attempt)
				continue
			}
			s.logger.WithError(err).WithField("order_number", orderNumber).Error("failed to persist shipment")
			return domain.Order{}, err
		}
		order.Version++

		s.logger.WithFields(log.Fields{
			"order_number": order.Number,
			"shipped_at":   shippedAt.Format("2006-01-02"),
			"lines":        len(order.Lines),
		}).Info("shipment recorded")

		if s.metrics != nil {
			s.metrics.RecordShipment()
		}
		s.emitter.emit(&order, kafka.EventTypeOrderShipped, map[string]interface{}{
			"shipped_at": shippedAt.Format("2006-01-02"),
			"lines":      len(order.Lines),
		})

		return order, nil
	}

	s.reject("version_conflict")
	return domain.Order{}, domain.ErrVersionConflict
}

// GetOrder возвращает заказ вместе с его timeline.
func (s *OrderLifecycleService) GetOrder(orderNumber int64) (domain.Order, []domain.TimelineEvent, error) {
	order, err := s.orders.Get(orderNumber)
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("order %d: %w", orderNumber, err)
	}

	var events []domain.TimelineEvent
	if s.timeline != nil {
		events, err = s.timeline.List(orderNumber)
		if err != nil {
			s.logger.WithError(err).WithField("order_number", orderNumber).Warn("failed to load timeline")
			events = nil
		}
	}
	return order, events, nil
}

// ListCustomerOrders возвращает заказы клиента, последние первыми.
func (s *OrderLifecycleService) ListCustomerOrders(customerCode string, limit int) ([]domain.Order, error) {
	if _, err := s.customers.Get(customerCode); err != nil {
		return nil, fmt.Errorf("customer %q: %w", customerCode, err)
	}
	return s.orders.ListByCustomer(customerCode, limit)
}

// GetProduct возвращает карточку товара.
func (s *OrderLifecycleService) GetProduct(productRef int64) (domain.Product, error) {
	product, err := s.products.Get(productRef)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %d: %w", productRef, err)
	}
	return product, nil
}

// saveStaged сохраняет подготовленные списания. При ошибке возвращает уже
// сохранённые товары обратно на склад.
func (s *OrderLifecycleService) saveStaged(staged []domain.Product, quantities map[int64]int32) ([]domain.Product, error) {
	saved := make([]domain.Product, 0, len(staged))
	for _, product := range staged {
		if err := s.products.Save(product); err != nil {
			s.restock(saved, quantities)
			return nil, fmt.Errorf("save product %d: %w", product.Ref, err)
		}
		saved = append(saved, product)
	}
	return saved, nil
}

// restock компенсирует уже применённые списания. Ошибки компенсации
// логируются: повторная попытка операции начнётся с чистого чтения.
func (s *OrderLifecycleService) restock(saved []domain.Product, quantities map[int64]int32) {
	for _, product := range saved {
		fresh, err := s.products.Get(product.Ref)
		if err != nil {
			s.logger.WithError(err).WithField("product_ref", product.Ref).Error("restock failed: product reload")
			continue
		}
		fresh.UnitsInStock += quantities[product.Ref]
		if err := s.products.Save(fresh); err != nil {
			s.logger.WithError(err).WithField("product_ref", product.Ref).Error("restock failed: save")
		}
	}
}

func (s *OrderLifecycleService) backoff(orderNumber int64, attempt int) {
	s.logger.WithFields(log.Fields{
		"order_number": orderNumber,
		"attempt":      attempt + 1,
	}).Warn("version conflict detected, retrying")
	time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
}

func (s *OrderLifecycleService) reject(reason string) {
	if s.metrics != nil {
		s.metrics.RecordRejected(reason)
	}
}
