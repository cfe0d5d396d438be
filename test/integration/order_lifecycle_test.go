package integration

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
	"github.com/vladislavdragonenkov/comptoirs/internal/service/orders"
	"github.com/vladislavdragonenkov/comptoirs/internal/storage/memory"
)

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказа поверх
// in-memory хранилища: создание, добавление строк, отправку и компенсации.
type OrderLifecycleTestSuite struct {
	suite.Suite
	lifecycle *orders.OrderLifecycleService
	lines     *orders.OrderLineService
	orders    domain.OrderRepository
	products  *memory.ProductRepository
	timeline  domain.TimelineRepository
	outbox    *memory.OutboxRepository
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	orderRepo := memory.NewOrderRepository()
	customerRepo := memory.NewCustomerRepository(orderRepo)
	productRepo := memory.NewProductRepository()
	outboxRepo := memory.NewOutboxRepository()
	timelineRepo := memory.NewTimelineRepository()

	customerRepo.Put(domain.Customer{Code: "ALFKI", Company: "Alfreds Futterkiste", Address: "Obere Str. 57, Berlin"})
	customerRepo.Put(domain.Customer{Code: "BONAP", Company: "Bon app'", Address: "12, rue des Bouchers, Marseille"})
	productRepo.Put(domain.Product{Ref: 93, Name: "Chai", UnitsInStock: 50})
	productRepo.Put(domain.Product{Ref: 95, Name: "Chang", UnitsInStock: 4})
	productRepo.Put(domain.Product{Ref: 97, Name: "Aniseed Syrup", UnitsInStock: 0})

	suite.orders = orderRepo
	suite.products = productRepo
	suite.timeline = timelineRepo
	suite.outbox = outboxRepo

	suite.lifecycle = orders.NewOrderLifecycleServiceWithoutMetrics(
		customerRepo, orderRepo, productRepo, outboxRepo, timelineRepo, logger)
	suite.lines = orders.NewOrderLineServiceWithoutMetrics(
		orderRepo, productRepo, outboxRepo, timelineRepo, logger)
}

// seedShippedHistory создаёт отправленный заказ с заданным числом артикулов,
// чтобы набрать историю покупок клиента.
func (suite *OrderLifecycleTestSuite) seedShippedHistory(code string, articles int32) {
	now := time.Now().UTC()
	shippedAt := now.Truncate(24 * time.Hour)
	_, err := suite.orders.Create(domain.Order{
		CustomerCode:    code,
		DeliveryAddress: "history",
		ShippedAt:       &shippedAt,
		Lines: []domain.OrderLine{
			{ID: "history-line", ProductRef: 93, Quantity: articles, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(suite.T(), err)
}

func (suite *OrderLifecycleTestSuite) TestFullOrderLifecycle() {
	// 1. Создаём заказ: адрес копируется из карточки клиента.
	order, err := suite.lifecycle.CreateOrder("ALFKI")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "Obere Str. 57, Berlin", order.DeliveryAddress)
	require.True(suite.T(), order.Discount.IsZero())
	require.Nil(suite.T(), order.ShippedAt)

	// 2. Добавляем строки: товар резервируется при вставке.
	_, err = suite.lines.AddLine(order.Number, 93, 10)
	require.NoError(suite.T(), err)
	_, err = suite.lines.AddLine(order.Number, 95, 1)
	require.NoError(suite.T(), err)

	chai, err := suite.products.Get(93)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(40), chai.UnitsInStock)
	require.Equal(suite.T(), int32(10), chai.UnitsOnOrder)

	// 3. Отправляем заказ: остатки списываются по строкам, дата проставляется.
	shipped, err := suite.lifecycle.RecordShipment(order.Number)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), shipped.ShippedAt)
	require.Equal(suite.T(), shipped.ShippedAt.Truncate(24*time.Hour), *shipped.ShippedAt)

	chai, err = suite.products.Get(93)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(30), chai.UnitsInStock)
	// unitsOnOrder при отгрузке не меняется: счётчик только накапливается.
	require.Equal(suite.T(), int32(10), chai.UnitsOnOrder)

	chang, err := suite.products.Get(95)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(2), chang.UnitsInStock)
	require.Equal(suite.T(), int32(1), chang.UnitsOnOrder)

	// 4. Проверяем timeline: создание, две строки, отправка.
	_, timeline, err := suite.lifecycle.GetOrder(order.Number)
	require.NoError(suite.T(), err)
	require.GreaterOrEqual(suite.T(), len(timeline), 4)

	types := make(map[string]int)
	for _, event := range timeline {
		types[event.Type]++
	}
	require.Equal(suite.T(), 1, types["order.created"])
	require.Equal(suite.T(), 2, types["order.line_added"])
	require.Equal(suite.T(), 1, types["order.shipped"])

	// 5. Все события продублированы в outbox для публикации.
	require.GreaterOrEqual(suite.T(), len(suite.outbox.AllPending()), 4)
}

func (suite *OrderLifecycleTestSuite) TestLoyaltyDiscount() {
	suite.seedShippedHistory("BONAP", 150)

	order, err := suite.lifecycle.CreateOrder("BONAP")
	require.NoError(suite.T(), err)
	require.True(suite.T(), order.Discount.Equal(decimal.RequireFromString("0.15")),
		"expected 0.15 discount, got %s", order.Discount)
}

func (suite *OrderLifecycleTestSuite) TestDiscountThresholdIsStrict() {
	suite.seedShippedHistory("BONAP", 100)

	order, err := suite.lifecycle.CreateOrder("BONAP")
	require.NoError(suite.T(), err)
	require.True(suite.T(), order.Discount.IsZero())
}

func (suite *OrderLifecycleTestSuite) TestAddLineUnknownProduct() {
	order, err := suite.lifecycle.CreateOrder("ALFKI")
	require.NoError(suite.T(), err)

	_, err = suite.lines.AddLine(order.Number, 404404, 1)
	require.Error(suite.T(), err)
	require.True(suite.T(), domain.IsNotFound(err))
}

func (suite *OrderLifecycleTestSuite) TestShipmentRejectedTwice() {
	order, err := suite.lifecycle.CreateOrder("ALFKI")
	require.NoError(suite.T(), err)
	_, err = suite.lines.AddLine(order.Number, 93, 5)
	require.NoError(suite.T(), err)

	_, err = suite.lifecycle.RecordShipment(order.Number)
	require.NoError(suite.T(), err)

	_, err = suite.lifecycle.RecordShipment(order.Number)
	require.Error(suite.T(), err)
	require.True(suite.T(), domain.IsInvalidState(err))
}

func (suite *OrderLifecycleTestSuite) TestShipmentAllOrNothing() {
	// Заказ с нулевой строкой в хвосте: защитная проверка отклоняет
	// отгрузку до любых списаний, первая строка не применяется частично.
	now := time.Now().UTC()
	order, err := suite.orders.Create(domain.Order{
		CustomerCode:    "ALFKI",
		DeliveryAddress: "Obere Str. 57, Berlin",
		Lines: []domain.OrderLine{
			{ID: "line-ok", ProductRef: 93, Quantity: 10, CreatedAt: now},
			{ID: "line-zero", ProductRef: 95, Quantity: 0, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(suite.T(), err)

	_, err = suite.lifecycle.RecordShipment(order.Number)
	require.Error(suite.T(), err)
	require.True(suite.T(), domain.IsInvalidState(err))

	// Chai не должен быть списан частично.
	chai, err := suite.products.Get(93)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(50), chai.UnitsInStock)

	// Заказ остаётся открытым.
	reloaded, err := suite.orders.Get(order.Number)
	require.NoError(suite.T(), err)
	require.Nil(suite.T(), reloaded.ShippedAt)
}

func (suite *OrderLifecycleTestSuite) TestShipmentConsumesFullyReservedStock() {
	// Строка резервирует весь остаток: заказ обязан остаться отгружаемым.
	order, err := suite.lifecycle.CreateOrder("ALFKI")
	require.NoError(suite.T(), err)
	_, err = suite.lines.AddLine(order.Number, 95, 4)
	require.NoError(suite.T(), err)

	shipped, err := suite.lifecycle.RecordShipment(order.Number)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), shipped.ShippedAt)

	// Списание безусловное, без нижней границы в ноль.
	chang, err := suite.products.Get(95)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(-4), chang.UnitsInStock)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
