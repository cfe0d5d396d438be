package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
	"github.com/vladislavdragonenkov/comptoirs/internal/service/orders"
)

// Handler обслуживает HTTP API заказов.
type Handler struct {
	lifecycle *orders.OrderLifecycleService
	lines     *orders.OrderLineService
	logger    *log.Entry
}

// NewHandler создаёт HTTP handler поверх бизнес-сервисов.
func NewHandler(lifecycle *orders.OrderLifecycleService, lines *orders.OrderLineService, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}
	return &Handler{
		lifecycle: lifecycle,
		lines:     lines,
		logger:    logger,
	}
}

type createOrderRequest struct {
	CustomerCode string `json:"customer_code" binding:"required"`
}

type addLineRequest struct {
	ProductRef int64 `json:"product_ref" binding:"required"`
	Quantity   int32 `json:"quantity" binding:"required,gt=0"`
}

type orderLineResponse struct {
	ID         string    `json:"id"`
	ProductRef int64     `json:"product_ref"`
	Quantity   int32     `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

type orderResponse struct {
	Number          int64               `json:"number"`
	CustomerCode    string              `json:"customer_code"`
	DeliveryAddress string              `json:"delivery_address"`
	Discount        string              `json:"discount"`
	ShippedAt       *string             `json:"shipped_at"`
	Lines           []orderLineResponse `json:"lines"`
	Version         int64               `json:"version"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

type orderWithTimelineResponse struct {
	orderResponse
	Timeline []timelineEventResponse `json:"timeline"`
}

type productResponse struct {
	Ref          int64  `json:"ref"`
	Name         string `json:"name"`
	UnitsInStock int32  `json:"units_in_stock"`
	UnitsOnOrder int32  `json:"units_on_order"`
}

func toOrderResponse(order domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			ID:         line.ID,
			ProductRef: line.ProductRef,
			Quantity:   line.Quantity,
			CreatedAt:  line.CreatedAt,
		})
	}

	var shippedAt *string
	if order.ShippedAt != nil {
		formatted := order.ShippedAt.Format("2006-01-02")
		shippedAt = &formatted
	}

	return orderResponse{
		Number:          order.Number,
		CustomerCode:    order.CustomerCode,
		DeliveryAddress: order.DeliveryAddress,
		Discount:        order.Discount.String(),
		ShippedAt:       shippedAt,
		Lines:           lines,
		Version:         order.Version,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer_code is required"})
		return
	}

	order, err := h.lifecycle.CreateOrder(req.CustomerCode)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) getOrder(c *gin.Context) {
	number, ok := h.orderNumberParam(c)
	if !ok {
		return
	}

	order, timeline, err := h.lifecycle.GetOrder(number)
	if err != nil {
		h.respondError(c, err)
		return
	}

	events := make([]timelineEventResponse, 0, len(timeline))
	for _, event := range timeline {
		events = append(events, timelineEventResponse{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}

	c.JSON(http.StatusOK, orderWithTimelineResponse{
		orderResponse: toOrderResponse(order),
		Timeline:      events,
	})
}

func (h *Handler) addLine(c *gin.Context) {
	number, ok := h.orderNumberParam(c)
	if !ok {
		return
	}

	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_ref and positive quantity are required"})
		return
	}

	line, err := h.lines.AddLine(number, req.ProductRef, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, orderLineResponse{
		ID:         line.ID,
		ProductRef: line.ProductRef,
		Quantity:   line.Quantity,
		CreatedAt:  line.CreatedAt,
	})
}

func (h *Handler) recordShipment(c *gin.Context) {
	number, ok := h.orderNumberParam(c)
	if !ok {
		return
	}

	order, err := h.lifecycle.RecordShipment(number)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) listCustomerOrders(c *gin.Context) {
	code := c.Param("code")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 100 {
		limit = 50
	}

	list, err := h.lifecycle.ListCustomerOrders(code, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result := make([]orderResponse, 0, len(list))
	for _, order := range list {
		result = append(result, toOrderResponse(order))
	}

	c.JSON(http.StatusOK, gin.H{"orders": result})
}

func (h *Handler) getProduct(c *gin.Context) {
	ref, err := strconv.ParseInt(c.Param("ref"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product ref must be an integer"})
		return
	}

	product, err := h.lifecycle.GetProduct(ref)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, productResponse{
		Ref:          product.Ref,
		Name:         product.Name,
		UnitsInStock: product.UnitsInStock,
		UnitsOnOrder: product.UnitsOnOrder,
	})
}

func (h *Handler) orderNumberParam(c *gin.Context) (int64, bool) {
	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order number must be an integer"})
		return 0, false
	}
	return number, true
}

// respondError переводит доменные ошибки в HTTP-статусы.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrQuantityNotPositive):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domain.IsInvalidState(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case domain.IsVersionConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
