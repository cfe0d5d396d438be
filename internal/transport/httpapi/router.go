package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает gin router со всеми маршрутами API.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(h.logger))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:number", h.getOrder)
		v1.POST("/orders/:number/lines", h.addLine)
		v1.POST("/orders/:number/shipment", h.recordShipment)
		v1.GET("/customers/:code/orders", h.listCustomerOrders)
		v1.GET("/products/:ref", h.getProduct)
	}

	return router
}

// requestLogger логирует каждый запрос в стиле структурных логов приложения.
func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	}
}
