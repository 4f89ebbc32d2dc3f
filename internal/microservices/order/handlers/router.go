package handlers

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func Router(h *Handler, lg *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(lg, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(lg, true))
	r.Use(otelgin.Middleware("order-service"))

	r.POST("/orders", h.OrderHandler.CreateOrder)
	r.GET("/orders/:id", h.OrderHandler.GetOrder)
	r.GET("/health", Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
