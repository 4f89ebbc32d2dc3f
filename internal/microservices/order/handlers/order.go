package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"orderflow/internal/domain"
	"orderflow/internal/microservices/order/service"
)

const msgOrderNotFound = "Order not found"

type OrderHandler struct {
	service service.OrderServiceInterface
}

func NewOrderHandler(s service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s}
}

// CreateOrder handles POST /orders. Every failure of the pipeline is a 400.
func (oh *OrderHandler) CreateOrder(c *gin.Context) {
	var req domain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "invalid JSON body"})
		return
	}

	resp, err := oh.service.CreateOrder(c.Request.Context(), req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, domain.ErrValidation) {
			msg = "item_name is required"
		}
		c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: msg})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetOrder handles GET /orders/:id. Ids that are not integers cannot exist.
func (oh *OrderHandler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: msgOrderNotFound})
		return
	}

	resp, err := oh.service.GetOrder(c.Request.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: msgOrderNotFound})
	case err != nil:
		c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, resp)
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
