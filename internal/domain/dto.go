package domain

type CreateOrderRequest struct {
	ItemName string `json:"item_name" validate:"required"`
}

type CreateOrderResponse struct {
	OrderID int64       `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

type OrderResponse struct {
	OrderID  int64       `json:"order_id"`
	ItemName string      `json:"item_name"`
	Status   OrderStatus `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewOrderResponse(o Order) OrderResponse {
	return OrderResponse{OrderID: o.ID, ItemName: o.ItemName, Status: o.Status}
}
