package domain

type OrderStatus string

const (
	StatusCreated   OrderStatus = "CREATED"
	StatusProcessed OrderStatus = "PROCESSED"
)

type Order struct {
	ID       int64
	ItemName string
	Status   OrderStatus
}
