// internal/models/order.go
package models

import "time"

type Order struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Date        time.Time `json:"date"`
	Price       float64   `json:"price"`
	Size        string    `json:"size"`
	Base        string    `json:"base"`
	Ingredients []string  `json:"ingredients"`
}

// OrderRequest is what a client submits; id, owner and date are stamped by the server.
type OrderRequest struct {
	Size        string   `json:"size"`
	Base        string   `json:"base"`
	Ingredients []string `json:"ingredients"`
	Price       float64  `json:"price"`
}

type OrderEventType string

const (
	OrderPlaced    OrderEventType = "OrderPlaced"
	OrderCancelled OrderEventType = "OrderCancelled"
)

type OrderEvent struct {
	ID          string         `json:"id"`
	Type        OrderEventType `json:"type"`
	OrderID     int64          `json:"order_id"`
	UserID      int64          `json:"user_id"`
	Ingredients []string       `json:"ingredients"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
