package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderPaid       OrderStatus = "paid"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

var OrderStatuses = []OrderStatus{
	OrderPending, OrderPaid, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled, OrderRefunded,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled || s == OrderRefunded
}

// Settled reports whether the order has been paid for and not reversed.
func (s OrderStatus) Settled() bool {
	switch s {
	case OrderPaid, OrderProcessing, OrderShipped, OrderDelivered:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type DeliveryMethod string

const (
	DeliveryPaxi       DeliveryMethod = "paxi"
	DeliveryDoorToDoor DeliveryMethod = "door_to_door"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              string         `bun:"id,pk" json:"id"`
	TrackingNumber  string         `bun:"tracking_number,unique,notnull" json:"tracking_number"`
	CustomerName    string         `bun:"customer_name,notnull" json:"customer_name"`
	CustomerEmail   string         `bun:"customer_email,notnull" json:"customer_email"`
	CustomerPhone   string         `bun:"customer_phone,notnull" json:"customer_phone"`
	ProductName     string         `bun:"product_name,notnull" json:"product_name"`
	Quantity        int            `bun:"quantity,notnull" json:"quantity"`
	BaseAmount      int64          `bun:"base_amount,notnull" json:"base_amount"`
	DeliveryMethod  DeliveryMethod `bun:"delivery_method,notnull" json:"delivery_method"`
	DeliveryFee     int64          `bun:"delivery_fee,notnull" json:"delivery_fee"`
	PromoCode       string         `bun:"promo_code,nullzero" json:"promo_code,omitempty"`
	DiscountAmount  int64          `bun:"discount_amount,notnull" json:"discount_amount"`
	FinalPrice      int64          `bun:"final_price,notnull" json:"final_price"`
	PaxiStoreCode   string         `bun:"paxi_store_code,nullzero" json:"paxi_store_code,omitempty"`
	DeliveryAddress string         `bun:"delivery_address,nullzero" json:"delivery_address,omitempty"`
	CheckoutID      string         `bun:"checkout_id,nullzero" json:"checkout_id,omitempty"`
	PaymentID       string         `bun:"payment_id,nullzero" json:"payment_id,omitempty"`
	Status          OrderStatus    `bun:"status,notnull" json:"status"`
	PaymentStatus   PaymentStatus  `bun:"payment_status,notnull" json:"payment_status"`
	CreatedAt       time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time      `bun:"updated_at,notnull" json:"updated_at"`
	ShippedAt       *time.Time     `bun:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time     `bun:"delivered_at" json:"delivered_at,omitempty"`
}

type EventAuthor string

const (
	AuthorSystem EventAuthor = "system"
	AuthorAdmin  EventAuthor = "admin"
)

// TrackingEvent rows are append-only.
type TrackingEvent struct {
	bun.BaseModel `bun:"table:order_tracking_events"`

	ID        string      `bun:"id,pk" json:"id"`
	OrderID   string      `bun:"order_id,notnull" json:"order_id"`
	Status    OrderStatus `bun:"status,notnull" json:"status"`
	Note      string      `bun:"note" json:"note"`
	Author    EventAuthor `bun:"author,notnull" json:"author"`
	CreatedAt time.Time   `bun:"created_at,notnull" json:"created_at"`
}

// OrderRequest is the storefront checkout form.
type OrderRequest struct {
	CustomerName    string         `json:"customer_name"`
	CustomerEmail   string         `json:"customer_email"`
	CustomerPhone   string         `json:"customer_phone"`
	Quantity        int            `json:"quantity"`
	DeliveryMethod  DeliveryMethod `json:"delivery_method"`
	PaxiStoreCode   string         `json:"paxi_store_code,omitempty"`
	DeliveryAddress string         `json:"delivery_address,omitempty"`
	PromoCode       string         `json:"promo_code,omitempty"`
}

type OrderTracking struct {
	Order  *Order          `json:"order"`
	Events []TrackingEvent `json:"events"`
}
