package orders

import (
	"errors"
	"fmt"
	"time"
)

type Status string

// Order statuses. Any status may move to any other, including itself.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus returns ErrInvalidStatus for values outside the enumeration.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

var (
	ErrNotFound      = errors.New("order not found")
	ErrInvalidStatus = errors.New("invalid order status")
	ErrEmptyOrder    = errors.New("order must contain at least one item")
)

// ProductNotFoundError reports an order line referencing a missing product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError reports a line (or the sum of lines for one
// product) asking for more than the store holds.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for product %s. Available: %d, Requested: %d", name, e.Available, e.Requested)
}

// DuplicateRequestError is returned when an idempotency key was already used
// to place an order.
type DuplicateRequestError struct {
	OrderID string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("duplicate request: order %s already placed", e.OrderID)
}

// LineItem snapshots the unit price at order time.
type LineItem struct {
	ProductID string  `dynamodbav:"product_id" json:"productId"`
	Quantity  int     `dynamodbav:"quantity" json:"quantity"`
	Price     float64 `dynamodbav:"price" json:"price"`
}

type Address struct {
	Street  string `dynamodbav:"street" json:"street"`
	City    string `dynamodbav:"city" json:"city"`
	State   string `dynamodbav:"state" json:"state"`
	ZipCode string `dynamodbav:"zip_code" json:"zipCode"`
	Country string `dynamodbav:"country" json:"country"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	ID              string     `dynamodbav:"order_id" json:"id"` // PK
	UserID          string     `dynamodbav:"user_id" json:"userId"`
	Items           []LineItem `dynamodbav:"items" json:"items"`
	TotalAmount     float64    `dynamodbav:"total_amount" json:"totalAmount"`
	Status          Status     `dynamodbav:"status" json:"status"`
	ShippingAddress Address    `dynamodbav:"shipping_address" json:"shippingAddress"`
	IdempotencyKey  string     `dynamodbav:"idempotency_key,omitempty" json:"-"`
	CreatedAt       time.Time  `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `dynamodbav:"updated_at" json:"updatedAt"`
}

// ItemRequest is one requested line before prices are resolved.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

type PlaceInput struct {
	UserID          string
	Items           []ItemRequest
	ShippingAddress Address
	IdempotencyKey  string
}

// Actor is the authenticated caller of an order operation.
type Actor struct {
	UserID string
	Admin  bool
}

func (a Actor) canAccess(o *Order) bool {
	return a.Admin || o.UserID == a.UserID
}

type ListQuery struct {
	Status string
	Page   int
	Limit  int
}

type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

type Stats struct {
	TotalOrders       int           `json:"totalOrders"`
	TotalRevenue      float64       `json:"totalRevenue"`
	AverageOrderValue float64       `json:"averageOrderValue"`
	StatusBreakdown   []StatusCount `json:"statusBreakdown"`
}
