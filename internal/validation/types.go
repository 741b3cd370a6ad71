package validation

import "strings"

// CreateProductRequest is the payload for POST /api/products.
type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description" validate:"required,min=10,max=500"`
	Price       float64 `json:"price" validate:"required,gt=0,price"`
	Category    string  `json:"category" validate:"required,max=50"`
	Stock       *int    `json:"stock" validate:"required,min=0"`
	ImageURL    string  `json:"imageUrl" validate:"omitempty,url"`
}

func (r *CreateProductRequest) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
}

// UpdateProductRequest is the payload for PUT /api/products/:id. At least one
// field must be present.
type UpdateProductRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description" validate:"omitempty,min=10,max=500"`
	Price       *float64 `json:"price" validate:"omitempty,gt=0,price"`
	Category    *string  `json:"category" validate:"omitempty,min=1,max=50"`
	Stock       *int     `json:"stock" validate:"omitempty,min=0"`
	ImageURL    *string  `json:"imageUrl" validate:"omitempty,url"`
}

func (r *UpdateProductRequest) trim() {
	for _, s := range []*string{r.Name, r.Description, r.Category} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

func (r UpdateProductRequest) empty() bool {
	return r.Name == nil && r.Description == nil && r.Price == nil &&
		r.Category == nil && r.Stock == nil && r.ImageURL == nil
}

// OrderItem is a single requested order line.
type OrderItem struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100"`
}

type ShippingAddress struct {
	Street  string `json:"street" validate:"required,min=3,max=100"`
	City    string `json:"city" validate:"required,max=50"`
	State   string `json:"state" validate:"required,max=50"`
	ZipCode string `json:"zipCode" validate:"required,min=3,max=10"`
	Country string `json:"country" validate:"required,max=50"`
}

// CreateOrderRequest is the payload for POST /api/orders
type CreateOrderRequest struct {
	Items           []OrderItem      `json:"items" validate:"required,min=1,max=20,dive"`
	ShippingAddress *ShippingAddress `json:"shippingAddress" validate:"required"`
}

func (r *CreateOrderRequest) trim() {
	if a := r.ShippingAddress; a != nil {
		a.Street = strings.TrimSpace(a.Street)
		a.City = strings.TrimSpace(a.City)
		a.State = strings.TrimSpace(a.State)
		a.ZipCode = strings.TrimSpace(a.ZipCode)
		a.Country = strings.TrimSpace(a.Country)
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=30"`
	Password string `json:"password" validate:"required,min=6,password"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProductQuery holds GET /api/products query parameters. Zero page and
// limit mean "use the default".
type ProductQuery struct {
	Search   string   `form:"search" validate:"max=100"`
	Category string   `form:"category" validate:"max=50"`
	MinPrice *float64 `form:"minPrice" validate:"omitempty,gt=0"`
	MaxPrice *float64 `form:"maxPrice" validate:"omitempty,gt=0"`
	Page     int      `form:"page" validate:"omitempty,min=1"`
	Limit    int      `form:"limit" validate:"omitempty,min=1,max=100"`
}

func (q *ProductQuery) trim() {
	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
}

type OrderQuery struct {
	Status string `form:"status"`
	Page   int    `form:"page" validate:"omitempty,min=1"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

type LowStockQuery struct {
	Threshold int `form:"threshold" validate:"omitempty,min=1"`
}
