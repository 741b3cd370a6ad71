package catalog

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("product not found")
	ErrDuplicateName = errors.New("a product with this name already exists")
)

// Product represents the item stored in the products DynamoDB table.
type Product struct {
	ID          string    `dynamodbav:"product_id" json:"id"` // PK
	Name        string    `dynamodbav:"name" json:"name"`
	Description string    `dynamodbav:"description" json:"description"`
	Price       float64   `dynamodbav:"price" json:"price"`
	Category    string    `dynamodbav:"category" json:"category"`
	ImageURL    string    `dynamodbav:"image_url,omitempty" json:"imageUrl,omitempty"`
	Stock       int       `dynamodbav:"stock" json:"stock"`
	CreatedAt   time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `dynamodbav:"updated_at" json:"updatedAt"`

	// lower-cased copies backing case-insensitive filters; name_lc is also
	// the partition key of the name index
	NameLC        string `dynamodbav:"name_lc" json:"-"`
	DescriptionLC string `dynamodbav:"description_lc" json:"-"`
	CategoryLC    string `dynamodbav:"category_lc" json:"-"`
}

func (p *Product) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.NameLC = strings.ToLower(p.Name)
	p.DescriptionLC = strings.ToLower(p.Description)
	p.CategoryLC = strings.ToLower(p.Category)
}

// InStock reports whether at least one unit can be sold.
func (p Product) InStock() bool { return p.Stock > 0 }

// Patch is a partial product update; nil fields are left unchanged.
type Patch struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *string
	ImageURL    *string
	Stock       *int
}

func (pt Patch) apply(p *Product) {
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.Price != nil {
		p.Price = *pt.Price
	}
	if pt.Category != nil {
		p.Category = *pt.Category
	}
	if pt.ImageURL != nil {
		p.ImageURL = *pt.ImageURL
	}
	if pt.Stock != nil {
		p.Stock = *pt.Stock
	}
}

// Query carries the public listing parameters.
type Query struct {
	Search   string
	Category string
	MinPrice *float64
	MaxPrice *float64
	Page     int
	Limit    int
}
