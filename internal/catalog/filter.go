package catalog

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// Filter is an AND of optional product predicates. Zero-valued fields are
// omitted rather than matching nothing.
type Filter struct {
	Search   string // substring of name or description, case-insensitive
	Category string // substring of category, case-insensitive
	MinPrice *float64
	MaxPrice *float64
	InStock  bool // stock > 0
	MaxStock *int // stock <= MaxStock
}

// ListingFilter is the public catalog filter: the query's clauses plus the
// in-stock restriction.
func ListingFilter(q Query) Filter {
	return Filter{
		Search:   strings.TrimSpace(q.Search),
		Category: strings.TrimSpace(q.Category),
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		InStock:  true,
	}
}

// LowStockFilter selects products with 0 < stock <= threshold.
func LowStockFilter(threshold int) Filter {
	return Filter{InStock: true, MaxStock: &threshold}
}

// Condition translates the filter into a DynamoDB filter expression over the
// lower-cased shadow attributes. ok is false when the filter is empty.
func (f Filter) Condition() (cond expression.ConditionBuilder, ok bool) {
	var conds []expression.ConditionBuilder

	if s := strings.ToLower(f.Search); s != "" {
		conds = append(conds, expression.Or(
			expression.Name("name_lc").Contains(s),
			expression.Name("description_lc").Contains(s),
		))
	}
	if c := strings.ToLower(f.Category); c != "" {
		conds = append(conds, expression.Name("category_lc").Contains(c))
	}
	if f.MinPrice != nil {
		conds = append(conds, expression.Name("price").GreaterThanEqual(expression.Value(*f.MinPrice)))
	}
	if f.MaxPrice != nil {
		conds = append(conds, expression.Name("price").LessThanEqual(expression.Value(*f.MaxPrice)))
	}
	if f.InStock {
		conds = append(conds, expression.Name("stock").GreaterThan(expression.Value(0)))
	}
	if f.MaxStock != nil {
		conds = append(conds, expression.Name("stock").LessThanEqual(expression.Value(*f.MaxStock)))
	}

	switch len(conds) {
	case 0:
		return cond, false
	case 1:
		return conds[0], true
	}
	return expression.And(conds[0], conds[1], conds[2:]...), true
}
