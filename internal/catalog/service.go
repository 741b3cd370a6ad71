package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/paging"
)

const (
	DefaultListLimit         = 12
	DefaultLowStockThreshold = 10
)

// Service implements catalog listing and administration on top of Store.
type Service struct {
	store        *Store
	log          logrus.FieldLogger
	defaultLimit int
}

// NewService returns a Service. defaultLimit applies when a listing request
// carries no limit; zero selects DefaultListLimit.
func NewService(store *Store, log logrus.FieldLogger, defaultLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = DefaultListLimit
	}
	return &Service{store: store, log: log, defaultLimit: defaultLimit}
}

// List returns one page of in-stock products matching q, newest first.
// Products created at the same instant keep the store's scan order.
func (s *Service) List(ctx context.Context, q Query) (paging.Page[Product], error) {
	page, limit := paging.Normalize(q.Page, q.Limit, s.defaultLimit)
	s.log.WithFields(logrus.Fields{
		"search":   q.Search,
		"category": q.Category,
		"page":     page,
	}).Info("products query")

	products, err := s.store.Scan(ctx, ListingFilter(q))
	if err != nil {
		return paging.Page[Product]{}, err
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})

	result := paging.Slice(products, page, limit)
	s.log.Debugf("found %d products out of %d total", len(result.Items), result.Pagination.Total)
	return result, nil
}

// LowStock lists products with 0 < stock <= threshold, lowest stock first.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]Product, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	products, err := s.store.Scan(ctx, LowStockFilter(threshold))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Stock < products[j].Stock
	})
	return products, nil
}

// Categories returns the distinct categories of all products, sorted.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	products, err := s.store.Scan(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	categories := []string{}
	for _, p := range products {
		if !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}
	sort.Slice(categories, func(i, j int) bool {
		a, b := strings.ToLower(categories[i]), strings.ToLower(categories[j])
		if a == b {
			return categories[i] < categories[j]
		}
		return a < b
	})
	return categories, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.InStock() {
		s.log.WithField("product_id", id).Info("product out of stock")
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, p Product) (*Product, error) {
	created, err := s.store.Create(ctx, p)
	if err != nil {
		if errors.Is(err, ErrDuplicateName) {
			s.log.WithField("name", p.Name).Warn("product creation failed - duplicate name")
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"product_id": created.ID, "name": created.Name}).Info("product created")
	return created, nil
}

func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		s.log.WithError(err).WithField("product_id", id).Warn("product update failed")
		return nil, err
	}
	s.log.WithField("product_id", id).Info("product updated")
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) (*Product, error) {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	fields := logrus.Fields{"product_id": id, "name": deleted.Name}
	if deleted.Stock > 0 {
		s.log.WithFields(fields).WithField("stock", deleted.Stock).Warn("deleted product still had stock")
	}
	s.log.WithFields(fields).Info("product deleted")
	return deleted, nil
}
