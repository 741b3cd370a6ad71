package orders

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/metrics"
	"github.com/imrishuroy/go-storefront/internal/paging"
	"github.com/imrishuroy/go-storefront/internal/users"
)

const DefaultListLimit = 10

// UserLookup resolves order owners for display.
type UserLookup interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Store            *Store
	Products         *catalog.Store
	Users            UserLookup
	Idempotency      *idempotency.Store
	Metrics          metrics.Recorder
	Log              logrus.FieldLogger
	DefaultListLimit int
}

// Service places orders and manages their lifecycle.
type Service struct {
	store        *Store
	products     *catalog.Store
	users        UserLookup
	idem         *idempotency.Store
	metrics      metrics.Recorder
	log          logrus.FieldLogger
	defaultLimit int
	nowFunc      func() time.Time
	newID        func() string
}

func NewService(d Deps) *Service {
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.DefaultListLimit <= 0 {
		d.DefaultListLimit = DefaultListLimit
	}
	return &Service{
		store:        d.Store,
		products:     d.Products,
		users:        d.Users,
		idem:         d.Idempotency,
		metrics:      d.Metrics,
		log:          d.Log,
		defaultLimit: d.DefaultListLimit,
		nowFunc:      time.Now,
		newID:        uuid.NewString,
	}
}

// Place validates every line against the catalog, prices the order and
// commits the order together with all stock decrements in one transaction.
// With an idempotency key, a repeated request yields *DuplicateRequestError
// naming the order created by the first one.
func (s *Service) Place(ctx context.Context, in PlaceInput) (*View, error) {
	log := s.log.WithField("user_id", in.UserID)
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	var idemKey string
	if in.IdempotencyKey != "" {
		idemKey = idempotency.Key(in.UserID, in.IdempotencyKey)
		rec, err := s.idem.Get(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			log.WithField("order_id", rec.OrderID).Info("replaying idempotent order request")
			return nil, &DuplicateRequestError{OrderID: rec.OrderID}
		}
	}

	log.WithField("items", len(in.Items)).Info("creating order")
	lines, decrements, total, err := s.price(ctx, in.Items)
	if err != nil {
		s.reject(ctx, log, err)
		return nil, err
	}

	now := s.nowFunc().UTC()
	order := Order{
		ID:              s.newID(),
		UserID:          in.UserID,
		Items:           lines,
		TotalAmount:     total.InexactFloat64(),
		Status:          StatusPending,
		ShippingAddress: in.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var guards []types.TransactWriteItem
	if idemKey != "" {
		claim, err := s.idem.TransactPut(idemKey, in.UserID, order.ID)
		if err != nil {
			return nil, err
		}
		guards = append(guards, claim)
		order.IdempotencyKey = in.IdempotencyKey
	}

	if err := s.store.CreateWithStockDecrement(ctx, order, decrements, guards...); err != nil {
		if errors.Is(err, ErrGuardFailed) {
			rec, getErr := s.idem.Get(ctx, idemKey)
			if getErr != nil {
				return nil, getErr
			}
			if rec != nil {
				return nil, &DuplicateRequestError{OrderID: rec.OrderID}
			}
		}
		s.reject(ctx, log, err)
		return nil, err
	}

	log.WithFields(logrus.Fields{"order_id": order.ID, "total": order.TotalAmount}).Info("order created")
	s.metrics.OrderPlaced(ctx, order.TotalAmount)

	// the order is committed; display lookups must not turn it into a failure
	view, err := s.resolveOne(ctx, &order)
	if err != nil {
		log.WithError(err).WithField("order_id", order.ID).Warn("order placed but display fields unavailable")
		v := snapshot(order)
		return &v, nil
	}
	return view, nil
}

// price checks each line in submission order and stops at the first missing
// product or at the line whose product total exceeds stock. Decrements are
// summed per product.
func (s *Service) price(ctx context.Context, items []ItemRequest) ([]LineItem, []Decrement, decimal.Decimal, error) {
	total := decimal.Zero
	lines := make([]LineItem, 0, len(items))
	var decrements []Decrement
	index := map[string]int{}

	for _, it := range items {
		p, err := s.products.Get(ctx, it.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, nil, decimal.Zero, &ProductNotFoundError{ProductID: it.ProductID}
		}
		if err != nil {
			return nil, nil, decimal.Zero, err
		}
		want := it.Quantity
		if i, ok := index[p.ID]; ok {
			want += decrements[i].Quantity
		}
		if p.Stock < want {
			return nil, nil, decimal.Zero, &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   want,
			}
		}

		total = total.Add(decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
		lines = append(lines, LineItem{ProductID: p.ID, Quantity: it.Quantity, Price: p.Price})
		if i, ok := index[p.ID]; ok {
			decrements[i].Quantity += it.Quantity
			continue
		}
		index[p.ID] = len(decrements)
		decrements = append(decrements, Decrement{ProductID: p.ID, Quantity: it.Quantity})
	}
	return lines, decrements, total.Round(2), nil
}

func (s *Service) reject(ctx context.Context, log logrus.FieldLogger, err error) {
	var notFound *ProductNotFoundError
	var short *InsufficientStockError
	switch {
	case errors.As(err, &notFound):
		log.WithField("product_id", notFound.ProductID).Warn("order rejected - product not found")
		s.metrics.OrderRejected(ctx, metrics.ReasonProductNotFound)
	case errors.As(err, &short):
		log.WithFields(logrus.Fields{
			"product_id": short.ProductID,
			"available":  short.Available,
			"requested":  short.Requested,
		}).Warn("order rejected - insufficient stock")
		s.metrics.OrderRejected(ctx, metrics.ReasonInsufficientStock)
	default:
		log.WithError(err).Error("order creation failed")
	}
}

// Get returns an order visible to actor. Orders of other users are reported
// as ErrNotFound.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*View, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(o) {
		return nil, ErrNotFound
	}
	return s.resolveOne(ctx, o)
}

// List returns one page of actor's own orders, newest first.
func (s *Service) List(ctx context.Context, actor Actor, q ListQuery) (paging.Page[View], error) {
	var status Status
	if q.Status != "" {
		st, err := ParseStatus(q.Status)
		if err != nil {
			return paging.Page[View]{}, err
		}
		status = st
	}
	page, limit := paging.Normalize(q.Page, q.Limit, s.defaultLimit)

	list, err := s.store.ListByUser(ctx, actor.UserID, status)
	if err != nil {
		return paging.Page[View]{}, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	window := paging.Slice(list, page, limit)
	views, err := s.resolve(ctx, window.Items, false)
	if err != nil {
		return paging.Page[View]{}, err
	}
	return paging.Page[View]{Items: views, Pagination: window.Pagination}, nil
}

// UpdateStatus moves an order to status. Any transition is permitted,
// including to the current status.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id, status string) (*View, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(o) {
		return nil, ErrNotFound
	}
	next, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateStatus(ctx, id, o.Status, next)
	if err != nil {
		s.log.WithError(err).WithField("order_id", id).Warn("order status update failed")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"order_id": id,
		"from":     o.Status,
		"to":       next,
		"user_id":  actor.UserID,
	}).Info("order status updated")
	return s.resolveOne(ctx, updated)
}

// Stats summarises every order in the store.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	all, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	revenue := decimal.Zero
	counts := map[Status]int{}
	for _, o := range all {
		revenue = revenue.Add(decimal.NewFromFloat(o.TotalAmount))
		counts[o.Status]++
	}

	stats := &Stats{
		TotalOrders:     len(all),
		TotalRevenue:    revenue.Round(2).InexactFloat64(),
		StatusBreakdown: make([]StatusCount, 0, len(Statuses)),
	}
	if len(all) > 0 {
		stats.AverageOrderValue = revenue.Div(decimal.NewFromInt(int64(len(all)))).Round(2).InexactFloat64()
	}
	for _, st := range Statuses {
		stats.StatusBreakdown = append(stats.StatusBreakdown, StatusCount{Status: st, Count: counts[st]})
	}
	return stats, nil
}
