package orders

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/users"
)

type ProductSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Category string  `json:"category"`
}

type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ItemView is a line item with the product's current display fields.
// Product is nil once the product has been deleted.
type ItemView struct {
	Product   *ProductSummary `json:"product"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     float64         `json:"price"`
}

// View is an order resolved for presentation.
type View struct {
	ID              string       `json:"id"`
	UserID          string       `json:"userId"`
	User            *UserSummary `json:"user,omitempty"`
	Items           []ItemView   `json:"items"`
	TotalAmount     float64      `json:"totalAmount"`
	Status          Status       `json:"status"`
	ShippingAddress Address      `json:"shippingAddress"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// resolve loads products and, when withUser is set, owners for orders
// concurrently and assembles views in input order.
func (s *Service) resolve(ctx context.Context, list []Order, withUser bool) ([]View, error) {
	var ids []string
	var owners []string
	seenOwner := map[string]bool{}
	for _, o := range list {
		for _, li := range o.Items {
			ids = append(ids, li.ProductID)
		}
		if !seenOwner[o.UserID] {
			seenOwner[o.UserID] = true
			owners = append(owners, o.UserID)
		}
	}

	var products map[string]catalog.Product
	people := map[string]*UserSummary{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.products.BatchGet(gctx, ids)
		return err
	})
	if withUser {
		g.Go(func() error {
			for _, id := range owners {
				u, err := s.users.Get(gctx, id)
				if errors.Is(err, users.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				people[id] = &UserSummary{ID: u.ID, Username: u.Username}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]View, 0, len(list))
	for _, o := range list {
		v := snapshot(o)
		v.User = people[o.UserID]
		for i := range v.Items {
			if p, ok := products[v.Items[i].ProductID]; ok {
				v.Items[i].Product = &ProductSummary{
					ID:       p.ID,
					Name:     p.Name,
					Price:    p.Price,
					ImageURL: p.ImageURL,
					Category: p.Category,
				}
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// snapshot builds a view from the order record alone, without product or
// user display fields.
func snapshot(o Order) View {
	v := View{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           make([]ItemView, 0, len(o.Items)),
		TotalAmount:     o.TotalAmount,
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, li := range o.Items {
		v.Items = append(v.Items, ItemView{ProductID: li.ProductID, Quantity: li.Quantity, Price: li.Price})
	}
	return v
}

func (s *Service) resolveOne(ctx context.Context, o *Order) (*View, error) {
	views, err := s.resolve(ctx, []Order{*o}, true)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
