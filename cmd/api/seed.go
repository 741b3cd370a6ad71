package main

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/users"
)

type seedUser struct {
	username string
	password string
	role     users.Role
}

// Demo credentials. Registration rules are not applied to seeded accounts.
var sampleUsers = []seedUser{
	{"admin", "admin123", users.RoleAdmin},
	{"testuser", "test123", users.RoleUser},
	{"john_doe", "password123", users.RoleUser},
	{"jane_smith", "password123", users.RoleUser},
}

var sampleProducts = []catalog.Product{
	{Name: "Wireless Bluetooth Headphones", Description: "Wireless headphones with active noise cancellation and 30-hour battery life.", Price: 199.99, Category: "Electronics", Stock: 25, ImageURL: "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=500"},
	{Name: "Smart Fitness Watch", Description: "Fitness tracking smartwatch with heart rate monitor, GPS and water resistance.", Price: 299.99, Category: "Electronics", Stock: 15, ImageURL: "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=500"},
	{Name: "Ergonomic Office Chair", Description: "Office chair with lumbar support and adjustable height.", Price: 249.99, Category: "Furniture", Stock: 8, ImageURL: "https://images.unsplash.com/photo-1586023492125-27b2c045efd7?w=500"},
	{Name: "Mechanical Gaming Keyboard", Description: "RGB mechanical keyboard with tactile switches and customizable lighting.", Price: 129.99, Category: "Electronics", Stock: 20, ImageURL: "https://images.unsplash.com/photo-1541140532154-b024d705b90a?w=500"},
	{Name: "Wireless Mouse", Description: "Precision wireless mouse with ergonomic design and long battery life.", Price: 49.99, Category: "Electronics", Stock: 35},
	{Name: "Standing Desk Converter", Description: "Adjustable converter that turns any desk into a standing workstation.", Price: 179.99, Category: "Furniture", Stock: 12},
	{Name: "Coffee Maker Pro", Description: "Programmable coffee maker with thermal carafe.", Price: 89.99, Category: "Appliances", Stock: 18},
	{Name: "Bluetooth Speaker", Description: "Portable speaker with 360-degree sound and waterproof design.", Price: 79.99, Category: "Electronics", Stock: 22},
	{Name: "Desk Lamp with USB", Description: "LED desk lamp with USB charging port and touch brightness control.", Price: 39.99, Category: "Furniture", Stock: 30},
	{Name: "Laptop Stand", Description: "Adjustable aluminum laptop stand with ventilation holes.", Price: 29.99, Category: "Accessories", Stock: 40},
	{Name: "Wireless Charging Pad", Description: "Fast charging pad for Qi-enabled devices with LED indicator.", Price: 24.99, Category: "Accessories", Stock: 28},
	{Name: "Monitor Mount", Description: "Dual monitor mount with full motion adjustment.", Price: 69.99, Category: "Accessories", Stock: 16},
}

// seed is idempotent: existing usernames and product names are skipped.
func seed(c *cli.Context) error {
	svc, err := bootstrap(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	for _, u := range sampleUsers {
		log := svc.log.WithField("username", u.username)
		_, err := svc.auth.Register(ctx, u.username, u.password, u.role)
		switch {
		case errors.Is(err, users.ErrUsernameTaken):
			log.Info("user exists, skipping")
		case err != nil:
			return err
		default:
			log.WithField("role", u.role).Info("user created")
		}
	}

	created := 0
	for _, p := range sampleProducts {
		_, err := svc.catalog.Create(ctx, p)
		switch {
		case errors.Is(err, catalog.ErrDuplicateName):
		case err != nil:
			return err
		default:
			created++
		}
	}
	svc.log.Infof("seeded %d of %d products", created, len(sampleProducts))
	return nil
}
