package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"shopfront/internal/domain"
	applog "shopfront/internal/log"
)

// SeedOptions names the demo staff account created by Seed.
type SeedOptions struct {
	StaffUser     string
	StaffEmail    string
	StaffPassword string
}

var demoCatalog = []struct {
	category, description string
	products              []struct{ name, price string }
}{
	{"Books", "Printed and digital books", []struct{ name, price string }{
		{"Go in Action", "39.99"},
		{"The Go Programming Language", "44.50"},
	}},
	{"Games", "Retro cartridges and consoles", []struct{ name, price string }{
		{"Pixel Quest", "19.00"},
	}},
}

// Seed inserts a small demo catalog and a staff account. Rows that already
// exist are left alone, so running it twice is harmless.
func Seed(ctx context.Context, cat *CatalogService, acc *AccountService, opts SeedOptions) error {
	if opts.StaffUser != "" {
		_, err := acc.Users.ByUsername(ctx, opts.StaffUser)
		if errors.Is(err, domain.ErrNotFound) {
			u, err := acc.Register(ctx, opts.StaffUser, opts.StaffEmail, opts.StaffPassword, true)
			if err != nil {
				return err
			}
			applog.Info(nil, "seed.user", map[string]any{"user_id": u.ID, "username": u.Username})
		} else if err != nil {
			return err
		}
	}

	for _, dc := range demoCatalog {
		c, err := cat.Cats.ByName(ctx, dc.category)
		if errors.Is(err, domain.ErrNotFound) {
			c, err = cat.CreateCategory(ctx, domain.Category{Name: dc.category, Description: dc.description})
		}
		if err != nil {
			return err
		}
		for _, dp := range dc.products {
			_, err := cat.CreateProduct(ctx, domain.Product{
				CategoryID: c.ID,
				Name:       dp.name,
				Price:      decimal.RequireFromString(dp.price),
			})
			if errors.Is(err, domain.ErrConstraintViolation) {
				continue
			}
			if err != nil {
				return err
			}
			applog.Info(nil, "seed.product", map[string]any{"category": c.Name, "product": dp.name})
		}
	}
	return nil
}
