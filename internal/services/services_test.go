package services_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"shopfront/internal/domain"
	"shopfront/internal/media"
	"shopfront/internal/repos"
	"shopfront/internal/services"
)

type app struct {
	catalog  *services.CatalogService
	orders   *services.OrderService
	accounts *services.AccountService
	store    *media.Local
}

func newApp(t *testing.T) *app {
	t.Helper()
	db, err := repos.OpenDB(repos.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := media.NewLocal(t.TempDir(), "/media")
	require.NoError(t, err)

	cats, prods := repos.NewCategoryRepo(db), repos.NewProductRepo(db)
	acc := services.NewAccountService(repos.NewUserRepo(db), repos.NewProfileRepo(db))
	acc.Cost = bcrypt.MinCost
	return &app{
		catalog:  services.NewCatalogService(cats, prods, store),
		orders:   services.NewOrderService(repos.NewOrderRepo(db), repos.NewOrderItemRepo(db), prods),
		accounts: acc,
		store:    store,
	}
}

func (a *app) book(t *testing.T) domain.Product {
	t.Helper()
	ctx := context.Background()
	c, err := a.catalog.CreateCategory(ctx, domain.Category{Name: "Books"})
	require.NoError(t, err)
	p, err := a.catalog.CreateProduct(ctx, domain.Product{CategoryID: c.ID, Name: "Go in Action", Price: decimal.RequireFromString("39.99")})
	require.NoError(t, err)
	return p
}

func (a *app) customer(t *testing.T, name string) domain.User {
	t.Helper()
	u, err := a.accounts.Register(context.Background(), name, name+"@example.com", "Passw0rd!", false)
	require.NoError(t, err)
	return u
}

func TestPlaceMergesDuplicateLines(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	p := a.book(t)
	u := a.customer(t, "alice")

	view, err := a.orders.Place(ctx, u.ID, decimal.RequireFromString("119.97"), []services.Line{
		{ProductID: p.ID, Quantity: 1},
		{ProductID: p.ID, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, "Go in Action x 3", view.Items[0].Label)
	assert.True(t, strings.HasPrefix(view.Label, "Order #"+view.ID+" from "))
	assert.Equal(t, "119.97", view.TotalPrice.StringFixed(2))

	detail, err := a.orders.Detail(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Items[0].Label, detail.Items[0].Label)
}

func TestPlaceRejectsBadInput(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	p := a.book(t)
	u := a.customer(t, "bob")

	_, err := a.orders.Place(ctx, u.ID, decimal.Zero, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = a.orders.Place(ctx, u.ID, decimal.Zero, []services.Line{{ProductID: p.ID, Quantity: 0}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// A bad line is rejected even when merging would make the sum positive.
	_, err = a.orders.Place(ctx, u.ID, decimal.Zero, []services.Line{{ProductID: p.ID, Quantity: 3}, {ProductID: p.ID, Quantity: -2}})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = a.orders.Place(ctx, u.ID, decimal.Zero, []services.Line{{ProductID: p.ID, Quantity: 0}, {ProductID: p.ID, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = a.orders.Place(ctx, "ghost", decimal.Zero, []services.Line{{ProductID: p.ID, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrReference)

	history, err := a.orders.History(ctx, u.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryNewestFirst(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	p := a.book(t)
	u := a.customer(t, "carol")

	var ids []string
	for range 3 {
		v, err := a.orders.Place(ctx, u.ID, decimal.Zero, []services.Line{{ProductID: p.ID, Quantity: 1}})
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}
	history, err := a.orders.History(ctx, u.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, o := range history {
		assert.Contains(t, ids, o.ID)
	}
	assert.False(t, history[0].CreatedAt.Before(history[1].CreatedAt))
}

func TestAccounts(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	_, err := a.accounts.Register(ctx, "weak", "", "password", true)
	assert.ErrorIs(t, err, domain.ErrValidation)

	admin, err := a.accounts.Register(ctx, "admin", "admin@example.com", "Admin#2025", true)
	require.NoError(t, err)
	assert.NotEqual(t, "Admin#2025", admin.Hash)

	_, err = a.accounts.Register(ctx, "admin", "", "Admin#2025", false)
	assert.ErrorIs(t, err, domain.ErrConstraintViolation)

	u, err := a.accounts.StaffLogin(ctx, "admin", "Admin#2025")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, u.ID)

	_, err = a.accounts.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, services.ErrBadCreds)
	_, err = a.accounts.Login(ctx, "nobody", "Admin#2025")
	assert.ErrorIs(t, err, services.ErrBadCreds)

	a.customer(t, "dora")
	_, err = a.accounts.StaffLogin(ctx, "dora", "Passw0rd!")
	assert.ErrorIs(t, err, services.ErrNotStaff)

	require.NoError(t, a.accounts.SetPassword(ctx, admin.ID, "N3w#Secret"))
	_, err = a.accounts.StaffLogin(ctx, "admin", "N3w#Secret")
	assert.NoError(t, err)

	staff, err := a.accounts.ListUsers(ctx, true)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "admin", staff[0].Username)
}

func TestSaveProfileUpserts(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	u := a.customer(t, "erin")

	phone := "555-0100"
	first, err := a.accounts.SaveProfile(ctx, u.ID, domain.ProfilePatch{PhoneNumber: &phone})
	require.NoError(t, err)

	addr := "1 Main St"
	second, err := a.accounts.SaveProfile(ctx, u.ID, domain.ProfilePatch{Address: &addr})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "555-0100", second.PhoneNumber)
	assert.Equal(t, "1 Main St", second.Address)

	label, err := a.accounts.ProfileLabel(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "Profile erin", label)

	removed, err := a.accounts.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed["user_profiles"])
}

func TestSetProductImage(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	p := a.book(t)

	_, err := a.catalog.SetProductImage(ctx, p.ID, "cover.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	first, err := a.catalog.SetProductImage(ctx, p.ID, "cover.png", strings.NewReader("one"))
	require.NoError(t, err)
	require.NotEmpty(t, first.Image)
	assert.Equal(t, "/media/"+first.Image, a.catalog.ImageURL(first))
	assert.True(t, first.UpdatedAt.After(p.UpdatedAt) || first.UpdatedAt.Equal(p.UpdatedAt))

	second, err := a.catalog.SetProductImage(ctx, p.ID, "cover.jpg", strings.NewReader("two"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Image, second.Image)

	// The replaced asset is gone, the new one is readable.
	_, err = a.store.Open(ctx, first.Image)
	assert.ErrorIs(t, err, media.ErrNotFound)
	rc, err := a.store.Open(ctx, second.Image)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "two", string(b))

	_, err = a.catalog.SetProductImage(ctx, "missing", "cover.png", strings.NewReader("x"))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListProductsByCategory(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	p := a.book(t)

	got, err := a.catalog.ListProductsByCategory(ctx, p.CategoryID, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)

	_, err = a.catalog.ListProductsByCategory(ctx, "missing", 1, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSeedIsIdempotent(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	opts := services.SeedOptions{StaffUser: "admin", StaffEmail: "admin@example.com", StaffPassword: "Admin#2025"}

	require.NoError(t, services.Seed(ctx, a.catalog, a.accounts, opts))
	require.NoError(t, services.Seed(ctx, a.catalog, a.accounts, opts))

	cats, err := a.catalog.ListCategories(ctx, "", 1, 0)
	require.NoError(t, err)
	assert.Len(t, cats, 2)

	books, err := a.catalog.Cats.ByName(ctx, "Books")
	require.NoError(t, err)
	prods, err := a.catalog.ListProducts(ctx, domain.ProductFilter{CategoryID: books.ID, NameContains: "Go in Action"}, 1, 0)
	require.NoError(t, err)
	require.Len(t, prods, 1)
	assert.Equal(t, "39.99", prods[0].Price.StringFixed(2))

	_, err = a.accounts.StaffLogin(ctx, "admin", "Admin#2025")
	assert.NoError(t, err)
}
