package handlers

import (
	"github.com/jmoiron/sqlx"

	"shopfront/internal/config"
	"shopfront/internal/media"
	"shopfront/internal/repos"
	"shopfront/internal/services"
)

type Deps struct {
	Accounts *services.AccountService
	Catalog  *services.CatalogService
	Orders   *services.OrderService
	Media    media.Store

	CategoryHandler *CategoryHandler
	ProductHandler  *ProductHandler
	UserHandler     *UserHandler
	OrderHandler    *OrderHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, store media.Store) *Deps {
	catRepo := repos.NewCategoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	userRepo := repos.NewUserRepo(db)
	profileRepo := repos.NewProfileRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	itemRepo := repos.NewOrderItemRepo(db)

	catalogSvc := services.NewCatalogService(catRepo, prodRepo, store)
	orderSvc := services.NewOrderService(orderRepo, itemRepo, prodRepo)
	accountSvc := services.NewAccountService(userRepo, profileRepo)

	maxUpload := cfg.MaxUpload
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}

	return &Deps{
		Accounts: accountSvc,
		Catalog:  catalogSvc,
		Orders:   orderSvc,
		Media:    store,

		CategoryHandler: &CategoryHandler{Catalog: catalogSvc},
		ProductHandler:  &ProductHandler{Catalog: catalogSvc, Orders: orderSvc, MaxUpload: maxUpload},
		UserHandler:     &UserHandler{Accounts: accountSvc, Orders: orderSvc},
		OrderHandler:    &OrderHandler{Orders: orderSvc},
	}
}
