package services

import (
	"context"
	"fmt"
	"io"

	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/media"
	"shopfront/internal/repos"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

type CatalogService struct {
	Cats  *repos.CategoryRepo
	Prods *repos.ProductRepo
	Media media.Store
}

func NewCatalogService(cats *repos.CategoryRepo, prods *repos.ProductRepo, store media.Store) *CatalogService {
	return &CatalogService{Cats: cats, Prods: prods, Media: store}
}

// paging turns a 1-based page into limit/offset.
func paging(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, (page - 1) * pageSize
}

// ---------- Categories ----------

func (s *CatalogService) CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	return s.Cats.Create(ctx, c)
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	return s.Cats.Get(ctx, id)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, p domain.CategoryPatch) (domain.Category, error) {
	return s.Cats.Update(ctx, id, p)
}

// DeleteCategory drops the category with all of its products and their order lines.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) (repos.Removed, error) {
	return s.Cats.Delete(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context, q string, page, pageSize int) ([]domain.Category, error) {
	limit, offset := paging(page, pageSize)
	return repos.Collect(s.Cats.List(ctx, domain.CategoryFilter{NameContains: q, Limit: limit, Offset: offset}))
}

// ---------- Products ----------

func (s *CatalogService) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	return s.Prods.Create(ctx, p)
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.Prods.Get(ctx, id)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, p domain.ProductPatch) (domain.Product, error) {
	return s.Prods.Update(ctx, id, p)
}

// DeleteProduct removes the product and its order lines. The image asset is
// left in place.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) (repos.Removed, error) {
	return s.Prods.Delete(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, f domain.ProductFilter, page, pageSize int) ([]domain.Product, error) {
	f.Limit, f.Offset = paging(page, pageSize)
	return repos.Collect(s.Prods.List(ctx, f))
}

// ListProductsByCategory is ListProducts for one category that must exist.
func (s *CatalogService) ListProductsByCategory(ctx context.Context, catID string, page, pageSize int) ([]domain.Product, error) {
	if _, err := s.Cats.Get(ctx, catID); err != nil {
		return nil, err
	}
	return s.ListProducts(ctx, domain.ProductFilter{CategoryID: catID, OrderBy: "-created_at"}, page, pageSize)
}

// SetProductImage stores an uploaded image and points the product at it. The
// new asset is removed again if the product cannot be updated; the previous
// one is removed once the product points at the new one.
func (s *CatalogService) SetProductImage(ctx context.Context, productID, filename string, r io.Reader) (domain.Product, error) {
	if s.Media == nil {
		return domain.Product{}, fmt.Errorf("catalog: no media store configured")
	}
	old, err := s.Prods.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	ct, err := media.ImageType(filename)
	if err != nil {
		return domain.Product{}, domain.Invalid("product", "image", err.Error())
	}
	key, err := media.ProductImageKey(productID, filename)
	if err != nil {
		return domain.Product{}, domain.Invalid("product", "image", err.Error())
	}
	if err := s.Media.Put(ctx, key, r, ct); err != nil {
		return domain.Product{}, fmt.Errorf("catalog: store image: %w", err)
	}
	p, err := s.Prods.Update(ctx, productID, domain.ProductPatch{Image: &key})
	if err != nil {
		if derr := s.Media.Delete(ctx, key); derr != nil {
			applog.Error(nil, "catalog.image.cleanup.fail", derr, map[string]any{"key": key})
		}
		return domain.Product{}, err
	}
	if old.Image != "" && old.Image != key {
		if derr := s.Media.Delete(ctx, old.Image); derr != nil {
			applog.Error(nil, "catalog.image.cleanup.fail", derr, map[string]any{"key": old.Image})
		}
	}
	return p, nil
}

// ImageURL is where clients fetch the product's image, or "" when it has none.
func (s *CatalogService) ImageURL(p domain.Product) string {
	if p.Image == "" || s.Media == nil {
		return ""
	}
	return s.Media.URL(p.Image)
}
