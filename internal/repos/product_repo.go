package repos

import (
	"context"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shopfront/internal/domain"
	"shopfront/internal/validate"
)

const productCols = `id, category_id, name, description, price, image, created_at, updated_at`

// productOrders whitelists the columns List may sort by.
var productOrders = map[string]string{
	"name":       "name",
	"price":      "price",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

// productRow is what goes over the wire to the database: price travels as a
// fixed two-place string so no backend rounds it through a float.
type productRow struct {
	domain.Product
	PriceText string `db:"price_text"`
}

func toProductRow(p domain.Product) productRow {
	return productRow{Product: p, PriceText: validate.MoneyString(p.Price)}
}

func checkProduct(p *domain.Product) error {
	var err error
	if p.Name, err = validate.RequiredText("product", "name", p.Name, validate.ProductNameMax); err != nil {
		return err
	}
	if p.Description, err = validate.OptionalText("product", "description", p.Description, 0); err != nil {
		return err
	}
	if p.Image, err = validate.OptionalText("product", "image", p.Image, 255); err != nil {
		return err
	}
	if strings.TrimSpace(p.CategoryID) == "" {
		return domain.Invalid("product", "category_id", "required")
	}
	if err := validate.Money("product", "price", p.Price); err != nil {
		return err
	}
	// Hand back the stored scale, not whatever the caller passed.
	p.Price = p.Price.Round(validate.MoneyPlaces)
	return nil
}

// Create inserts p; created_at and updated_at are both set to now.
func (r *ProductRepo) Create(ctx context.Context, p domain.Product) (out domain.Product, err error) {
	defer func() { observe("product", "create", err) }()
	if err := checkProduct(&p); err != nil {
		return domain.Product{}, err
	}
	p.ID = uuid.NewString()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	err = withTx(ctx, r.db, "product", func(tx *sqlx.Tx) error {
		if err := mustExist(ctx, tx, "product", "category_id", "categories", p.CategoryID); err != nil {
			return err
		}
		if err := mustBeFree(ctx, tx, "product", "products", "name", p.Name, p.ID); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, `
		  INSERT INTO products(id, category_id, name, description, price, image, created_at, updated_at)
		  VALUES(:id, :category_id, :name, :description, :price_text, :image, :created_at, :updated_at)
		`, toProductRow(p))
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (r *ProductRepo) Get(ctx context.Context, id string) (p domain.Product, err error) {
	defer func() { observe("product", "get", err) }()
	err = r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`), id)
	if err != nil {
		return domain.Product{}, notFoundOr("product", id, err)
	}
	return p, nil
}

// Update applies the non-nil fields of patch and refreshes updated_at.
// created_at never changes.
func (r *ProductRepo) Update(ctx context.Context, id string, patch domain.ProductPatch) (out domain.Product, err error) {
	defer func() { observe("product", "update", err) }()
	err = withTx(ctx, r.db, "product", func(tx *sqlx.Tx) error {
		var p domain.Product
		if err := tx.GetContext(ctx, &p, tx.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`), id); err != nil {
			return notFoundOr("product", id, err)
		}
		if patch.CategoryID != nil {
			p.CategoryID = *patch.CategoryID
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.Image != nil {
			p.Image = *patch.Image
		}
		if err := checkProduct(&p); err != nil {
			return err
		}
		if patch.CategoryID != nil {
			if err := mustExist(ctx, tx, "product", "category_id", "categories", p.CategoryID); err != nil {
				return err
			}
		}
		if err := mustBeFree(ctx, tx, "product", "products", "name", p.Name, p.ID); err != nil {
			return err
		}
		p.UpdatedAt = now()
		if _, err := tx.NamedExecContext(ctx, `
		  UPDATE products
		  SET category_id = :category_id, name = :name, description = :description,
		      price = :price_text, image = :image, updated_at = :updated_at
		  WHERE id = :id
		`, toProductRow(p)); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return out, nil
}

// Delete removes the product and every order line that references it.
func (r *ProductRepo) Delete(ctx context.Context, id string) (removed Removed, err error) {
	defer func() { observe("product", "delete", err) }()
	return deleteRoot(ctx, r.db, "product", "products", id)
}

// List yields products matching f. Without OrderBy the order is by id.
func (r *ProductRepo) List(ctx context.Context, f domain.ProductFilter) iter.Seq2[domain.Product, error] {
	where := []string{}
	args := []any{}
	if f.CategoryID != "" {
		where = append(where, `category_id = ?`)
		args = append(args, f.CategoryID)
	}
	if f.NameContains != "" {
		where = append(where, `LOWER(name) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.NameContains))
	}
	q := `SELECT ` + productCols + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY ` + productOrder(r.db.DriverName(), f.OrderBy)
	q, args = page(q, args, f.Limit, f.Offset)
	return scanSeq[domain.Product](ctx, r.db, "product", q, args...)
}

func productOrder(driver, orderBy string) string {
	dir := "ASC"
	if strings.HasPrefix(orderBy, "-") {
		dir = "DESC"
		orderBy = orderBy[1:]
	}
	col, ok := productOrders[orderBy]
	if !ok {
		return "id"
	}
	// sqlite keeps price as text; compare it numerically.
	if col == "price" && driver == DriverSQLite {
		col = "CAST(price AS REAL)"
	}
	return col + " " + dir + ", id"
}
