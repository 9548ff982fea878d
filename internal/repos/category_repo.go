package repos

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shopfront/internal/domain"
	"shopfront/internal/validate"
)

const categoryCols = `id, name, description`

type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

func checkCategory(c *domain.Category) error {
	var err error
	if c.Name, err = validate.RequiredText("category", "name", c.Name, validate.CategoryNameMax); err != nil {
		return err
	}
	c.Description, err = validate.OptionalText("category", "description", c.Description, 0)
	return err
}

// Create inserts c and returns it with its assigned id.
func (r *CategoryRepo) Create(ctx context.Context, c domain.Category) (out domain.Category, err error) {
	defer func() { observe("category", "create", err) }()
	if err := checkCategory(&c); err != nil {
		return domain.Category{}, err
	}
	c.ID = uuid.NewString()
	err = withTx(ctx, r.db, "category", func(tx *sqlx.Tx) error {
		if err := mustBeFree(ctx, tx, "category", "categories", "name", c.Name, c.ID); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO categories(id, name, description) VALUES(:id, :name, :description)`, c)
		return err
	})
	if err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func (r *CategoryRepo) Get(ctx context.Context, id string) (c domain.Category, err error) {
	defer func() { observe("category", "get", err) }()
	err = r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT `+categoryCols+` FROM categories WHERE id = ?`), id)
	if err != nil {
		return domain.Category{}, notFoundOr("category", id, err)
	}
	return c, nil
}

// ByName looks a category up by its unique name.
func (r *CategoryRepo) ByName(ctx context.Context, name string) (c domain.Category, err error) {
	defer func() { observe("category", "get", err) }()
	err = r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT `+categoryCols+` FROM categories WHERE name = ?`), name)
	if err != nil {
		return domain.Category{}, notFoundOr("category", name, err)
	}
	return c, nil
}

// Update applies the non-nil fields of p.
func (r *CategoryRepo) Update(ctx context.Context, id string, p domain.CategoryPatch) (out domain.Category, err error) {
	defer func() { observe("category", "update", err) }()
	err = withTx(ctx, r.db, "category", func(tx *sqlx.Tx) error {
		var c domain.Category
		if err := tx.GetContext(ctx, &c, tx.Rebind(`SELECT `+categoryCols+` FROM categories WHERE id = ?`), id); err != nil {
			return notFoundOr("category", id, err)
		}
		if p.Name != nil {
			c.Name = *p.Name
		}
		if p.Description != nil {
			c.Description = *p.Description
		}
		if err := checkCategory(&c); err != nil {
			return err
		}
		if err := mustBeFree(ctx, tx, "category", "categories", "name", c.Name, c.ID); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx,
			`UPDATE categories SET name = :name, description = :description WHERE id = :id`, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return domain.Category{}, err
	}
	return out, nil
}

// Delete removes the category together with its products and their order lines.
func (r *CategoryRepo) Delete(ctx context.Context, id string) (removed Removed, err error) {
	defer func() { observe("category", "delete", err) }()
	return deleteRoot(ctx, r.db, "category", "categories", id)
}

// List yields categories in id order, or name order when filtering by name.
func (r *CategoryRepo) List(ctx context.Context, f domain.CategoryFilter) iter.Seq2[domain.Category, error] {
	q := `SELECT ` + categoryCols + ` FROM categories`
	var args []any
	order := ` ORDER BY id`
	if f.NameContains != "" {
		q += ` WHERE LOWER(name) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(f.NameContains))
		order = ` ORDER BY name`
	}
	q, args = page(q+order, args, f.Limit, f.Offset)
	return scanSeq[domain.Category](ctx, r.db, "category", q, args...)
}
