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

const (
	orderCols     = `id, user_id, created_at, total_price`
	orderItemCols = `id, order_id, product_id, quantity`
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

type orderRow struct {
	domain.Order
	TotalText string `db:"total_text"`
}

func toOrderRow(o domain.Order) orderRow {
	return orderRow{Order: o, TotalText: validate.MoneyString(o.TotalPrice)}
}

func checkOrder(o *domain.Order) error {
	if strings.TrimSpace(o.UserID) == "" {
		return domain.Invalid("order", "user_id", "required")
	}
	if err := validate.Money("order", "total_price", o.TotalPrice); err != nil {
		return err
	}
	o.TotalPrice = o.TotalPrice.Round(validate.MoneyPlaces)
	return nil
}

func checkOrderItem(it *domain.OrderItem) error {
	if strings.TrimSpace(it.OrderID) == "" {
		return domain.Invalid("order_item", "order_id", "required")
	}
	if strings.TrimSpace(it.ProductID) == "" {
		return domain.Invalid("order_item", "product_id", "required")
	}
	return validate.Quantity(it.Quantity)
}

// ---------- Orders ----------

// Create inserts an order header. total_price is stored exactly as given.
func (r *OrderRepo) Create(ctx context.Context, o domain.Order) (out domain.Order, err error) {
	defer func() { observe("order", "create", err) }()
	if err := checkOrder(&o); err != nil {
		return domain.Order{}, err
	}
	o.ID = uuid.NewString()
	o.CreatedAt = now()
	err = withTx(ctx, r.db, "order", func(tx *sqlx.Tx) error {
		return insertOrder(ctx, tx, o)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func insertOrder(ctx context.Context, tx *sqlx.Tx, o domain.Order) error {
	if err := mustExist(ctx, tx, "order", "user_id", "users", o.UserID); err != nil {
		return err
	}
	_, err := tx.NamedExecContext(ctx, `
	  INSERT INTO orders(id, user_id, created_at, total_price)
	  VALUES(:id, :user_id, :created_at, :total_text)
	`, toOrderRow(o))
	return err
}

// Place creates an order and all of its lines in one transaction. Either all
// rows commit or none do.
func (r *OrderRepo) Place(ctx context.Context, o domain.Order, items []domain.OrderItem) (out domain.Order, lines []domain.OrderItem, err error) {
	defer func() { observe("order", "place", err) }()
	if err := checkOrder(&o); err != nil {
		return domain.Order{}, nil, err
	}
	o.ID = uuid.NewString()
	o.CreatedAt = now()
	lines = make([]domain.OrderItem, 0, len(items))
	for _, it := range items {
		it.OrderID = o.ID
		if err := checkOrderItem(&it); err != nil {
			return domain.Order{}, nil, err
		}
		it.ID = uuid.NewString()
		lines = append(lines, it)
	}
	err = withTx(ctx, r.db, "order", func(tx *sqlx.Tx) error {
		if err := insertOrder(ctx, tx, o); err != nil {
			return err
		}
		for _, it := range lines {
			if err := insertOrderItem(ctx, tx, it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, nil, err
	}
	return o, lines, nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (o domain.Order, err error) {
	defer func() { observe("order", "get", err) }()
	err = r.db.GetContext(ctx, &o, r.db.Rebind(`SELECT `+orderCols+` FROM orders WHERE id = ?`), id)
	if err != nil {
		return domain.Order{}, notFoundOr("order", id, err)
	}
	return o, nil
}

// Update edits the header fields. created_at is write-once.
func (r *OrderRepo) Update(ctx context.Context, id string, p domain.OrderPatch) (out domain.Order, err error) {
	defer func() { observe("order", "update", err) }()
	err = withTx(ctx, r.db, "order", func(tx *sqlx.Tx) error {
		var o domain.Order
		if err := tx.GetContext(ctx, &o, tx.Rebind(`SELECT `+orderCols+` FROM orders WHERE id = ?`), id); err != nil {
			return notFoundOr("order", id, err)
		}
		if p.UserID != nil {
			o.UserID = *p.UserID
		}
		if p.TotalPrice != nil {
			o.TotalPrice = *p.TotalPrice
		}
		if err := checkOrder(&o); err != nil {
			return err
		}
		if p.UserID != nil {
			if err := mustExist(ctx, tx, "order", "user_id", "users", o.UserID); err != nil {
				return err
			}
		}
		if _, err := tx.NamedExecContext(ctx,
			`UPDATE orders SET user_id = :user_id, total_price = :total_text WHERE id = :id`, toOrderRow(o)); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return out, nil
}

// Delete removes the order and its lines.
func (r *OrderRepo) Delete(ctx context.Context, id string) (removed Removed, err error) {
	defer func() { observe("order", "delete", err) }()
	return deleteRoot(ctx, r.db, "order", "orders", id)
}

func (r *OrderRepo) List(ctx context.Context, f domain.OrderFilter) iter.Seq2[domain.Order, error] {
	q := `SELECT ` + orderCols + ` FROM orders`
	var args []any
	if f.UserID != "" {
		q += ` WHERE user_id = ?`
		args = append(args, f.UserID)
	}
	if f.NewestFirst {
		q += ` ORDER BY created_at DESC, id`
	} else {
		q += ` ORDER BY id`
	}
	q, args = page(q, args, f.Limit, f.Offset)
	return scanSeq[domain.Order](ctx, r.db, "order", q, args...)
}

// ---------- Order items ----------

type OrderItemRepo struct{ db *sqlx.DB }

func NewOrderItemRepo(db *sqlx.DB) *OrderItemRepo { return &OrderItemRepo{db: db} }

func insertOrderItem(ctx context.Context, tx *sqlx.Tx, it domain.OrderItem) error {
	if err := mustExist(ctx, tx, "order_item", "order_id", "orders", it.OrderID); err != nil {
		return err
	}
	if err := mustExist(ctx, tx, "order_item", "product_id", "products", it.ProductID); err != nil {
		return err
	}
	if err := mustBeUniqueLine(ctx, tx, it); err != nil {
		return err
	}
	_, err := tx.NamedExecContext(ctx, `
	  INSERT INTO order_items(id, order_id, product_id, quantity)
	  VALUES(:id, :order_id, :product_id, :quantity)
	`, it)
	return err
}

// mustBeUniqueLine enforces one line per (order, product).
func mustBeUniqueLine(ctx context.Context, tx *sqlx.Tx, it domain.OrderItem) error {
	var n int
	err := tx.GetContext(ctx, &n, tx.Rebind(`
	  SELECT COUNT(*) FROM order_items WHERE order_id = ? AND product_id = ? AND id <> ?
	`), it.OrderID, it.ProductID, it.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.Conflict("order_item", "order_id,product_id", "product already on this order")
	}
	return nil
}

// Create adds one line to an existing order.
func (r *OrderItemRepo) Create(ctx context.Context, it domain.OrderItem) (out domain.OrderItem, err error) {
	defer func() { observe("order_item", "create", err) }()
	if err := checkOrderItem(&it); err != nil {
		return domain.OrderItem{}, err
	}
	it.ID = uuid.NewString()
	err = withTx(ctx, r.db, "order_item", func(tx *sqlx.Tx) error {
		return insertOrderItem(ctx, tx, it)
	})
	if err != nil {
		return domain.OrderItem{}, err
	}
	return it, nil
}

func (r *OrderItemRepo) Get(ctx context.Context, id string) (it domain.OrderItem, err error) {
	defer func() { observe("order_item", "get", err) }()
	err = r.db.GetContext(ctx, &it, r.db.Rebind(`SELECT `+orderItemCols+` FROM order_items WHERE id = ?`), id)
	if err != nil {
		return domain.OrderItem{}, notFoundOr("order_item", id, err)
	}
	return it, nil
}

func (r *OrderItemRepo) Update(ctx context.Context, id string, p domain.OrderItemPatch) (out domain.OrderItem, err error) {
	defer func() { observe("order_item", "update", err) }()
	err = withTx(ctx, r.db, "order_item", func(tx *sqlx.Tx) error {
		var it domain.OrderItem
		if err := tx.GetContext(ctx, &it, tx.Rebind(`SELECT `+orderItemCols+` FROM order_items WHERE id = ?`), id); err != nil {
			return notFoundOr("order_item", id, err)
		}
		if p.OrderID != nil {
			it.OrderID = *p.OrderID
		}
		if p.ProductID != nil {
			it.ProductID = *p.ProductID
		}
		if p.Quantity != nil {
			it.Quantity = *p.Quantity
		}
		if err := checkOrderItem(&it); err != nil {
			return err
		}
		if p.OrderID != nil {
			if err := mustExist(ctx, tx, "order_item", "order_id", "orders", it.OrderID); err != nil {
				return err
			}
		}
		if p.ProductID != nil {
			if err := mustExist(ctx, tx, "order_item", "product_id", "products", it.ProductID); err != nil {
				return err
			}
		}
		if err := mustBeUniqueLine(ctx, tx, it); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, `
		  UPDATE order_items SET order_id = :order_id, product_id = :product_id, quantity = :quantity
		  WHERE id = :id
		`, it); err != nil {
			return err
		}
		out = it
		return nil
	})
	if err != nil {
		return domain.OrderItem{}, err
	}
	return out, nil
}

func (r *OrderItemRepo) Delete(ctx context.Context, id string) (removed Removed, err error) {
	defer func() { observe("order_item", "delete", err) }()
	return deleteRoot(ctx, r.db, "order_item", "order_items", id)
}

// List yields lines of one order, of one product, or all lines, in id order.
func (r *OrderItemRepo) List(ctx context.Context, f domain.OrderItemFilter) iter.Seq2[domain.OrderItem, error] {
	where := []string{}
	args := []any{}
	if f.OrderID != "" {
		where = append(where, `order_id = ?`)
		args = append(args, f.OrderID)
	}
	if f.ProductID != "" {
		where = append(where, `product_id = ?`)
		args = append(args, f.ProductID)
	}
	q := `SELECT ` + orderItemCols + ` FROM order_items`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	return scanSeq[domain.OrderItem](ctx, r.db, "order_item", q+` ORDER BY id`, args...)
}
