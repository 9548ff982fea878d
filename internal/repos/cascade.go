package repos

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/jmoiron/sqlx"

	"shopfront/internal/domain"
)

// dependent is a table whose fk column points at the parent's id.
type dependent struct {
	table string
	fk    string
}

// cascadeGraph lists, per parent table, every table that must go when a
// parent row goes. Nothing else deletes dependents.
//
//	categories -> products -> order_items
//	users      -> orders   -> order_items
//	users      -> user_profiles
var cascadeGraph = map[string][]dependent{
	"categories": {{table: "products", fk: "category_id"}},
	"products":   {{table: "order_items", fk: "product_id"}},
	"users":      {{table: "user_profiles", fk: "user_id"}, {table: "orders", fk: "user_id"}},
	"orders":     {{table: "order_items", fk: "order_id"}},
}

// inChunk keeps IN (...) lists under every backend's bind-variable limit.
const inChunk = 500

// Removed counts deleted rows per table for one cascading delete.
type Removed map[string]int64

// Total is the number of rows removed across all tables.
func (r Removed) Total() int64 {
	var n int64
	for _, v := range r {
		n += v
	}
	return n
}

// Tables lists the touched tables in a stable order.
func (r Removed) Tables() []string { return slices.Sorted(maps.Keys(r)) }

// cascadeDelete removes the rows of table with the given ids and, depth first,
// everything that references them. Must run inside tx.
func cascadeDelete(ctx context.Context, tx *sqlx.Tx, table string, ids []string, removed Removed) error {
	if len(ids) == 0 {
		return nil
	}
	for _, dep := range cascadeGraph[table] {
		childIDs, err := selectIn(ctx, tx, `SELECT id FROM `+dep.table+` WHERE `+dep.fk+` IN (?)`, ids)
		if err != nil {
			return fmt.Errorf("cascade %s -> %s: %w", table, dep.table, err)
		}
		if err := cascadeDelete(ctx, tx, dep.table, childIDs, removed); err != nil {
			return err
		}
	}
	for chunk := range slices.Chunk(ids, inChunk) {
		q, args, err := sqlx.In(`DELETE FROM `+table+` WHERE id IN (?)`, chunk)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
		if err != nil {
			return fmt.Errorf("cascade delete %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		removed[table] += n
	}
	return nil
}

func selectIn(ctx context.Context, tx *sqlx.Tx, query string, ids []string) ([]string, error) {
	var out []string
	for chunk := range slices.Chunk(ids, inChunk) {
		q, args, err := sqlx.In(query, chunk)
		if err != nil {
			return nil, err
		}
		var part []string
		if err := tx.SelectContext(ctx, &part, tx.Rebind(q), args...); err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

// deleteRoot is the shared body of every repo's Delete: NotFound when the row
// is absent, otherwise one transaction removing the row and its dependents.
func deleteRoot(ctx context.Context, db *sqlx.DB, entity, table, id string) (Removed, error) {
	removed := Removed{}
	err := withTx(ctx, db, entity, func(tx *sqlx.Tx) error {
		ok, err := exists(ctx, tx, table, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound(entity, id)
		}
		return cascadeDelete(ctx, tx, table, []string{id}, removed)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
