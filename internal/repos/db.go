package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/metrics"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// now is the store clock. Timestamps are kept at microsecond precision so
// both backends round-trip them unchanged.
var now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// OpenDB opens the backing store and makes sure the schema exists.
// driver is "sqlite" (default) or "postgres"/"pgx".
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	driver = normalizeDriver(driver)
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// An in-memory database lives and dies with its connection.
		if isMemoryDSN(dsn) {
			db.SetMaxOpenConns(1)
		} else {
			db.SetMaxOpenConns(4)
		}
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		return DriverPostgres
	default:
		return DriverSQLite
	}
}

func isMemoryDSN(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// sqliteDSN turns on foreign keys and immediate write transactions for every
// pooled connection.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "shopfront.db"
	}
	params := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)", "_txlock=immediate"}
	if !isMemoryDSN(dsn) {
		params = append(params, "_pragma=journal_mode(wal)")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// EnsureSchema creates all tables idempotently for the connected dialect.
func EnsureSchema(db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == DriverPostgres {
		schema = postgresSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const sqliteSchema = `
-- Users (mirror of the external identity provider)
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  is_staff INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL
);

-- Categories
CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL DEFAULT ''
);

-- Products
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL REFERENCES categories(id),
  name TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL,
  image TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);

-- Profiles
CREATE TABLE IF NOT EXISTS user_profiles(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE REFERENCES users(id),
  phone_number TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT ''
);

-- Orders
CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  created_at TIMESTAMP NOT NULL,
  total_price TEXT NOT NULL DEFAULT '0.00'
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);

CREATE TABLE IF NOT EXISTS order_items(
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id),
  product_id TEXT NOT NULL REFERENCES products(id),
  quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 1),
  UNIQUE(order_id, product_id)
);
CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id)
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  username VARCHAR(150) NOT NULL UNIQUE,
  email VARCHAR(254) NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  is_staff BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  name VARCHAR(100) NOT NULL UNIQUE,
  description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL REFERENCES categories(id),
  name VARCHAR(255) NOT NULL UNIQUE,
  description TEXT NOT NULL DEFAULT '',
  price NUMERIC(10,2) NOT NULL,
  image TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);

CREATE TABLE IF NOT EXISTS user_profiles(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE REFERENCES users(id),
  phone_number VARCHAR(15) NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  created_at TIMESTAMPTZ NOT NULL,
  total_price NUMERIC(10,2) NOT NULL DEFAULT 0.00
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);

CREATE TABLE IF NOT EXISTS order_items(
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id),
  product_id TEXT NOT NULL REFERENCES products(id),
  quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 1),
  UNIQUE(order_id, product_id)
);
CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id)
`

// withTx runs fn inside one transaction. Any error rolls everything back.
func withTx(ctx context.Context, db *sqlx.DB, entity string, fn func(tx *sqlx.Tx) error) error {
	var opts *sql.TxOptions
	if db.DriverName() == DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", entity, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return mapErr(entity, err)
	}
	if err := tx.Commit(); err != nil {
		return mapErr(entity, fmt.Errorf("%s: commit: %w", entity, err))
	}
	return nil
}

// mapErr converts driver constraint failures into domain error kinds. Errors
// that already carry a kind pass through.
func mapErr(entity string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.Error{Kind: domain.ErrNotFound, Entity: entity}
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		msg := se.Error()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
			code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "UNIQUE"):
			return domain.Conflict(entity, uniqueColumn(msg), "already exists")
		case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
			code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "FOREIGN KEY"):
			return &domain.Error{Kind: domain.ErrReference, Entity: entity, Msg: "foreign key constraint failed"}
		case code == sqlite3.SQLITE_CONSTRAINT_CHECK,
			code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "CHECK"):
			return &domain.Error{Kind: domain.ErrValidation, Entity: entity, Msg: "check constraint failed"}
		}
		return err
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "23505":
			return domain.Conflict(entity, pe.ColumnName, pe.ConstraintName)
		case "23503":
			return &domain.Error{Kind: domain.ErrReference, Entity: entity, Msg: pe.ConstraintName}
		case "23514", "22003", "22001":
			return &domain.Error{Kind: domain.ErrValidation, Entity: entity, Msg: pe.Message}
		case "40001":
			return domain.Conflict(entity, "", "concurrent transaction conflict")
		}
	}
	return err
}

// uniqueColumn pulls "name" out of "UNIQUE constraint failed: categories.name".
func uniqueColumn(msg string) string {
	i := strings.LastIndex(msg, "failed: ")
	if i < 0 {
		return ""
	}
	cols := msg[i+len("failed: "):]
	if j := strings.Index(cols, " ("); j >= 0 {
		cols = cols[:j]
	}
	parts := strings.Split(cols, ",")
	var out []string
	for _, p := range parts {
		if k := strings.LastIndex(p, "."); k >= 0 {
			p = p[k+1:]
		}
		out = append(out, strings.TrimSpace(p))
	}
	return strings.Join(out, ",")
}

// exists reports whether table has a row with the given id.
func exists(ctx context.Context, tx *sqlx.Tx, table, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var n int
	err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM `+table+` WHERE id = ?`), id)
	return n > 0, err
}

// mustExist turns a missing referenced row into a ReferenceError.
func mustExist(ctx context.Context, tx *sqlx.Tx, entity, field, table, id string) error {
	ok, err := exists(ctx, tx, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.DanglingRef(entity, field, id)
	}
	return nil
}

// taken reports whether another row already holds value in column.
func taken(ctx context.Context, tx *sqlx.Tx, table, column, value, exceptID string) (bool, error) {
	var n int
	err := tx.GetContext(ctx, &n,
		tx.Rebind(`SELECT COUNT(*) FROM `+table+` WHERE `+column+` = ? AND id <> ?`), value, exceptID)
	return n > 0, err
}

// mustBeFree turns a uniqueness clash into a ConstraintViolation.
func mustBeFree(ctx context.Context, tx *sqlx.Tx, entity, table, column, value, exceptID string) error {
	clash, err := taken(ctx, tx, table, column, value, exceptID)
	if err != nil {
		return err
	}
	if clash {
		return domain.Conflict(entity, column, fmt.Sprintf("%q already exists", value))
	}
	return nil
}

// scanSeq returns a lazy, restartable sequence over the rows of query. Each
// range re-runs the query and holds a pooled connection until the loop ends,
// so callers on an in-memory store must not issue store calls from inside the
// loop body; use Collect for that.
func scanSeq[T any](ctx context.Context, db *sqlx.DB, entity, query string, args ...any) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		rows, err := db.QueryxContext(ctx, db.Rebind(query), args...)
		if err != nil {
			yield(zero, fmt.Errorf("%s: list: %w", entity, err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var v T
			if err := rows.StructScan(&v); err != nil {
				yield(zero, fmt.Errorf("%s: scan: %w", entity, err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, fmt.Errorf("%s: list: %w", entity, err))
		}
	}
}

// Collect drains a list sequence into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := []T{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// page appends LIMIT/OFFSET when asked for.
func page(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(offset, 0))
	}
	return query, args
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

// observe counts one store operation and logs failures that are not caller
// mistakes.
func observe(entity, op string, err error) {
	metrics.ObserveStore(entity, op, errorKind(err))
	if err != nil && errorKind(err) == "error" {
		applog.Error(nil, "store."+entity+"."+op, err, nil)
	}
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConstraintViolation):
		return "constraint_violation"
	case errors.Is(err, domain.ErrReference):
		return "reference_error"
	case errors.Is(err, domain.ErrValidation):
		return "validation_error"
	}
	return "error"
}

// notFoundOr maps sql.ErrNoRows to NotFound and wraps anything else.
func notFoundOr(entity, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(entity, id)
	}
	return fmt.Errorf("%s: get %s: %w", entity, id, err)
}
