package repos

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shopfront/internal/domain"
	"shopfront/internal/validate"
)

const userCols = `id, username, email, password_hash, is_staff, created_at`

// UserRepo keeps the local mirror of identities issued by the identity
// provider. Orders and profiles reference these rows.
type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u. The caller supplies the password hash.
func (r *UserRepo) Create(ctx context.Context, u domain.User) (out domain.User, err error) {
	defer func() { observe("user", "create", err) }()
	if u.Username, err = validate.Username(u.Username); err != nil {
		return domain.User{}, err
	}
	if u.Email, err = validate.Email(u.Email); err != nil {
		return domain.User{}, err
	}
	if u.Hash == "" {
		return domain.User{}, domain.Invalid("user", "password", "required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = now()
	err = withTx(ctx, r.DB, "user", func(tx *sqlx.Tx) error {
		if err := mustBeFree(ctx, tx, "user", "users", "username", u.Username, u.ID); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, `
		  INSERT INTO users(id, username, email, password_hash, is_staff, created_at)
		  VALUES(:id, :username, :email, :password_hash, :is_staff, :created_at)
		`, u)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id string) (u domain.User, err error) {
	defer func() { observe("user", "get", err) }()
	err = r.DB.GetContext(ctx, &u, r.DB.Rebind(`SELECT `+userCols+` FROM users WHERE id = ?`), id)
	if err != nil {
		return domain.User{}, notFoundOr("user", id, err)
	}
	return u, nil
}

func (r *UserRepo) ByUsername(ctx context.Context, username string) (u domain.User, err error) {
	defer func() { observe("user", "get", err) }()
	err = r.DB.GetContext(ctx, &u, r.DB.Rebind(`SELECT `+userCols+` FROM users WHERE username = ?`), username)
	if err != nil {
		return domain.User{}, notFoundOr("user", username, err)
	}
	return u, nil
}

func (r *UserRepo) Update(ctx context.Context, id string, p domain.UserPatch) (out domain.User, err error) {
	defer func() { observe("user", "update", err) }()
	err = withTx(ctx, r.DB, "user", func(tx *sqlx.Tx) error {
		var u domain.User
		if err := tx.GetContext(ctx, &u, tx.Rebind(`SELECT `+userCols+` FROM users WHERE id = ?`), id); err != nil {
			return notFoundOr("user", id, err)
		}
		if p.Email != nil {
			email, err := validate.Email(*p.Email)
			if err != nil {
				return err
			}
			u.Email = email
		}
		if p.IsStaff != nil {
			u.IsStaff = *p.IsStaff
		}
		if _, err := tx.NamedExecContext(ctx,
			`UPDATE users SET email = :email, is_staff = :is_staff WHERE id = :id`, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return out, nil
}

// SetPasswordHash replaces the stored hash.
func (r *UserRepo) SetPasswordHash(ctx context.Context, id, hash string) (err error) {
	defer func() { observe("user", "update", err) }()
	return withTx(ctx, r.DB, "user", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET password_hash = ? WHERE id = ?`), hash, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("user", id)
		}
		return nil
	})
}

// Delete removes the user, the profile, every order and the orders' lines.
func (r *UserRepo) Delete(ctx context.Context, id string) (removed Removed, err error) {
	defer func() { observe("user", "delete", err) }()
	return deleteRoot(ctx, r.DB, "user", "users", id)
}

func (r *UserRepo) List(ctx context.Context, f domain.UserFilter) iter.Seq2[domain.User, error] {
	q := `SELECT ` + userCols + ` FROM users`
	var args []any
	if f.StaffOnly {
		q += ` WHERE is_staff = ?`
		args = append(args, true)
	}
	return scanSeq[domain.User](ctx, r.DB, "user", q+` ORDER BY id`, args...)
}
