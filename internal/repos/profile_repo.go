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

const profileCols = `id, user_id, phone_number, address`

// ProfileRepo stores the one-to-one UserProfile rows.
type ProfileRepo struct{ db *sqlx.DB }

func NewProfileRepo(db *sqlx.DB) *ProfileRepo { return &ProfileRepo{db: db} }

func checkProfile(p *domain.UserProfile) error {
	var err error
	if p.PhoneNumber, err = validate.OptionalText("user_profile", "phone_number", p.PhoneNumber, validate.PhoneMax); err != nil {
		return err
	}
	p.Address, err = validate.OptionalText("user_profile", "address", p.Address, 0)
	return err
}

// Create inserts a profile; a user can have only one.
func (r *ProfileRepo) Create(ctx context.Context, p domain.UserProfile) (out domain.UserProfile, err error) {
	defer func() { observe("user_profile", "create", err) }()
	if strings.TrimSpace(p.UserID) == "" {
		return domain.UserProfile{}, domain.Invalid("user_profile", "user_id", "required")
	}
	if err := checkProfile(&p); err != nil {
		return domain.UserProfile{}, err
	}
	p.ID = uuid.NewString()
	err = withTx(ctx, r.db, "user_profile", func(tx *sqlx.Tx) error {
		if err := mustExist(ctx, tx, "user_profile", "user_id", "users", p.UserID); err != nil {
			return err
		}
		if err := mustBeFree(ctx, tx, "user_profile", "user_profiles", "user_id", p.UserID, p.ID); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, `
		  INSERT INTO user_profiles(id, user_id, phone_number, address)
		  VALUES(:id, :user_id, :phone_number, :address)
		`, p)
		return err
	})
	if err != nil {
		return domain.UserProfile{}, err
	}
	return p, nil
}

func (r *ProfileRepo) Get(ctx context.Context, id string) (p domain.UserProfile, err error) {
	defer func() { observe("user_profile", "get", err) }()
	err = r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+profileCols+` FROM user_profiles WHERE id = ?`), id)
	if err != nil {
		return domain.UserProfile{}, notFoundOr("user_profile", id, err)
	}
	return p, nil
}

// ByUser returns the profile attached to userID.
func (r *ProfileRepo) ByUser(ctx context.Context, userID string) (p domain.UserProfile, err error) {
	defer func() { observe("user_profile", "get", err) }()
	err = r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+profileCols+` FROM user_profiles WHERE user_id = ?`), userID)
	if err != nil {
		return domain.UserProfile{}, notFoundOr("user_profile", userID, err)
	}
	return p, nil
}

func (r *ProfileRepo) Update(ctx context.Context, id string, patch domain.ProfilePatch) (out domain.UserProfile, err error) {
	defer func() { observe("user_profile", "update", err) }()
	err = withTx(ctx, r.db, "user_profile", func(tx *sqlx.Tx) error {
		var p domain.UserProfile
		if err := tx.GetContext(ctx, &p, tx.Rebind(`SELECT `+profileCols+` FROM user_profiles WHERE id = ?`), id); err != nil {
			return notFoundOr("user_profile", id, err)
		}
		if patch.PhoneNumber != nil {
			p.PhoneNumber = *patch.PhoneNumber
		}
		if patch.Address != nil {
			p.Address = *patch.Address
		}
		if err := checkProfile(&p); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx,
			`UPDATE user_profiles SET phone_number = :phone_number, address = :address WHERE id = :id`, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return domain.UserProfile{}, err
	}
	return out, nil
}

// Delete removes only the profile; nothing depends on it.
func (r *ProfileRepo) Delete(ctx context.Context, id string) (removed Removed, err error) {
	defer func() { observe("user_profile", "delete", err) }()
	return deleteRoot(ctx, r.db, "user_profile", "user_profiles", id)
}

func (r *ProfileRepo) List(ctx context.Context, f domain.ProfileFilter) iter.Seq2[domain.UserProfile, error] {
	q := `SELECT ` + profileCols + ` FROM user_profiles`
	var args []any
	if f.UserID != "" {
		q += ` WHERE user_id = ?`
		args = append(args, f.UserID)
	}
	return scanSeq[domain.UserProfile](ctx, r.db, "user_profile", q+` ORDER BY id`, args...)
}
