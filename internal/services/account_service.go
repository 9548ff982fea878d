package services

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"shopfront/internal/domain"
	"shopfront/internal/repos"
	"shopfront/internal/validate"
)

var (
	ErrBadCreds = errors.New("invalid username or password")
	ErrNotStaff = errors.New("staff access required")
)

// AccountService manages the local user mirror and profiles.
type AccountService struct {
	Users    *repos.UserRepo
	Profiles *repos.ProfileRepo
	Cost     int // bcrypt cost; 0 means bcrypt.DefaultCost
}

func NewAccountService(users *repos.UserRepo, profiles *repos.ProfileRepo) *AccountService {
	return &AccountService{Users: users, Profiles: profiles}
}

func (s *AccountService) cost() int {
	if s.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return s.Cost
}

// Register creates a user with a hashed password.
func (s *AccountService) Register(ctx context.Context, username, email, password string, staff bool) (domain.User, error) {
	if !validate.Password(password) {
		return domain.User{}, domain.Invalid("user", "password", "8-72 characters with lower, upper, digit and symbol")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return domain.User{}, err
	}
	return s.Users.Create(ctx, domain.User{Username: username, Email: email, Hash: string(h), IsStaff: staff})
}

// SetPassword rehashes and stores a new password.
func (s *AccountService) SetPassword(ctx context.Context, userID, password string) error {
	if !validate.Password(password) {
		return domain.Invalid("user", "password", "8-72 characters with lower, upper, digit and symbol")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return err
	}
	return s.Users.SetPasswordHash(ctx, userID, string(h))
}

func (s *AccountService) Login(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.Users.ByUsername(ctx, username)
	if err != nil {
		return domain.User{}, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return domain.User{}, ErrBadCreds
	}
	return u, nil
}

// StaffLogin is Login restricted to staff accounts.
func (s *AccountService) StaffLogin(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.Login(ctx, username, password)
	if err != nil {
		return domain.User{}, err
	}
	if !u.IsStaff {
		return domain.User{}, ErrNotStaff
	}
	return u, nil
}

func (s *AccountService) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.Users.ByID(ctx, id)
}

func (s *AccountService) UpdateUser(ctx context.Context, id string, p domain.UserPatch) (domain.User, error) {
	return s.Users.Update(ctx, id, p)
}

// DeleteUser removes the user with profile, orders and order lines.
func (s *AccountService) DeleteUser(ctx context.Context, id string) (repos.Removed, error) {
	return s.Users.Delete(ctx, id)
}

func (s *AccountService) ListUsers(ctx context.Context, staffOnly bool) ([]domain.User, error) {
	return repos.Collect(s.Users.List(ctx, domain.UserFilter{StaffOnly: staffOnly}))
}

// SaveProfile creates the user's profile on first edit and patches it after.
func (s *AccountService) SaveProfile(ctx context.Context, userID string, p domain.ProfilePatch) (domain.UserProfile, error) {
	cur, err := s.Profiles.ByUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		np := domain.UserProfile{UserID: userID}
		if p.PhoneNumber != nil {
			np.PhoneNumber = *p.PhoneNumber
		}
		if p.Address != nil {
			np.Address = *p.Address
		}
		return s.Profiles.Create(ctx, np)
	}
	if err != nil {
		return domain.UserProfile{}, err
	}
	return s.Profiles.Update(ctx, cur.ID, p)
}

func (s *AccountService) CreateProfile(ctx context.Context, p domain.UserProfile) (domain.UserProfile, error) {
	return s.Profiles.Create(ctx, p)
}

func (s *AccountService) GetProfile(ctx context.Context, id string) (domain.UserProfile, error) {
	return s.Profiles.Get(ctx, id)
}

func (s *AccountService) ProfileOf(ctx context.Context, userID string) (domain.UserProfile, error) {
	return s.Profiles.ByUser(ctx, userID)
}

func (s *AccountService) UpdateProfile(ctx context.Context, id string, p domain.ProfilePatch) (domain.UserProfile, error) {
	return s.Profiles.Update(ctx, id, p)
}

func (s *AccountService) DeleteProfile(ctx context.Context, id string) (repos.Removed, error) {
	return s.Profiles.Delete(ctx, id)
}

// ProfileLabel renders "Profile <username>".
func (s *AccountService) ProfileLabel(ctx context.Context, p domain.UserProfile) (string, error) {
	u, err := s.Users.ByID(ctx, p.UserID)
	if err != nil {
		return "", err
	}
	return "Profile " + u.Username, nil
}
