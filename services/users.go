package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"eventhub/models"
	"eventhub/utils"
)

// Password length bounds for every password set through the service. bcrypt
// refuses input longer than MaxPasswordLength bytes.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// UserInput carries the writable fields of a user. An empty Password keeps
// the current one on update.
type UserInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	IsAdmin  bool
}

func (in UserInput) validate(passwordRequired bool) error {
	if models.IsBlank(in.Name) {
		return validationf("name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return validationf("email %q is not valid", in.Email)
	}
	if in.Password == "" && passwordRequired {
		return validationf("password is required")
	}
	if in.Password != "" && len(in.Password) < MinPasswordLength {
		return validationf("password must be at least %d characters", MinPasswordLength)
	}
	if len(in.Password) > MaxPasswordLength {
		return validationf("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

type UserService struct {
	users models.UserRepository
	now   func() time.Time
}

func NewUserService(users models.UserRepository) *UserService {
	return &UserService{users: users, now: time.Now}
}

// Signup creates a regular account. IsAdmin in the input is ignored.
func (s *UserService) Signup(ctx context.Context, in UserInput) (models.User, error) {
	in.IsAdmin = false
	return s.create(ctx, in)
}

// Login returns the user owning email when password matches.
// Unknown emails and wrong passwords are indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string) (models.User, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, models.ErrNotFound) {
		return models.User{}, ErrUnauthorized
	}
	if err != nil {
		return models.User{}, err
	}
	if !utils.CheckPasswordHash(password, u.PasswordHash) {
		return models.User{}, ErrUnauthorized
	}
	return u, nil
}

func (s *UserService) Me(ctx context.Context, p Principal) (models.User, error) {
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return models.User{}, notFound(err, "user", p.UserID)
	}
	return u, nil
}

// UpdateMe edits the caller's profile. The admin flag cannot be changed here.
func (s *UserService) UpdateMe(ctx context.Context, p Principal, in UserInput) (models.User, error) {
	cur, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return models.User{}, notFound(err, "user", p.UserID)
	}
	in.IsAdmin = cur.IsAdmin
	return s.update(ctx, cur, in)
}

func (s *UserService) List(ctx context.Context, p Principal) ([]models.User, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

func (s *UserService) Get(ctx context.Context, p Principal, id int64) (models.User, error) {
	if err := p.RequireAdmin(); err != nil {
		return models.User{}, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, notFound(err, "user", id)
	}
	return u, nil
}

// Create adds a user on an admin's behalf; it may grant admin.
func (s *UserService) Create(ctx context.Context, p Principal, in UserInput) (models.User, error) {
	if err := p.RequireAdmin(); err != nil {
		return models.User{}, err
	}
	return s.create(ctx, in)
}

func (s *UserService) Update(ctx context.Context, p Principal, id int64, in UserInput) (models.User, error) {
	if err := p.RequireAdmin(); err != nil {
		return models.User{}, err
	}
	cur, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, notFound(err, "user", id)
	}
	return s.update(ctx, cur, in)
}

// Delete soft-deletes the user. Their registrations stay in place.
func (s *UserService) Delete(ctx context.Context, p Principal, id int64) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	if id == p.UserID {
		return validationf("admins cannot delete their own account")
	}
	if err := s.users.SoftDelete(ctx, id, s.now()); err != nil {
		return notFound(err, "user", id)
	}
	return nil
}

func (s *UserService) create(ctx context.Context, in UserInput) (models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := in.validate(true); err != nil {
		return models.User{}, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		IsAdmin:      in.IsAdmin,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *UserService) update(ctx context.Context, cur models.User, in UserInput) (models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := in.validate(false); err != nil {
		return models.User{}, err
	}
	cur.Name = strings.TrimSpace(in.Name)
	cur.Email = in.Email
	cur.Phone = strings.TrimSpace(in.Phone)
	cur.IsAdmin = in.IsAdmin
	if in.Password != "" {
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return models.User{}, err
		}
		cur.PasswordHash = hash
	}
	if err := s.users.Update(ctx, &cur); err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicate):
			return models.User{}, ErrEmailTaken
		case errors.Is(err, models.ErrNotFound):
			return models.User{}, notFound(err, "user", cur.ID)
		}
		return models.User{}, err
	}
	return cur, nil
}
