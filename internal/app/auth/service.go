// Package auth provides account registration, login and token verification.
package auth

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/osa030/tunedeck/internal/domain/user"
	"github.com/osa030/tunedeck/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRoleNotAllowed     = errors.New("role requires the admin token")
	ErrInvalidInput       = errors.New("invalid registration input")
)

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, u *user.User) error
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Config represents token issuing configuration.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	AdminToken string // Required to register teachers and admins
	BcryptCost int
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Email       string    `validate:"required,email"`
	Password    string    `validate:"required,min=8,max=72"`
	DisplayName string    `validate:"max=64"`
	Role        user.Role `validate:"omitempty,oneof=student teacher admin"`
	AdminToken  string
}

// Service issues and verifies tokens for stored accounts.
type Service struct {
	users    UserStore
	config   Config
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a new auth service.
func NewService(users UserStore, cfg Config) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:    users,
		config:   cfg,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Register creates an account and returns its first token pair.
// Students may self-register; other roles need the admin token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, Tokens, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, Tokens{}, errors.Wrap(ErrInvalidInput, err.Error())
	}
	role := in.Role
	if role == "" {
		role = user.RoleStudent
	}
	if role != user.RoleStudent && !s.adminTokenMatches(in.AdminToken) {
		return nil, Tokens{}, ErrRoleNotAllowed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, Tokens{}, errors.Wrap(err, "failed to hash password")
	}

	u := &user.User{
		Email:        in.Email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if u.DisplayName == "" {
		u.DisplayName = strings.SplitN(in.Email, "@", 2)[0]
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, Tokens{}, ErrEmailTaken
		}
		return nil, Tokens{}, err
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		return nil, Tokens{}, err
	}
	zlog.Info().Msgf("user registered: user_id=%s role=%s", u.ID, u.Role)
	return u, tokens, nil
}

// Login checks the password and returns a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, Tokens, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Tokens{}, ErrInvalidCredentials
		}
		return nil, Tokens{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, Tokens{}, ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		return nil, Tokens{}, err
	}
	return u, tokens, nil
}

// Refresh exchanges a refresh token for a new pair. The role is reloaded
// so a changed role takes effect on the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	claims, err := s.parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return Tokens{}, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Tokens{}, ErrInvalidToken
		}
		return Tokens{}, err
	}
	return s.issueTokens(u)
}

// Verify validates an access token and returns its claims.
func (s *Service) Verify(accessToken string) (*Claims, error) {
	return s.parse(accessToken, TokenTypeAccess)
}

// Me returns the account of userID.
func (s *Service) Me(ctx context.Context, userID string) (*user.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) adminTokenMatches(token string) bool {
	if s.config.AdminToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminToken)) == 1
}
