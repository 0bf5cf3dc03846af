package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithBcryptCost sets the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.cost = cost }
}

// WithAuthClock replaces the time source used to issue and verify tokens.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// AuthService issues and verifies identity tokens. It is the identity
// provider of the event service.
type AuthService struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger *slog.Logger
}

// claims carries the user id in both uid and sub.
type claims struct {
	UID  string     `json:"uid,omitempty"`
	Role model.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewAuthService constructs an AuthService signing HS256 tokens with secret.
func NewAuthService(users UserStore, secret string, ttl time.Duration, logger *slog.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user account and returns a token for it.
func (s *AuthService) Register(ctx context.Context, req model.RegisterUserRequest) (*model.AuthResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = model.NormalizeEmail(req.Email)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrValidation)
	}
	if !isValidEmail(req.Email) {
		return nil, fmt.Errorf("%w: email is not a valid email address", model.ErrValidation)
	}
	if len(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", model.ErrValidation, minPasswordLen)
	}

	u, err := s.createUser(ctx, req.Name, req.Email, req.Password, model.RoleUser)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID)
	return s.respond(u)
}

// Login verifies the credentials and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", model.ErrAuth)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, fmt.Errorf("%w: invalid email or password", model.ErrAuth)
	}
	return s.respond(u)
}

// GuestLogin creates a throwaway user account and signs it in.
func (s *AuthService) GuestLogin(ctx context.Context) (*model.AuthResponse, error) {
	id := uuid.NewString()
	email := "guest-" + id[:8] + "@guest.eventhub.local"
	u, err := s.createUser(ctx, "Guest "+strings.ToUpper(id[:4]), email, uuid.NewString(), model.RoleUser)
	if err != nil {
		return nil, err
	}
	s.logger.Info("guest signed in", "user_id", u.ID)
	return s.respond(u)
}

// Resolve verifies a token and returns the identity of its user. Tokens of
// deleted users are rejected.
func (s *AuthService) Resolve(ctx context.Context, token string) (*model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", model.ErrAuth)
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", model.ErrAuth)
	}
	uid := c.UID
	if uid == "" {
		uid = c.Subject
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: token has no subject", model.ErrAuth)
	}

	u, err := s.users.GetUserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", model.ErrAuth)
		}
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return u.Identity(), nil
}

// LookupByEmail returns nil without error if no account matches.
func (s *AuthService) LookupByEmail(ctx context.Context, email string) (*model.Identity, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u.Identity(), nil
}

// EnsureAdmin makes sure an admin account exists for email. An existing
// account is promoted; its password is left alone.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	u, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == model.RoleAdmin {
			return nil
		}
		if err := s.users.SetRole(ctx, u.ID, model.RoleAdmin); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		s.logger.Info("admin promoted", "user_id", u.ID)
		return nil
	case !errors.Is(err, model.ErrNotFound):
		return fmt.Errorf("lookup admin: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name = "Admin"
	}
	u, err = s.createUser(ctx, name, model.NormalizeEmail(email), password, model.RoleAdmin)
	if err != nil {
		return err
	}
	s.logger.Info("admin created", "user_id", u.ID)
	return nil
}

// Token signs a token for u.
func (s *AuthService) Token(u *model.User) (string, error) {
	now := s.now()
	c := claims{
		UID:  u.ID,
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role model.Role) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		ID:              uuid.NewString(),
		Name:            name,
		Email:           email,
		PasswordHash:    string(hash),
		Role:            role,
		CreatedEvents:   []string{},
		AttendingEvents: []string{},
		CreatedAt:       s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, wrapStoreErr("create user", err)
	}
	return u, nil
}

func (s *AuthService) respond(u *model.User) (*model.AuthResponse, error) {
	token, err := s.Token(u)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{Token: token, User: u.Identity()}, nil
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
