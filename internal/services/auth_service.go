package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ledger/internal/auth"
	"ledger/internal/core"
	"ledger/internal/store"
)

// AuthService registers users, issues tokens and resolves request principals.
type AuthService struct {
	users     store.UserStore
	tokens    *auth.Tokens
	passwords *auth.Passwords
	now       func() time.Time
}

func NewAuthService(users store.UserStore, tokens *auth.Tokens, passwords *auth.Passwords) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		now:       time.Now,
	}
}

type (
	RegisterInput struct {
		Name     string
		Email    string
		Password string
		Role     core.Role
	}

	// Session is the result of a successful login.
	Session struct {
		Token string
		User  core.User
	}
)

// Register creates an active user. Role defaults to user.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (core.User, error) {
	email := core.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return core.User{}, core.Validation("Email and password required")
	}
	if !strings.Contains(email, "@") {
		return core.User{}, core.Validation("invalid email")
	}
	role := in.Role
	if role == "" {
		role = core.RoleUser
	}
	if !role.IsValid() {
		return core.User{}, core.Validation("invalid role")
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return core.User{}, core.Validation("Email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return core.User{}, core.Internal("lookup user", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return core.User{}, core.Validation("password too long")
	}
	if err != nil {
		return core.User{}, core.Internal("hash password", err)
	}

	now := core.StoredTime(s.now())
	u := core.User{
		ID:           core.NewID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       core.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, store.ErrConflict) {
			return core.User{}, core.Validation("Email already registered")
		}
		return core.User{}, core.Internal("create user", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = core.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, core.Validation("Email and password required")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, core.Validation("Invalid credentials")
	}
	if err != nil {
		return Session{}, core.Internal("lookup user", err)
	}

	ok, err := s.passwords.Verify(u.PasswordHash, password)
	if err != nil {
		return Session{}, core.Internal("verify password", err)
	}
	if !ok {
		return Session{}, core.Validation("Invalid credentials")
	}
	if u.Status != core.StatusActive {
		return Session{}, core.Forbidden("account is blocked")
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, core.Internal("issue token", err)
	}
	return Session{Token: token, User: u}, nil
}

// Resolve turns a bearer token into the principal of the live user record.
// Role and status always come from storage, never from the token.
func (s *AuthService) Resolve(ctx context.Context, token string) (core.Principal, error) {
	if token == "" {
		return core.Principal{}, core.Unauthenticated("No token provided")
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return core.Principal{}, core.Unauthenticated("Token invalid or expired")
	}
	if !core.ValidID(claims.Subject) {
		return core.Principal{}, core.Unauthenticated("Token invalid or expired")
	}

	u, err := s.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return core.Principal{}, core.Unauthenticated("User not found")
	}
	if err != nil {
		return core.Principal{}, core.Internal("resolve principal", err)
	}
	if u.Status != core.StatusActive {
		return core.Principal{}, core.Forbidden("account is blocked")
	}
	return u.Principal(), nil
}

// Me returns the profile of p.
func (s *AuthService) Me(ctx context.Context, p core.Principal) (core.User, error) {
	u, err := s.users.GetUser(ctx, p.ID)
	if err != nil {
		return core.User{}, storeErr("get user", err, "User not found")
	}
	return u, nil
}

// UserByEmail looks up a user for administrative tooling.
func (s *AuthService) UserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := s.users.GetUserByEmail(ctx, core.NormalizeEmail(email))
	if err != nil {
		return core.User{}, storeErr("get user", err, "User not found")
	}
	return u, nil
}

// SetStatus blocks or reactivates the user with email.
func (s *AuthService) SetStatus(ctx context.Context, email string, status core.Status) (core.User, error) {
	if !status.IsValid() {
		return core.User{}, core.Validation("invalid status")
	}
	return s.modifyUser(ctx, email, func(u *core.User) { u.Status = status })
}

// SetRole changes the role of the user with email.
func (s *AuthService) SetRole(ctx context.Context, email string, role core.Role) (core.User, error) {
	if !role.IsValid() {
		return core.User{}, core.Validation("invalid role")
	}
	return s.modifyUser(ctx, email, func(u *core.User) { u.Role = role })
}

func (s *AuthService) modifyUser(ctx context.Context, email string, fn func(*core.User)) (core.User, error) {
	u, err := s.UserByEmail(ctx, email)
	if err != nil {
		return core.User{}, err
	}
	fn(&u)
	u.UpdatedAt = core.StoredTime(s.now())
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return core.User{}, storeErr("update user", err, "User not found")
	}
	slog.InfoContext(ctx, "User updated", "user_id", u.ID, "role", u.Role, "status", u.Status)
	return u, nil
}
