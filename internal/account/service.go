package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
)

var ErrInvalidInput = errors.New("account: invalid input")

type Registration struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service covers registration and role administration. Sessions live in
// the session package.
type Service struct {
	store  CredentialStore
	logger *slog.Logger
}

func NewService(store CredentialStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

func (r Registration) validate() error {
	switch {
	case strings.TrimSpace(r.UserName) == "":
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	case strings.TrimSpace(r.Email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	case r.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	}
	return nil
}

// Register creates an identity with no roles. ErrExists means the username
// is taken; other errors mean the store rejected the write.
func (s *Service) Register(ctx context.Context, r Registration) (*Identity, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	_, err := s.store.FindByName(ctx, r.UserName)
	switch {
	case err == nil:
		return nil, ErrExists
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := HashPassword(r.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	id, err := s.store.CreateIdentity(ctx, &Identity{UserName: r.UserName, Email: r.Email, PasswordHash: hash})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user", id.UserName)
	return id, nil
}

func (s *Service) CreateRole(ctx context.Context, role string) error {
	if strings.TrimSpace(role) == "" {
		return fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	exists, err := s.store.RoleExists(ctx, role)
	if err != nil {
		return fmt.Errorf("checking role: %w", err)
	}
	if exists {
		return ErrExists
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		s.logger.WarnContext(ctx, "role creation failed", "role", role, "err", err)
		return fmt.Errorf("creating role: %w", err)
	}
	s.logger.InfoContext(ctx, "role added", "role", role)
	return nil
}

// AddUserToRole looks the user up by email, as role administration is done
// by address.
func (s *Service) AddUserToRole(ctx context.Context, email, role string) (*Identity, error) {
	id, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddToRole(ctx, id.UserName, role); err != nil {
		s.logger.WarnContext(ctx, "unable to add user to role", "user", id.UserName, "role", role, "err", err)
		return nil, err
	}
	s.logger.InfoContext(ctx, "user added to role", "user", id.UserName, "role", role)
	return id, nil
}
