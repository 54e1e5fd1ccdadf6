// Package session implements login, refresh-token rotation and revocation
// on top of a credential store and the access token codec.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/apicatalog/internal/account"
	"github.com/example/apicatalog/internal/token"
)

var (
	// ErrAuthentication is returned for an unknown user and for a wrong
	// password alike.
	ErrAuthentication = errors.New("session: invalid username or password")
	// ErrInvalidSession means the refresh token is missing, stale, expired or
	// revoked.
	ErrInvalidSession = errors.New("session: invalid access token/refresh token")
)

// Tokens is what a successful login or refresh hands back to the client.
type Tokens struct {
	AccessToken  string    `json:"token"`
	Expiration   time.Time `json:"expiration"`
	RefreshToken string    `json:"refreshToken"`
}

type Manager struct {
	store      account.CredentialStore
	codec      *token.Codec
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Manager)

// WithClock replaces time.Now for refresh expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(store account.CredentialStore, codec *token.Codec, refreshTTL time.Duration, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		codec:      codec,
		refreshTTL: refreshTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Login verifies the password, builds a claim set from the identity and its
// current roles, and stores a fresh refresh token.
func (m *Manager) Login(ctx context.Context, username, password string) (*Tokens, error) {
	id, err := m.store.FindByName(ctx, username)
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !account.CheckPassword(id, password) {
		m.logger.InfoContext(ctx, "login rejected", "user", username)
		return nil, ErrAuthentication
	}

	roles, err := m.store.Roles(ctx, id.UserName)
	if err != nil {
		return nil, fmt.Errorf("loading roles: %w", err)
	}

	cl := []token.Claim{
		{Type: token.ClaimName, Value: id.UserName},
		{Type: token.ClaimEmail, Value: id.Email},
		{Type: token.ClaimID, Value: id.UserName},
		{Type: token.ClaimJTI, Value: uuid.NewString()},
	}
	for _, r := range roles {
		cl = append(cl, token.Claim{Type: token.ClaimRole, Value: r})
	}
	claims := token.NewClaimSet(cl...)

	access, err := m.codec.Issue(claims)
	if err != nil {
		return nil, err
	}
	refresh, err := token.GenerateRefreshSecret()
	if err != nil {
		return nil, err
	}
	if err := m.store.SetRefreshToken(ctx, id.UserName, refresh, m.now().Add(m.refreshTTL)); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	m.logger.InfoContext(ctx, "user logged in", "user", id.UserName, "roles", len(roles))
	return &Tokens{AccessToken: access.Token, Expiration: access.ExpiresAt, RefreshToken: refresh}, nil
}

// Refresh trades an access token (expired or not) and the current refresh
// token for a new pair. The old refresh token stops working immediately.
func (m *Manager) Refresh(ctx context.Context, accessToken, refreshToken string) (*Tokens, error) {
	claims, err := m.codec.DecodeExpired(accessToken)
	if err != nil {
		return nil, err
	}

	name := claims.Name()
	if name == "" {
		return nil, ErrInvalidSession
	}
	id, err := m.store.FindByName(ctx, name)
	switch {
	case errors.Is(err, account.ErrNotFound):
		return nil, ErrInvalidSession
	case err != nil:
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if id.RefreshToken == "" || refreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(id.RefreshToken), []byte(refreshToken)) != 1 ||
		!m.now().Before(id.RefreshTokenExpiry) {
		m.logger.InfoContext(ctx, "refresh rejected", "user", name)
		return nil, ErrInvalidSession
	}

	access, err := m.codec.Issue(claims.With(token.ClaimJTI, uuid.NewString()))
	if err != nil {
		return nil, err
	}
	next, err := token.GenerateRefreshSecret()
	if err != nil {
		return nil, err
	}
	swapped, err := m.store.SwapRefreshToken(ctx, id.UserName, refreshToken, next)
	if err != nil {
		return nil, fmt.Errorf("rotating refresh token: %w", err)
	}
	if !swapped {
		m.logger.WarnContext(ctx, "refresh token rotated concurrently", "user", name)
		return nil, ErrInvalidSession
	}

	return &Tokens{AccessToken: access.Token, Expiration: access.ExpiresAt, RefreshToken: next}, nil
}

// Revoke clears the user's refresh token. Access tokens already issued stay
// valid until they expire.
func (m *Manager) Revoke(ctx context.Context, username string) error {
	id, err := m.store.FindByName(ctx, username)
	if err != nil {
		return err
	}
	if err := m.store.SetRefreshToken(ctx, id.UserName, "", time.Time{}); err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	m.logger.InfoContext(ctx, "refresh token revoked", "user", id.UserName)
	return nil
}
