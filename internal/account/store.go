// Package account holds identities, their credentials and roles, and the
// store contract every persistence backend implements.
package account

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("account: not found")
	ErrExists       = errors.New("account: already exists")
	ErrRoleNotFound = errors.New("account: role not found")
)

// Identity is a registered user. An empty RefreshToken means none is
// outstanding.
type Identity struct {
	ID                 int64
	UserName           string
	Email              string
	PasswordHash       string
	RefreshToken       string
	RefreshTokenExpiry time.Time
	CreatedAt          time.Time
}

// CredentialStore is implemented by the memory, SQLite and Postgres backends.
type CredentialStore interface {
	// FindByName and FindByEmail return ErrNotFound for unknown users.
	FindByName(ctx context.Context, userName string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	// CreateIdentity returns ErrExists when the username or email is taken.
	CreateIdentity(ctx context.Context, id *Identity) (*Identity, error)
	// SetRefreshToken overwrites the refresh fields; an empty token clears them.
	SetRefreshToken(ctx context.Context, userName, token string, expiry time.Time) error
	// SwapRefreshToken replaces current with next only if current is still
	// the stored value. It reports whether the swap happened.
	SwapRefreshToken(ctx context.Context, userName, current, next string) (bool, error)

	Roles(ctx context.Context, userName string) ([]string, error)
	RoleExists(ctx context.Context, role string) (bool, error)
	// CreateRole returns ErrExists for duplicates.
	CreateRole(ctx context.Context, role string) error
	// AddToRole returns ErrNotFound or ErrRoleNotFound.
	AddToRole(ctx context.Context, userName, role string) error
}
