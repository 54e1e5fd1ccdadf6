package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/apicatalog/internal/account"
	"github.com/example/apicatalog/internal/config"
)

// Role names the default policies evaluate.
const (
	roleAdmin = "Admin"
	roleUser  = "User"
)

// ensureAdmin creates the configured superuser and gives it the Admin and
// management roles. It is a no-op when the superuser already exists, so it
// runs on every boot.
func ensureAdmin(ctx context.Context, logger *slog.Logger, accounts *account.Service, store account.CredentialStore, c *config.Config) error {
	if c.AdminPassword == "" {
		return nil
	}

	for _, role := range []string{roleAdmin, roleUser, c.ManagementRole} {
		if err := accounts.CreateRole(ctx, role); err != nil && !errors.Is(err, account.ErrExists) {
			return fmt.Errorf("creating role %s: %w", role, err)
		}
	}

	if _, err := store.FindByName(ctx, c.SuperUser); err == nil {
		return nil
	} else if !errors.Is(err, account.ErrNotFound) {
		return fmt.Errorf("looking up %s: %w", c.SuperUser, err)
	}

	id, err := accounts.Register(ctx, account.Registration{UserName: c.SuperUser, Email: c.AdminEmail, Password: c.AdminPassword})
	if err != nil {
		return fmt.Errorf("registering %s: %w", c.SuperUser, err)
	}
	for _, role := range []string{roleAdmin, c.ManagementRole} {
		if _, err := accounts.AddUserToRole(ctx, id.Email, role); err != nil {
			return fmt.Errorf("adding %s to %s: %w", c.SuperUser, role, err)
		}
	}
	logger.InfoContext(ctx, "bootstrapped superuser", "user", id.UserName, "email", id.Email)
	return nil
}
