package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/apicatalog/internal/account"
	"github.com/example/apicatalog/internal/catalog"
)

// every adapter satisfies DB through its store methods alone
var (
	_ DB = (*MemDB)(nil)
	_ DB = (*SQLiteDB)(nil)
	_ DB = (*PostgresDB)(nil)
)

// stores returns every backend that runs without external services.
func stores(t *testing.T) map[string]DB {
	t.Helper()
	lite, err := NewSQLiteDB(filepath.Join(t.TempDir(), "data", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.close() })
	return map[string]DB{
		"memory": NewMemoryDB(),
		"sqlite": lite,
	}
}

func TestCredentialStoreConformance(t *testing.T) {
	for name, db := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := db.FindByName(ctx, "alice")
			assert.ErrorIs(t, err, account.ErrNotFound)

			id, err := db.CreateIdentity(ctx, &account.Identity{UserName: "alice", Email: "alice@example.com", PasswordHash: "h"})
			require.NoError(t, err)
			assert.NotZero(t, id.ID)

			_, err = db.CreateIdentity(ctx, &account.Identity{UserName: "alice", Email: "a2@example.com", PasswordHash: "h"})
			assert.ErrorIs(t, err, account.ErrExists)
			_, err = db.CreateIdentity(ctx, &account.Identity{UserName: "alice2", Email: "alice@example.com", PasswordHash: "h"})
			assert.ErrorIs(t, err, account.ErrExists)

			byEmail, err := db.FindByEmail(ctx, "alice@example.com")
			require.NoError(t, err)
			assert.Equal(t, "alice", byEmail.UserName)

			expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
			require.NoError(t, db.SetRefreshToken(ctx, "alice", "r1", expiry))
			got, err := db.FindByName(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "r1", got.RefreshToken)
			assert.True(t, expiry.Equal(got.RefreshTokenExpiry))
			assert.ErrorIs(t, db.SetRefreshToken(ctx, "ghost", "r", expiry), account.ErrNotFound)

			ok, err := db.SwapRefreshToken(ctx, "alice", "stale", "r2")
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = db.SwapRefreshToken(ctx, "alice", "r1", "r2")
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = db.SwapRefreshToken(ctx, "alice", "r1", "r3")
			require.NoError(t, err)
			assert.False(t, ok)
			_, err = db.SwapRefreshToken(ctx, "ghost", "r1", "r2")
			assert.ErrorIs(t, err, account.ErrNotFound)

			require.NoError(t, db.SetRefreshToken(ctx, "alice", "", time.Time{}))
			ok, err = db.SwapRefreshToken(ctx, "alice", "", "r4")
			require.NoError(t, err)
			assert.False(t, ok)

			roles, err := db.Roles(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, roles)
			_, err = db.Roles(ctx, "ghost")
			assert.ErrorIs(t, err, account.ErrNotFound)

			require.NoError(t, db.CreateRole(ctx, "User"))
			require.NoError(t, db.CreateRole(ctx, "Admin"))
			assert.ErrorIs(t, db.CreateRole(ctx, "User"), account.ErrExists)
			exists, err := db.RoleExists(ctx, "Admin")
			require.NoError(t, err)
			assert.True(t, exists)

			require.NoError(t, db.AddToRole(ctx, "alice", "User"))
			require.NoError(t, db.AddToRole(ctx, "alice", "Admin"))
			require.NoError(t, db.AddToRole(ctx, "alice", "User"))
			assert.ErrorIs(t, db.AddToRole(ctx, "alice", "Missing"), account.ErrRoleNotFound)
			assert.ErrorIs(t, db.AddToRole(ctx, "ghost", "User"), account.ErrNotFound)

			roles, err = db.Roles(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []string{"Admin", "User"}, roles)
		})
	}
}

func TestCatalogStoreConformance(t *testing.T) {
	for name, db := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, seedCatalog(ctx, db))
			// seeding twice is a no-op
			require.NoError(t, seedCatalog(ctx, db))

			cats, err := db.ListCategories(ctx)
			require.NoError(t, err)
			require.Len(t, cats, 3)
			assert.Equal(t, "Bebidas", cats[0].Name)

			prods, err := db.ListProductsByCategory(ctx, cats[0].ID)
			require.NoError(t, err)
			require.Len(t, prods, 1)
			assert.Equal(t, 5.45, prods[0].Price)
			assert.False(t, prods[0].RegistrationDate.IsZero())

			_, err = db.CreateProduct(ctx, &catalog.Product{Name: "Orphan", Price: 1, CategoryID: 999, RegistrationDate: time.Now()})
			assert.ErrorIs(t, err, catalog.ErrNotFound)

			upd := cats[1]
			upd.Name = "Salgados"
			_, err = db.UpdateCategory(ctx, &upd)
			require.NoError(t, err)
			got, err := db.GetCategory(ctx, upd.ID)
			require.NoError(t, err)
			assert.Equal(t, "Salgados", got.Name)

			_, err = db.UpdateCategory(ctx, &catalog.Category{ID: 999, Name: "X", ImageURL: "x"})
			assert.ErrorIs(t, err, catalog.ErrNotFound)
			assert.ErrorIs(t, db.DeleteProduct(ctx, 999), catalog.ErrNotFound)
			_, err = db.GetProduct(ctx, 999)
			assert.ErrorIs(t, err, catalog.ErrNotFound)
		})
	}
}

func TestWithinTxRollsBack(t *testing.T) {
	for name, db := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, seedCatalog(ctx, db))
			cats, err := db.ListCategories(ctx)
			require.NoError(t, err)
			target := cats[0].ID

			err = db.WithinTx(ctx, func(r catalog.Repositories) error {
				prods, err := r.ListProductsByCategory(ctx, target)
				if err != nil {
					return err
				}
				for _, p := range prods {
					if err := r.DeleteProduct(ctx, p.ID); err != nil {
						return err
					}
				}
				return r.DeleteCategory(ctx, 999)
			})
			assert.ErrorIs(t, err, catalog.ErrNotFound)

			prods, err := db.ListProductsByCategory(ctx, target)
			require.NoError(t, err)
			assert.Len(t, prods, 1, "deletes inside the failed transaction must not persist")

			// the service cascade commits as a unit
			require.NoError(t, db.WithinTx(ctx, func(r catalog.Repositories) error {
				if err := r.DeleteProduct(ctx, prods[0].ID); err != nil {
					return err
				}
				return r.DeleteCategory(ctx, target)
			}))
			_, err = db.GetCategory(ctx, target)
			assert.ErrorIs(t, err, catalog.ErrNotFound)
		})
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	first, err := NewSQLiteDB(path)
	require.NoError(t, err)
	require.NoError(t, seedCatalog(ctx, first))
	_, err = first.CreateIdentity(ctx, &account.Identity{UserName: "alice", Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, first.close())

	second, err := NewSQLiteDB(path)
	require.NoError(t, err)
	defer second.close()
	cats, err := second.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 3)
	_, err = second.FindByName(ctx, "alice")
	assert.NoError(t, err)
	assert.True(t, second.ping())
}
