package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/apicatalog/internal/account"
	"github.com/example/apicatalog/internal/catalog"
)

// DB interface for database operations. Schema setup belongs to each
// constructor, not to the interface.
type DB interface {
	account.CredentialStore
	catalog.Store
}

// Memory DB
type MemDB struct {
	account.CredentialStore
	catalog.Store
}

func NewMemoryDB() *MemDB {
	return &MemDB{CredentialStore: account.NewMemoryStore(), Store: catalog.NewMemoryStore()}
}

// SQLite DB
type SQLiteDB struct {
	*sqlRepo
	db   *sql.DB
	path string
}

// sqliteConstraint matches an extended constraint code, or the primary
// SQLITE_CONSTRAINT code with the kind named in the message.
func sqliteConstraint(err error, code int, kind string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == code {
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), kind)
}

var sqliteDialect = dialect{
	bind: func(q string) string { return q },
	isUnique: func(err error) bool {
		return sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE") ||
			sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, "PRIMARY KEY")
	},
	isForeignKey: func(err error) bool {
		return sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY")
	},
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps PRAGMA foreign_keys in effect and serialises
	// writers instead of failing with SQLITE_BUSY.
	d.SetMaxOpenConns(1)
	s := &SQLiteDB{sqlRepo: &sqlRepo{q: d, d: sqliteDialect}, db: d, path: path}
	if err := s.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init() error {
	queries := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY AUTOINCREMENT, username TEXT NOT NULL UNIQUE, email TEXT NOT NULL UNIQUE, password_hash TEXT NOT NULL, refresh_token TEXT NOT NULL DEFAULT '', refresh_token_expiry INTEGER NOT NULL DEFAULT 0, created_at INTEGER NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS roles (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);`,
		`CREATE TABLE IF NOT EXISTS user_roles (user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE, role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE, PRIMARY KEY (user_id, role_id));`,
		`CREATE TABLE IF NOT EXISTS categories (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, image_url TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS products (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, description TEXT NOT NULL, price REAL NOT NULL, image_url TEXT NOT NULL, stock REAL NOT NULL DEFAULT 0, registration_date INTEGER NOT NULL, category_id INTEGER NOT NULL REFERENCES categories(id));`,
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteDB) WithinTx(ctx context.Context, fn func(catalog.Repositories) error) error {
	return withinTx(ctx, s.db, sqliteDialect, fn)
}

// seedCatalog inserts the starter categories and products into an empty
// catalog. Postgres gets the same rows from its seed migration.
func seedCatalog(ctx context.Context, store catalog.Store) error {
	existing, err := store.ListCategories(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	now := time.Now().UTC()
	return store.WithinTx(ctx, func(r catalog.Repositories) error {
		seeds := []struct {
			category catalog.Category
			product  catalog.Product
		}{
			{catalog.Category{Name: "Bebidas", ImageURL: "bebidas.jpg"},
				catalog.Product{Name: "Coca-Cola Diet", Description: "Refrigerante de cola 350 ml", Price: 5.45, ImageURL: "cocacola.png", Stock: 50}},
			{catalog.Category{Name: "Lanches", ImageURL: "lanches.jpg"},
				catalog.Product{Name: "Sanduiche de frango", Description: "Sanduiche de Frango com maionese", Price: 8.50, ImageURL: "sanduiche.png", Stock: 10}},
			{catalog.Category{Name: "Sobremesas", ImageURL: "sobremesas.jpg"},
				catalog.Product{Name: "Pudim 100g", Description: "Pudim de leite condensado 100g", Price: 6.75, ImageURL: "pudim.png", Stock: 20}},
		}
		for _, s := range seeds {
			c, err := r.CreateCategory(ctx, &s.category)
			if err != nil {
				return err
			}
			p := s.product
			p.CategoryID = c.ID
			p.RegistrationDate = now
			if _, err := r.CreateProduct(ctx, &p); err != nil {
				return err
			}
		}
		return nil
	})
}

// lifecycle helpers
func (m *MemDB) close() error { return nil }
func (m *MemDB) ping() bool   { return true }

func (s *SQLiteDB) close() error { return s.db.Close() }
func (s *SQLiteDB) ping() bool   { return s.db.Ping() == nil }
