package main

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/example/apicatalog/internal/account"
	"github.com/example/apicatalog/internal/catalog"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect covers what differs between SQLite and Postgres: placeholder
// syntax and how constraint violations are reported.
type dialect struct {
	bind         func(string) string
	isUnique     func(error) bool
	isForeignKey func(error) bool
}

// rebindDollar turns ? placeholders into $1, $2, ...
func rebindDollar(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlRepo implements account.CredentialStore and catalog.Repositories on
// top of database/sql. Timestamps are stored as unix seconds.
type sqlRepo struct {
	q querier
	d dialect
}

func (s *sqlRepo) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, s.d.bind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqlRepo) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.d.bind(query), args...)
}

func (s *sqlRepo) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.d.bind(query), args...)
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

// Credential store

const identityColumns = `id,username,email,password_hash,refresh_token,refresh_token_expiry,created_at`

func (s *sqlRepo) findIdentity(ctx context.Context, where string, arg any) (*account.Identity, error) {
	row := s.queryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE `+where+` = ?`, arg)
	var (
		id               account.Identity
		expiry, creation int64
	)
	if err := row.Scan(&id.ID, &id.UserName, &id.Email, &id.PasswordHash, &id.RefreshToken, &expiry, &creation); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, err
	}
	id.RefreshTokenExpiry = fromUnix(expiry)
	id.CreatedAt = fromUnix(creation)
	return &id, nil
}

func (s *sqlRepo) FindByName(ctx context.Context, userName string) (*account.Identity, error) {
	return s.findIdentity(ctx, "username", userName)
}

func (s *sqlRepo) FindByEmail(ctx context.Context, email string) (*account.Identity, error) {
	return s.findIdentity(ctx, "email", email)
}

func (s *sqlRepo) CreateIdentity(ctx context.Context, in *account.Identity) (*account.Identity, error) {
	out := *in
	out.CreatedAt = time.Now().UTC().Truncate(time.Second)
	err := s.queryRow(ctx,
		`INSERT INTO users(username,email,password_hash,created_at) VALUES(?,?,?,?) RETURNING id`,
		in.UserName, in.Email, in.PasswordHash, out.CreatedAt.Unix()).Scan(&out.ID)
	if err != nil {
		if s.d.isUnique(err) {
			return nil, account.ErrExists
		}
		return nil, err
	}
	return &out, nil
}

func (s *sqlRepo) SetRefreshToken(ctx context.Context, userName, token string, expiry time.Time) error {
	n, err := s.exec(ctx, `UPDATE users SET refresh_token = ?, refresh_token_expiry = ? WHERE username = ?`,
		token, toUnix(expiry), userName)
	if err != nil {
		return err
	}
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

// SwapRefreshToken is a single conditional update; two callers presenting
// the same token cannot both match.
func (s *sqlRepo) SwapRefreshToken(ctx context.Context, userName, current, next string) (bool, error) {
	if current != "" {
		n, err := s.exec(ctx, `UPDATE users SET refresh_token = ? WHERE username = ? AND refresh_token = ?`,
			next, userName, current)
		if err != nil {
			return false, err
		}
		if n == 1 {
			return true, nil
		}
	}
	if _, err := s.FindByName(ctx, userName); err != nil {
		return false, err
	}
	return false, nil
}

func (s *sqlRepo) Roles(ctx context.Context, userName string) ([]string, error) {
	rows, err := s.query(ctx, `SELECT r.name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		JOIN users u ON u.id = ur.user_id
		WHERE u.username = ? ORDER BY r.name`, userName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		if _, err := s.FindByName(ctx, userName); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func (s *sqlRepo) RoleExists(ctx context.Context, role string) (bool, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM roles WHERE name = ?`, role).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqlRepo) CreateRole(ctx context.Context, role string) error {
	if _, err := s.exec(ctx, `INSERT INTO roles(name) VALUES(?)`, role); err != nil {
		if s.d.isUnique(err) {
			return account.ErrExists
		}
		return err
	}
	return nil
}

func (s *sqlRepo) AddToRole(ctx context.Context, userName, role string) error {
	id, err := s.FindByName(ctx, userName)
	if err != nil {
		return err
	}
	var roleID int64
	if err := s.queryRow(ctx, `SELECT id FROM roles WHERE name = ?`, role).Scan(&roleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.ErrRoleNotFound
		}
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO user_roles(user_id,role_id) VALUES(?,?) ON CONFLICT DO NOTHING`, id.ID, roleID)
	return err
}

// Catalog

func (s *sqlRepo) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.query(ctx, `SELECT id,name,image_url FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []catalog.Category{}
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqlRepo) GetCategory(ctx context.Context, id int64) (*catalog.Category, error) {
	var c catalog.Category
	err := s.queryRow(ctx, `SELECT id,name,image_url FROM categories WHERE id = ?`, id).Scan(&c.ID, &c.Name, &c.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *sqlRepo) CreateCategory(ctx context.Context, c *catalog.Category) (*catalog.Category, error) {
	out := *c
	if err := s.queryRow(ctx, `INSERT INTO categories(name,image_url) VALUES(?,?) RETURNING id`,
		c.Name, c.ImageURL).Scan(&out.ID); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *sqlRepo) UpdateCategory(ctx context.Context, c *catalog.Category) (*catalog.Category, error) {
	n, err := s.exec(ctx, `UPDATE categories SET name = ?, image_url = ? WHERE id = ?`, c.Name, c.ImageURL, c.ID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, catalog.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *sqlRepo) DeleteCategory(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

const productColumns = `id,name,description,price,image_url,stock,registration_date,category_id`

func scanProduct(scan func(...any) error) (catalog.Product, error) {
	var (
		p   catalog.Product
		reg int64
	)
	err := scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Stock, &reg, &p.CategoryID)
	p.RegistrationDate = fromUnix(reg)
	return p, err
}

func (s *sqlRepo) listProducts(ctx context.Context, query string, args ...any) ([]catalog.Product, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []catalog.Product{}
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqlRepo) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.listProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
}

func (s *sqlRepo) ListProductsByCategory(ctx context.Context, categoryID int64) ([]catalog.Product, error) {
	return s.listProducts(ctx, `SELECT `+productColumns+` FROM products WHERE category_id = ? ORDER BY id`, categoryID)
}

func (s *sqlRepo) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	p, err := scanProduct(s.queryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *sqlRepo) CreateProduct(ctx context.Context, p *catalog.Product) (*catalog.Product, error) {
	out := *p
	err := s.queryRow(ctx,
		`INSERT INTO products(name,description,price,image_url,stock,registration_date,category_id)
		VALUES(?,?,?,?,?,?,?) RETURNING id`,
		p.Name, p.Description, p.Price, p.ImageURL, p.Stock, toUnix(p.RegistrationDate), p.CategoryID).Scan(&out.ID)
	if err != nil {
		if s.d.isForeignKey(err) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (s *sqlRepo) UpdateProduct(ctx context.Context, p *catalog.Product) (*catalog.Product, error) {
	n, err := s.exec(ctx,
		`UPDATE products SET name = ?, description = ?, price = ?, image_url = ?, stock = ?,
		registration_date = ?, category_id = ? WHERE id = ?`,
		p.Name, p.Description, p.Price, p.ImageURL, p.Stock, toUnix(p.RegistrationDate), p.CategoryID, p.ID)
	if err != nil {
		if s.d.isForeignKey(err) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	if n == 0 {
		return nil, catalog.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *sqlRepo) DeleteProduct(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func withinTx(ctx context.Context, db *sql.DB, d dialect, fn func(catalog.Repositories) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&sqlRepo{q: tx, d: d}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
