package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONFIG_FILE", "PORT", "ENV", "DB_ADAPTER", "SQLITE_FILE", "MIGRATIONS_DIR", "LOG_LEVEL",
	"JWT_SECRET", "JWT_ISSUER", "JWT_AUDIENCE", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
	"POLICY_SUPER_USER", "POLICY_MANAGEMENT_ROLE", "BOOTSTRAP_ADMIN_EMAIL", "BOOTSTRAP_ADMIN_PASSWORD",
	"CORS_ALLOWED_ORIGINS",
	"RATE_LIMIT_PERMIT", "RATE_LIMIT_WINDOW", "CACHE_CAPACITY",
	"POSTGRES_DSN", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD",
	"POSTGRES_DB", "POSTGRES_SSLMODE", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD",
	"DB_NAME", "DB_SSLMODE",
}

// clearEnv blanks every variable New reads; getenv treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestNew_MemoryDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_ADAPTER", "memory")

	c, err := New()
	require.NoError(t, err)

	want := Defaults()
	want.DBAdapter = "memory"
	assert.Empty(t, cmp.Diff(want, c))
}

func TestNew_PostgresBuildsDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=catalog dbname=apicatalog sslmode=disable password=secret", c.PostgresDSN)
}

func TestNew_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_ADAPTER", "sqlite")
	t.Setenv("SQLITE_FILE", "/tmp/x.db")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL", "24h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_PERMIT", "100")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", c.SQLiteFile)
	assert.Equal(t, 5*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 24*time.Hour, c.RefreshTokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, 100, c.RateLimitPermit)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad port", env: map[string]string{"PORT": "http"}},
		{name: "bad duration", env: map[string]string{"ACCESS_TOKEN_TTL": "soon"}},
		{name: "bad permit", env: map[string]string{"RATE_LIMIT_PERMIT": "many"}},
		{name: "default secret in production", env: map[string]string{"ENV": "production"}},
		{name: "non-positive ttl", env: map[string]string{"REFRESH_TOKEN_TTL": "-1m"}},
		{name: "admin password without email", env: map[string]string{"BOOTSTRAP_ADMIN_PASSWORD": "pw"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DB_ADAPTER", "memory")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := New()
			require.Error(t, err)
		})
	}
}

func TestNew_FileOverlayThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
port: "9090"
db_adapter: memory
jwt:
  secret: from-file
  access_token_ttl: 2m
policy:
  super_user: vanessa
rate_limit:
  permit: 7
  window: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "7070", c.Port, "env wins over file")
	assert.Equal(t, "from-file", c.JwtSecret)
	assert.Equal(t, 2*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, "vanessa", c.SuperUser)
	assert.Equal(t, 7, c.RateLimitPermit)
	assert.Equal(t, time.Minute, c.RateLimitWindow)
}

func TestNew_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := New()
	require.Error(t, err)
}
