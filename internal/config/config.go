package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	Env           string
	DBAdapter     string
	SQLiteFile    string
	MigrationsDir string
	LogLevel      string
	// Token settings
	JwtSecret       string
	JwtIssuer       string
	JwtAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// Authorization policy inputs
	SuperUser      string
	ManagementRole string
	// Optional superuser created at boot with the Admin role
	AdminEmail    string
	AdminPassword string
	// HTTP edge
	AllowedOrigins  []string
	RateLimitPermit int
	RateLimitWindow time.Duration
	CacheCapacity   int
	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}
	return d, nil
}

func getenvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Defaults returns the development configuration every other source overlays.
func Defaults() *Config {
	return &Config{
		Port:            "8080",
		DBAdapter:       "postgres",
		SQLiteFile:      "./data/catalog.db",
		MigrationsDir:   "./migrations",
		LogLevel:        "info",
		JwtSecret:       "change-me",
		JwtIssuer:       "apicatalog",
		JwtAudience:     "apicatalog-clients",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 60 * time.Minute,
		SuperUser:       "admin",
		ManagementRole:  "Management",
		AllowedOrigins:  []string{"http://127.0.0.1:5500"},
		RateLimitPermit: 5,
		RateLimitWindow: 10 * time.Second,
		CacheCapacity:   1024,
		PostgresHost:    "localhost",
		PostgresPort:    "5432",
		PostgresUser:    "catalog",
		PostgresDB:      "apicatalog",
		PostgresSSLMode: "disable",
	}
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// New builds the configuration from defaults, the optional CONFIG_FILE
// overlay and finally environment variables, then validates it.
func New() (*Config, error) {
	c := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := c.loadEnv(); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadEnv() error {
	var err error

	c.Port = getenv("PORT", c.Port)
	c.Env = getenv("ENV", c.Env)
	c.DBAdapter = getenv("DB_ADAPTER", c.DBAdapter)
	c.SQLiteFile = getenv("SQLITE_FILE", c.SQLiteFile)
	c.MigrationsDir = getenv("MIGRATIONS_DIR", c.MigrationsDir)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)

	c.JwtSecret = getenv("JWT_SECRET", c.JwtSecret)
	c.JwtIssuer = getenv("JWT_ISSUER", c.JwtIssuer)
	c.JwtAudience = getenv("JWT_AUDIENCE", c.JwtAudience)
	if c.AccessTokenTTL, err = getenvDuration("ACCESS_TOKEN_TTL", c.AccessTokenTTL); err != nil {
		return err
	}
	if c.RefreshTokenTTL, err = getenvDuration("REFRESH_TOKEN_TTL", c.RefreshTokenTTL); err != nil {
		return err
	}

	c.SuperUser = getenv("POLICY_SUPER_USER", c.SuperUser)
	c.ManagementRole = getenv("POLICY_MANAGEMENT_ROLE", c.ManagementRole)
	c.AdminEmail = getenv("BOOTSTRAP_ADMIN_EMAIL", c.AdminEmail)
	c.AdminPassword = getenv("BOOTSTRAP_ADMIN_PASSWORD", c.AdminPassword)

	c.AllowedOrigins = getenvList("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	if c.RateLimitPermit, err = getenvInt("RATE_LIMIT_PERMIT", c.RateLimitPermit); err != nil {
		return err
	}
	if c.RateLimitWindow, err = getenvDuration("RATE_LIMIT_WINDOW", c.RateLimitWindow); err != nil {
		return err
	}
	if c.CacheCapacity, err = getenvInt("CACHE_CAPACITY", c.CacheCapacity); err != nil {
		return err
	}

	c.PostgresDSN = getenv("POSTGRES_DSN", c.PostgresDSN)
	c.PostgresHost = getenv("POSTGRES_HOST", getenv("DB_HOST", c.PostgresHost))
	c.PostgresPort = getenv("POSTGRES_PORT", getenv("DB_PORT", c.PostgresPort))
	c.PostgresUser = getenv("POSTGRES_USER", getenv("DB_USER", c.PostgresUser))
	c.PostgresPassword = getenv("POSTGRES_PASSWORD", getenv("DB_PASSWORD", c.PostgresPassword))
	c.PostgresDB = getenv("POSTGRES_DB", getenv("DB_NAME", c.PostgresDB))
	c.PostgresSSLMode = getenv("POSTGRES_SSLMODE", getenv("DB_SSLMODE", c.PostgresSSLMode))
	return nil
}

func (c *Config) validate() error {
	if c.DBAdapter == "postgres" {
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	}

	if c.DBAdapter == "sqlite" && c.SQLiteFile == "" {
		return errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
	}

	if c.JwtSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.IsProduction() && c.JwtSecret == "change-me" {
		return errors.New("JWT_SECRET must be set in production")
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.AdminPassword != "" && c.AdminEmail == "" {
		return errors.New("BOOTSTRAP_ADMIN_EMAIL must be set with BOOTSTRAP_ADMIN_PASSWORD")
	}
	if c.RateLimitPermit <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("rate limit permit and window must be positive")
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT: %s", c.Port)
	}
	return nil
}
