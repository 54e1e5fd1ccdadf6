package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for the YAML overlay. Zero values leave the
// current setting untouched.
type fileConfig struct {
	Port          string `yaml:"port"`
	Env           string `yaml:"env"`
	DBAdapter     string `yaml:"db_adapter"`
	SQLiteFile    string `yaml:"sqlite_file"`
	MigrationsDir string `yaml:"migrations_dir"`
	LogLevel      string `yaml:"log_level"`

	JWT struct {
		Secret          string        `yaml:"secret"`
		Issuer          string        `yaml:"issuer"`
		Audience        string        `yaml:"audience"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	} `yaml:"jwt"`

	Policy struct {
		SuperUser      string `yaml:"super_user"`
		ManagementRole string `yaml:"management_role"`
		AdminEmail     string `yaml:"admin_email"`
		AdminPassword  string `yaml:"admin_password"`
	} `yaml:"policy"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	RateLimit struct {
		Permit int           `yaml:"permit"`
		Window time.Duration `yaml:"window"`
	} `yaml:"rate_limit"`

	Cache struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"cache"`

	Postgres struct {
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DB       string `yaml:"db"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"postgres"`
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setString(&c.Port, f.Port)
	setString(&c.Env, f.Env)
	setString(&c.DBAdapter, f.DBAdapter)
	setString(&c.SQLiteFile, f.SQLiteFile)
	setString(&c.MigrationsDir, f.MigrationsDir)
	setString(&c.LogLevel, f.LogLevel)

	setString(&c.JwtSecret, f.JWT.Secret)
	setString(&c.JwtIssuer, f.JWT.Issuer)
	setString(&c.JwtAudience, f.JWT.Audience)
	setDuration(&c.AccessTokenTTL, f.JWT.AccessTokenTTL)
	setDuration(&c.RefreshTokenTTL, f.JWT.RefreshTokenTTL)

	setString(&c.SuperUser, f.Policy.SuperUser)
	setString(&c.ManagementRole, f.Policy.ManagementRole)
	setString(&c.AdminEmail, f.Policy.AdminEmail)
	setString(&c.AdminPassword, f.Policy.AdminPassword)

	if len(f.CORS.AllowedOrigins) > 0 {
		c.AllowedOrigins = f.CORS.AllowedOrigins
	}
	if f.RateLimit.Permit > 0 {
		c.RateLimitPermit = f.RateLimit.Permit
	}
	setDuration(&c.RateLimitWindow, f.RateLimit.Window)
	if f.Cache.Capacity > 0 {
		c.CacheCapacity = f.Cache.Capacity
	}

	setString(&c.PostgresDSN, f.Postgres.DSN)
	setString(&c.PostgresHost, f.Postgres.Host)
	setString(&c.PostgresPort, f.Postgres.Port)
	setString(&c.PostgresUser, f.Postgres.User)
	setString(&c.PostgresPassword, f.Postgres.Password)
	setString(&c.PostgresDB, f.Postgres.DB)
	setString(&c.PostgresSSLMode, f.Postgres.SSLMode)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
