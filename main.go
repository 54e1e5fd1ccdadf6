package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/apicatalog/internal/account"
	"github.com/example/apicatalog/internal/cache"
	"github.com/example/apicatalog/internal/catalog"
	cfg "github.com/example/apicatalog/internal/config"
	"github.com/example/apicatalog/internal/policy"
	"github.com/example/apicatalog/internal/session"
	"github.com/example/apicatalog/internal/token"
)

type App struct {
	Logger   *slog.Logger
	DB       DB
	Codec    *token.Codec
	Policies *policy.Engine
	Sessions *session.Manager
	Accounts *account.Service
	Catalog  *catalog.Service
	Cache    *cache.Cache
	Metrics  *Metrics

	AllowedOrigins  []string
	rateLimiter     *RateLimiter
	rateLimitWindow time.Duration
}

func newLogger(c *cfg.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openDB selects the store named by DB_ADAPTER. Postgres is migrated
// first; the other adapters create their schema and get the starter catalog.
func openDB(ctx context.Context, logger *slog.Logger, c *cfg.Config) (DB, error) {
	switch c.DBAdapter {
	case "memory":
		logger.Warn("using in-memory database, data is lost on exit")
		db := NewMemoryDB()
		return db, seedCatalog(ctx, db)
	case "sqlite":
		db, err := NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		return db, seedCatalog(ctx, db)
	case "postgres":
		logger.Info("applying database migrations", "dir", c.MigrationsDir)
		if err := ApplyMigrations(logger, c.MigrationsDir, c.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		db, err := NewPostgresDB(c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		logger.Info("connected to PostgreSQL")
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}
}

// newApp wires the services on top of an opened store.
func newApp(logger *slog.Logger, db DB, c *cfg.Config) (*App, error) {
	codec, err := token.NewCodec(c.JwtSecret, c.JwtIssuer, c.JwtAudience, c.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	rc := cache.New(cache.WithCapacity(c.CacheCapacity))
	return &App{
		Logger:          logger,
		DB:              db,
		Codec:           codec,
		Policies:        policy.Defaults(c.SuperUser, c.ManagementRole),
		Sessions:        session.NewManager(db, codec, c.RefreshTokenTTL, session.WithLogger(logger)),
		Accounts:        account.NewService(db, logger),
		Catalog:         catalog.NewService(db, rc, logger),
		Cache:           rc,
		Metrics:         NewMetrics(rc),
		AllowedOrigins:  c.AllowedOrigins,
		rateLimiter:     NewRateLimiter(c.RateLimitPermit, c.RateLimitWindow),
		rateLimitWindow: c.RateLimitWindow,
	}, nil
}

func (a *App) authRoutes(r *mux.Router) {
	r.HandleFunc("/login", a.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", a.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/refresh-token", a.HandleRefresh).Methods(http.MethodPost)
	r.Handle("/validate", a.Authenticated(a.HandleTokenValidate)).Methods(http.MethodGet)
	r.Handle("/revoke/{username}", a.RequirePolicy(policy.ExclusiveOnly, a.HandleRevoke)).Methods(http.MethodPost)
	r.Handle("/create-role", a.RequirePolicy(policy.ManagementOnly, a.HandleCreateRole)).Methods(http.MethodPost)
	r.Handle("/add-user-to-role", a.RequirePolicy(policy.ManagementOnly, a.HandleAddUserToRole)).Methods(http.MethodPost)
}

// newRouter builds the full handler. CORS wraps the router so preflight
// requests are answered before method matching.
func newRouter(a *App) http.Handler {
	r := mux.NewRouter()
	r.Use(a.Recover)
	r.Use(SecurityHeaders)
	r.Use(a.Metrics.Instrument)
	r.Use(a.Logging)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := a.DB.(interface{ ping() bool }); ok && !p.ping() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", a.Metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(a.RateLimit)
	a.authRoutes(v1.PathPrefix("/auth").Subrouter())

	cats := v1.PathPrefix("/categories").Subrouter()
	cats.HandleFunc("", a.HandlePageCategories).Methods(http.MethodGet)
	cats.HandleFunc("/all", a.HandleListCategories).Methods(http.MethodGet)
	cats.HandleFunc("/filter", a.HandleFilterCategories).Methods(http.MethodGet)
	cats.HandleFunc("/{id:[0-9]+}", a.HandleGetCategory).Methods(http.MethodGet)
	cats.HandleFunc("/{id:[0-9]+}/products", a.HandleCategoryProducts).Methods(http.MethodGet)
	cats.Handle("", a.Authenticated(a.HandleCreateCategory)).Methods(http.MethodPost)
	cats.Handle("/{id:[0-9]+}", a.Authenticated(a.HandleUpdateCategory)).Methods(http.MethodPut)
	cats.Handle("/{id:[0-9]+}", a.RequirePolicy(policy.AdminOnly, a.HandleDeleteCategory)).Methods(http.MethodDelete)

	prods := v1.PathPrefix("/products").Subrouter()
	prods.Handle("", a.RequirePolicy(policy.UserOnly, a.HandlePageProducts)).Methods(http.MethodGet)
	prods.HandleFunc("/filter", a.HandleFilterProducts).Methods(http.MethodGet)
	prods.HandleFunc("/{id}", a.HandleGetProduct).Methods(http.MethodGet)
	prods.Handle("", a.Authenticated(a.HandleCreateProduct)).Methods(http.MethodPost)
	prods.Handle("/{id}", a.Authenticated(a.HandleUpdateProduct)).Methods(http.MethodPut)
	prods.Handle("/{id}", a.Authenticated(a.HandlePatchProduct)).Methods(http.MethodPatch)
	prods.Handle("/{id}", a.RequirePolicy(policy.AdminOnly, a.HandleDeleteProduct)).Methods(http.MethodDelete)

	// Legacy prefix kept for existing clients of the auth endpoints.
	legacy := r.PathPrefix("/api/auth").Subrouter()
	legacy.Use(a.RateLimit)
	a.authRoutes(legacy)

	return a.CORS(r)
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	c, err := cfg.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := newLogger(c)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, logger, c)
	if err != nil {
		return err
	}
	defer func() {
		if closer, ok := db.(interface{ close() error }); ok {
			_ = closer.close()
		}
	}()

	app, err := newApp(logger, db, c)
	if err != nil {
		return err
	}
	if err := ensureAdmin(ctx, logger, app.Accounts, db, c); err != nil {
		return err
	}
	go app.Cache.Run(ctx, time.Minute)

	srv := &http.Server{
		Handler:      newRouter(app),
		Addr:         ":" + c.Port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", c.Port, "db", c.DBAdapter, "origins", strings.Join(c.AllowedOrigins, ","))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("server exited properly")
	return nil
}
