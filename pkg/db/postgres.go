package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Config holds the connection settings of the job ledger database.
type Config struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// envConfig mirrors Config as read from the environment; durations are in seconds.
type envConfig struct {
	Host            string `env:"DB_HOST" envDefault:"localhost"`
	Port            int    `env:"DB_PORT" envDefault:"5432"`
	Database        string `env:"DB_NAME" envDefault:"ascraster"`
	User            string `env:"DB_USER" envDefault:"postgres"`
	Password        string `env:"DB_PASSWORD"`
	SSLMode         string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime int    `env:"DB_CONN_MAX_LIFETIME" envDefault:"300"`
	ConnMaxIdleTime int    `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"300"`
}

// NewConfigFromEnv reads the database settings from DB_* environment variables.
func NewConfigFromEnv() (*Config, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("failed to parse database environment: %w", err)
	}
	return e.config(), nil
}

// newConfigFromMap is NewConfigFromEnv over an explicit variable set.
func newConfigFromMap(vars map[string]string) (*Config, error) {
	var e envConfig
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse database environment: %w", err)
	}
	return e.config(), nil
}

func (e envConfig) config() *Config {
	return &Config{
		Host:            e.Host,
		Port:            e.Port,
		Database:        e.Database,
		User:            e.User,
		Password:        e.Password,
		SSLMode:         e.SSLMode,
		MaxOpenConns:    e.MaxOpenConns,
		MaxIdleConns:    e.MaxIdleConns,
		ConnMaxLifetime: time.Duration(e.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(e.ConnMaxIdleTime) * time.Second,
	}
}

// DSN returns the connection URL for lib/pq.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

// Connect opens the database, applies the pool settings and pings it.
func Connect(ctx context.Context, cfg *Config) (*sql.DB, error) {
	db, err := Open(cfg.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := Health(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Open opens a database handle for an explicit DSN without pinging it.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// Health pings the database with a five second timeout.
func Health(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database unhealthy: no connection")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}
	return nil
}
