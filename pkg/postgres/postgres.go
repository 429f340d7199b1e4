package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

type DB struct {
	Host     string `yaml:"host" envconfig:"DB_HOST" default:"localhost"`
	Port     string `yaml:"port" envconfig:"DB_PORT" default:"5432"`
	Username string `yaml:"user" envconfig:"DB_USER" default:"postgres"`
	Password string `yaml:"password" envconfig:"DB_PASSWORD"`
	NameDB   string `yaml:"dbname" envconfig:"DB_NAME" default:"library"`
	SSLMode  string `yaml:"sslmode" envconfig:"DB_SSLMODE" default:"disable"`

	MaxConns          int32         `yaml:"maxConns" envconfig:"DB_MAX_CONNS" default:"8"`
	MinConns          int32         `yaml:"minConns" envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime" envconfig:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime" envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod" envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

func (db *DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		db.Username, db.Password, net.JoinHostPort(db.Host, db.Port), db.NameDB, db.SSLMode)
}

// NewPostgresDB opens a pool and applies the embedded goose migrations found at the root of migrationFS.
func NewPostgresDB(ctx context.Context, cfg *DB, migrationFS fs.FS) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.ParseConfig")
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.NewWithConfig")
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping")
	}
	if err = migrate(*pool.Config().ConnConfig, migrationFS); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func migrate(connCfg pgx.ConnConfig, migrationFS fs.FS) error {
	db := stdlib.OpenDB(connCfg)
	defer db.Close()

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "goose.SetDialect")
	}
	if err := goose.Up(db, "."); err != nil {
		return errors.Wrap(err, "goose.Up")
	}
	return nil
}
