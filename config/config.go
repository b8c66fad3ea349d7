// Package config loads database settings from YAML and opens a tql.DB
// from them.
//
// A configuration file looks like:
//
//	dialect: mysql
//	dsn: app:secret@tcp(localhost:3306)/app?parseTime=true
//	debug: false
//	slow_threshold: 200ms
//	max_open_conns: 20
//	max_idle_conns: 5
//	conn_max_lifetime: 30m
//	statement_cache: true
//
// Watch re-reads the file when it changes so that debug output and the slow
// statement threshold can be adjusted on a running DB.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"github.com/syssam/tql"
	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/dialect/sql"
)

// Config holds the settings of a database connection.
type Config struct {
	Dialect         string        `yaml:"dialect"`
	DSN             string        `yaml:"dsn"`
	Debug           bool          `yaml:"debug,omitempty"`
	SlowThreshold   time.Duration `yaml:"slow_threshold,omitempty"`
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
	StatementCache  bool          `yaml:"statement_cache,omitempty"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := dialect.Get(c.Dialect); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if c.DSN == "" {
		errs = append(errs, errors.New("config: dsn is required"))
	} else if err := c.validateDSN(); err != nil {
		errs = append(errs, err)
	}
	if c.SlowThreshold < 0 {
		errs = append(errs, errors.New("config: slow_threshold must not be negative"))
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		errs = append(errs, errors.New("config: connection limits must not be negative"))
	}
	if c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns {
		errs = append(errs, fmt.Errorf("config: max_idle_conns %d exceeds max_open_conns %d", c.MaxIdleConns, c.MaxOpenConns))
	}
	return errors.Join(errs...)
}

func (c *Config) validateDSN() error {
	switch c.Dialect {
	case dialect.MySQL:
		cfg, err := mysql.ParseDSN(c.DSN)
		if err != nil {
			return fmt.Errorf("config: mysql dsn: %w", err)
		}
		// Timestamps are scanned into time.Time only with parseTime.
		if !cfg.ParseTime {
			return errors.New("config: mysql dsn must set parseTime=true")
		}
	case dialect.Postgres:
		if strings.HasPrefix(c.DSN, "postgres://") || strings.HasPrefix(c.DSN, "postgresql://") {
			if _, err := pq.ParseURL(c.DSN); err != nil {
				return fmt.Errorf("config: postgres dsn: %w", err)
			}
		}
	}
	return nil
}

// Options returns the DB options the configuration can change at runtime.
func (c *Config) Options() []tql.Option {
	return []tql.Option{
		tql.WithDebug(c.Debug),
		tql.WithSlowThreshold(c.SlowThreshold),
	}
}

// Open opens the connection pool and returns a DB over it. The pool is
// pinged before returning.
func (c *Config) Open(ctx context.Context, opts ...tql.Option) (*tql.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var dopts []sql.Option
	if c.StatementCache {
		dopts = append(dopts, sql.WithStatementCache())
	}
	drv, err := sql.Open(c.Dialect, c.DSN, dopts...)
	if err != nil {
		return nil, fmt.Errorf("config: opening %s: %w", c.Dialect, err)
	}
	pool := drv.DB()
	if c.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	if err := pool.PingContext(ctx); err != nil {
		drv.Close()
		return nil, fmt.Errorf("config: connecting to %s: %w", c.Dialect, err)
	}
	db, err := tql.Open(drv, append(c.Options(), opts...)...)
	if err != nil {
		drv.Close()
		return nil, err
	}
	db.Logger().Debug("tql: database opened", "dialect", c.Dialect,
		"max_open_conns", c.MaxOpenConns, "statement_cache", c.StatementCache)
	return db, nil
}
