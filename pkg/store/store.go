// Package store persists conversations, messages and file snapshots in a
// relational database (postgres in production, sqlite for development and
// tests) through sqlx.
//
// A request acquires one Session, which owns a single pooled connection until
// Close. All writes of the request go through Session.InTx and commit together.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Settings struct {
	Driver          string        `yaml:"driver" mapstructure:"db-driver"`
	DSN             string        `yaml:"dsn" mapstructure:"db-dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty" mapstructure:"db-max-open-conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty" mapstructure:"db-conn-max-lifetime"`
}

type Store struct {
	db     *sqlx.DB
	driver string
}

const sqliteDefaultParams = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteDefaultParams
	}
	return dsn + "?" + sqliteDefaultParams
}

// Open connects to the database, checks it is reachable and applies the schema.
func Open(ctx context.Context, settings Settings) (*Store, error) {
	dsn := settings.DSN
	switch settings.Driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, errors.Errorf("unsupported database driver %q", settings.Driver)
	}
	if settings.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	db, err := sqlx.Open(settings.Driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if settings.MaxOpenConns > 0 {
		db.SetMaxOpenConns(settings.MaxOpenConns)
	}
	if settings.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(settings.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	s := &Store{db: db, driver: settings.Driver}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().Str("driver", settings.Driver).Msg("store: opened database")
	return s, nil
}

func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Acquire takes one connection from the pool for the duration of a request.
// The caller must Close the session on every exit path.
func (s *Store) Acquire(ctx context.Context) (*Session, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, persistenceError("acquire connection", err)
	}
	return &Session{conn: conn}, nil
}

// Stats exposes the pool counters, for the health endpoint.
func (s *Store) Stats() (open int, inUse int) {
	st := s.db.Stats()
	return st.OpenConnections, st.InUse
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
