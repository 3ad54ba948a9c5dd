// Package postgres implements the tenauth store interfaces over a Postgres
// database through database/sql and the pgx stdlib driver.
package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tenantkit/tenauth"
)

// Store owns the connection pool and exposes the individual store
// implementations.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres with pool settings suited to request-path
// authentication traffic.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing pool. The caller keeps ownership of db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the pool for migrations and health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Stores returns the bundle expected by the engine builder.
func (s *Store) Stores() tenauth.Stores {
	return tenauth.Stores{
		Users:         &Users{db: s.db},
		RefreshTokens: &RefreshTokens{db: s.db},
		ActionTokens:  &ActionTokens{db: s.db},
		Organizations: &Organizations{db: s.db},
	}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}
