package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tenantkit/tenauth"
)

// Users implements tenauth.UserStore.
type Users struct {
	db *sql.DB
}

var _ tenauth.UserStore = (*Users)(nil)

const userColumns = `id, email, password_hash, first_name, last_name,
	email_verified, active, failed_login_count, locked_until, created_at, last_login_at`

func (u *Users) Create(ctx context.Context, user *tenauth.UserRecord) error {
	_, err := u.db.ExecContext(ctx, `
		insert into users (id, email, password_hash, first_name, last_name,
			email_verified, active, failed_login_count, locked_until, created_at, last_login_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.EmailVerified, user.Active, user.FailedLoginCount,
		nullTime(user.LockedUntil), user.CreatedAt, nullTime(user.LastLoginAt))
	if isUniqueViolation(err) {
		return tenauth.ErrDuplicate
	}
	return err
}

func (u *Users) GetByID(ctx context.Context, id string) (*tenauth.UserRecord, error) {
	return u.scanOne(u.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id))
}

func (u *Users) GetByEmail(ctx context.Context, email string) (*tenauth.UserRecord, error) {
	return u.scanOne(u.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email = $1`, email))
}

func (u *Users) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return u.execOne(ctx, `update users set password_hash = $2 where id = $1`, id, passwordHash)
}

func (u *Users) SetLoginFailure(ctx context.Context, id string, failedCount int, lockedUntil time.Time) error {
	return u.execOne(ctx, `
		update users set failed_login_count = $2, locked_until = $3 where id = $1
	`, id, failedCount, nullTime(lockedUntil))
}

func (u *Users) SetLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return u.execOne(ctx, `
		update users set failed_login_count = 0, locked_until = null, last_login_at = $2 where id = $1
	`, id, at)
}

func (u *Users) SetVerified(ctx context.Context, id string) error {
	return u.execOne(ctx, `update users set email_verified = true where id = $1`, id)
}

func (u *Users) execOne(ctx context.Context, query string, args ...any) error {
	res, err := u.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tenauth.ErrNotFound
	}
	return nil
}

func (u *Users) scanOne(row *sql.Row) (*tenauth.UserRecord, error) {
	var (
		rec         tenauth.UserRecord
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &rec.FirstName, &rec.LastName,
		&rec.EmailVerified, &rec.Active, &rec.FailedLoginCount, &lockedUntil, &rec.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.LockedUntil = fromNullTime(lockedUntil)
	rec.LastLoginAt = fromNullTime(lastLogin)
	return &rec, nil
}
