package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tenantkit/tenauth"
)

// RefreshTokens implements tenauth.RefreshTokenStore.
type RefreshTokens struct {
	db *sql.DB
}

var _ tenauth.RefreshTokenStore = (*RefreshTokens)(nil)

func (r *RefreshTokens) Create(ctx context.Context, rec *tenauth.RefreshTokenRecord) error {
	_, err := r.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, created_at, ip, user_agent)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.ID, rec.UserID, rec.TokenHash, rec.ExpiresAt, nullTime(rec.RevokedAt), rec.CreatedAt, rec.IP, rec.UserAgent)
	if isUniqueViolation(err) {
		return tenauth.ErrDuplicate
	}
	return err
}

func (r *RefreshTokens) GetByHash(ctx context.Context, tokenHash string) (*tenauth.RefreshTokenRecord, error) {
	var (
		rec     tenauth.RefreshTokenRecord
		revoked sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, expires_at, revoked_at, created_at, ip, user_agent
		from refresh_tokens where token_hash = $1
	`, tokenHash).Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.ExpiresAt, &revoked, &rec.CreatedAt, &rec.IP, &rec.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.RevokedAt = fromNullTime(revoked)
	return &rec, nil
}

// MarkRevoked is the rotation linchpin: the revoked_at guard makes it a
// compare-and-set, so exactly one concurrent rotation wins.
func (r *RefreshTokens) MarkRevoked(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		update refresh_tokens set revoked_at = $2
		where id = $1 and revoked_at is null
	`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RefreshTokens) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		update refresh_tokens set revoked_at = $2
		where user_id = $1 and revoked_at is null
	`, userID, at)
	return err
}

// ActionTokens implements tenauth.ActionTokenStore.
type ActionTokens struct {
	db *sql.DB
}

var _ tenauth.ActionTokenStore = (*ActionTokens)(nil)

func (a *ActionTokens) Create(ctx context.Context, rec *tenauth.ActionTokenRecord) error {
	_, err := a.db.ExecContext(ctx, `
		insert into action_tokens (id, user_id, kind, token_hash, expires_at, used_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, rec.UserID, string(rec.Kind), rec.TokenHash, rec.ExpiresAt, nullTime(rec.UsedAt), rec.CreatedAt)
	if isUniqueViolation(err) {
		return tenauth.ErrDuplicate
	}
	return err
}

func (a *ActionTokens) GetByHash(ctx context.Context, kind tenauth.ActionTokenKind, tokenHash string) (*tenauth.ActionTokenRecord, error) {
	var (
		rec  tenauth.ActionTokenRecord
		used sql.NullTime
	)
	err := a.db.QueryRowContext(ctx, `
		select id, user_id, kind, token_hash, expires_at, used_at, created_at
		from action_tokens where kind = $1 and token_hash = $2
	`, string(kind), tokenHash).Scan(&rec.ID, &rec.UserID, &rec.Kind, &rec.TokenHash, &rec.ExpiresAt, &used, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.UsedAt = fromNullTime(used)
	return &rec, nil
}

func (a *ActionTokens) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := a.db.ExecContext(ctx, `
		update action_tokens set used_at = $2
		where id = $1 and used_at is null
	`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
