package repository

import (
	"context"
	"database/sql"
	"time"
)

// SessionRepo keeps operator refresh sessions. Only the SHA-256 of the raw
// token is stored.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Store records a new session for operatorID.
func (r *SessionRepo) Store(ctx context.Context, operatorID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO operator_sessions (operator_id, token_hash, expires_at) VALUES (?,?,?)",
		operatorID, tokenHash, exp.UTC())
	return err
}

// Validate returns the operator of a live session. Revoked and expired
// sessions report sql.ErrNoRows.
func (r *SessionRepo) Validate(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var (
		operatorID uint64
		expiresAt  time.Time
		revokedAt  sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT operator_id, expires_at, revoked_at FROM operator_sessions WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&operatorID, &expiresAt, &revokedAt)
	if err != nil {
		return 0, err
	}
	if revokedAt.Valid || now.UTC().After(expiresAt) {
		return 0, sql.ErrNoRows
	}
	return operatorID, nil
}

// Revoke ends one session. Reports sql.ErrNoRows when it was not live, so
// a token cannot be rotated twice.
func (r *SessionRepo) Revoke(ctx context.Context, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE operator_sessions SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RevokeAll ends every live session of an operator, e.g. at shift end or
// when the account is deactivated.
func (r *SessionRepo) RevokeAll(ctx context.Context, operatorID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE operator_sessions SET revoked_at=UTC_TIMESTAMP() WHERE operator_id=? AND revoked_at IS NULL",
		operatorID)
	return err
}
