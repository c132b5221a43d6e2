package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

const refreshTokenColumns = `id, user_id, email, token_hash, issued_at, expires_at, revoked, revoked_at, revoked_reason, user_agent, ip`

type RefreshTokenRepository struct {
	db *sql.DB
}

func NewRefreshTokenRepository(db *sql.DB) ports.RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Store(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, email, token_hash, issued_at, expires_at, revoked, user_agent, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.Email,
		token.TokenHash,
		token.IssuedAt,
		token.ExpiresAt,
		token.Revoked,
		token.UserAgent,
		token.IP,
	)
	return err
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`
	return scanRefreshToken(r.db.QueryRowContext(ctx, query, tokenHash))
}

func (r *RefreshTokenRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE id = $1`
	return scanRefreshToken(r.db.QueryRowContext(ctx, query, id))
}

func (r *RefreshTokenRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.RefreshToken, error) {
	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked = false AND expires_at > $2
		ORDER BY issued_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*domain.RefreshToken
	for rows.Next() {
		token, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// Revoke only touches a record that is still active, so concurrent callers
// cannot both observe a successful revoke.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID, reason domain.RevocationReason, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = true, revoked_at = $2, revoked_reason = $3
		WHERE id = $1 AND revoked = false
	`
	res, err := r.db.ExecContext(ctx, query, id, at, string(reason))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason domain.RevocationReason, at time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = true, revoked_at = $2, revoked_reason = $3
		WHERE user_id = $1 AND revoked = false AND expires_at > $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, at, string(reason))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRefreshToken(row scanner) (*domain.RefreshToken, error) {
	token := &domain.RefreshToken{}
	var (
		revokedAt     sql.NullTime
		revokedReason sql.NullString
	)
	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.Email,
		&token.TokenHash,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.Revoked,
		&revokedAt,
		&revokedReason,
		&token.UserAgent,
		&token.IP,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		token.RevokedAt = &at
	}
	if revokedReason.Valid {
		reason := domain.RevocationReason(revokedReason.String)
		token.RevokedReason = &reason
	}
	return token, nil
}
