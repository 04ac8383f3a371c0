package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type RevokedTokenPostgres struct {
	db *sqlx.DB
}

func NewRevokedTokenPostgres(db *sqlx.DB) *RevokedTokenPostgres {
	return &RevokedTokenPostgres{db: db}
}

// Consume relies on the primary key of auth_revoked_token: the insert is a
// no-op for a jti that is already there.
func (r *RevokedTokenPostgres) Consume(ctx context.Context, jti string, telegramID int64, expiresAt time.Time) (bool, error) {
	query := `
        INSERT INTO ` + revokedTokenTable + ` (jti, telegram_id, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (jti) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, jti, telegramID, expiresAt)
	if err != nil {
		return false, errors.Wrap(describe(err), "insert revoked token")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "revoked token rows affected")
	}
	return n == 1, nil
}

// PurgeExpired deletes entries whose tokens can no longer pass verification.
func (r *RevokedTokenPostgres) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+revokedTokenTable+` WHERE expires_at < $1`, now)
	if err != nil {
		return 0, errors.Wrap(describe(err), "purge revoked tokens")
	}
	return res.RowsAffected()
}

// PurgeLoop runs PurgeExpired every interval until ctx is done.
func (r *RevokedTokenPostgres) PurgeLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := r.PurgeExpired(ctx, now)
			if err != nil {
				logrus.Errorf("Ошибка очистки отозванных токенов: %s", err)
				continue
			}
			if n > 0 {
				logrus.Infof("Удалено просроченных отозванных токенов: %d", n)
			}
		}
	}
}
