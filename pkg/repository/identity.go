package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"tg_auth_back/models"
	"tg_auth_back/pkg/apperror"
)

type IdentityPostgres struct {
	db *sqlx.DB
}

func NewIdentityPostgres(db *sqlx.DB) *IdentityPostgres {
	return &IdentityPostgres{db: db}
}

const identityColumns = `telegram_id, first_name, last_name, username, language_code, is_premium, photo_url, created_at, updated_at`

func (r *IdentityPostgres) Upsert(ctx context.Context, user models.TelegramUser) (models.Identity, error) {
	var identity models.Identity
	query := `
        INSERT INTO ` + identityTable + ` (telegram_id, first_name, last_name, username, language_code, is_premium, photo_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (telegram_id) DO UPDATE SET
            first_name    = EXCLUDED.first_name,
            last_name     = EXCLUDED.last_name,
            username      = EXCLUDED.username,
            language_code = EXCLUDED.language_code,
            is_premium    = EXCLUDED.is_premium,
            photo_url     = EXCLUDED.photo_url,
            updated_at    = now()
        RETURNING ` + identityColumns

	err := r.db.GetContext(ctx, &identity, query,
		user.TelegramID,
		user.FirstName,
		user.LastName,
		user.Username,
		user.LanguageCode,
		user.IsPremium,
		user.PhotoURL,
	)
	if err != nil {
		return models.Identity{}, apperror.Persistence("upsert identity", describe(err))
	}
	return identity, nil
}

func (r *IdentityPostgres) GetByTelegramID(ctx context.Context, telegramID int64) (models.Identity, error) {
	var identity models.Identity
	query := `SELECT ` + identityColumns + ` FROM ` + identityTable + ` WHERE telegram_id = $1`

	err := r.db.GetContext(ctx, &identity, query, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Identity{}, apperror.UserNotFound(telegramID)
	}
	if err != nil {
		return models.Identity{}, apperror.Persistence("get identity", describe(err))
	}
	return identity, nil
}

// describe adds the postgres error code to driver errors.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return errors.Wrapf(err, "pq code %s (%s)", pqErr.Code, pqErr.Code.Name())
	}
	return err
}
