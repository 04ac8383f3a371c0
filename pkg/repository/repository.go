package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"tg_auth_back/models"
)

type Identity interface {
	// Upsert creates the identity on first sight and refreshes its mutable
	// fields afterwards. telegram_id and created_at never change.
	Upsert(ctx context.Context, user models.TelegramUser) (models.Identity, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (models.Identity, error)
}

type RevokedToken interface {
	Consume(ctx context.Context, jti string, telegramID int64, expiresAt time.Time) (bool, error)
}

type Repository struct {
	Identity
	RevokedToken
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		Identity:     NewIdentityPostgres(db),
		RevokedToken: NewRevokedTokenPostgres(db),
	}
}
