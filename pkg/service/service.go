package service

import (
	"context"
	"time"

	"tg_auth_back/models"
	"tg_auth_back/pkg/initdata"
	"tg_auth_back/pkg/repository"
)

type Authorization interface {
	Login(ctx context.Context, rawInitData string) (models.Identity, models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.Identity, models.TokenPair, error)
	Logout(ctx context.Context, telegramID int64, refreshToken string) error
	CurrentUser(ctx context.Context, telegramID int64) (models.Identity, error)
	ParseAccessToken(accessToken string) (int64, error)
}

type InitDataVerifier interface {
	VerifyAndParse(raw string, now time.Time) (initdata.Payload, error)
}

type TokenService interface {
	IssuePair(telegramID int64) (models.TokenPair, error)
	Rotate(ctx context.Context, refreshToken string) (int64, models.TokenPair, error)
	Revoke(ctx context.Context, telegramID int64, refreshToken string) error
	ParseAccess(accessToken string) (int64, error)
}

type Service struct {
	Authorization
}

func NewService(repos *repository.Repository, verifier InitDataVerifier, tokens TokenService, queryTimeout time.Duration) *Service {
	return &Service{
		Authorization: NewAuthService(repos.Identity, verifier, tokens, queryTimeout),
	}
}
