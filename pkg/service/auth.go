package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tg_auth_back/models"
	"tg_auth_back/pkg/apperror"
	"tg_auth_back/pkg/initdata"
	"tg_auth_back/pkg/repository"
)

const defaultQueryTimeout = 5 * time.Second

type AuthService struct {
	identities   repository.Identity
	verifier     InitDataVerifier
	tokens       TokenService
	queryTimeout time.Duration
	now          func() time.Time
}

func NewAuthService(identities repository.Identity, verifier InitDataVerifier, tokens TokenService, queryTimeout time.Duration) *AuthService {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &AuthService{
		identities:   identities,
		verifier:     verifier,
		tokens:       tokens,
		queryTimeout: queryTimeout,
		now:          time.Now,
	}
}

// Login verifies Mini App init data, upserts the user and issues a token pair.
func (s *AuthService) Login(ctx context.Context, rawInitData string) (models.Identity, models.TokenPair, error) {
	payload, err := s.verifier.VerifyAndParse(rawInitData, s.now())
	if err != nil {
		return models.Identity{}, models.TokenPair{}, reject("login", 0, err)
	}

	user, err := initdata.ExtractIdentityClaims(payload)
	if err != nil {
		return models.Identity{}, models.TokenPair{}, reject("login", 0, err)
	}

	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	identity, err := s.identities.Upsert(qctx, user)
	if err != nil {
		return models.Identity{}, models.TokenPair{}, reject("login", user.TelegramID, err)
	}

	pair, err := s.tokens.IssuePair(identity.TelegramID)
	if err != nil {
		return models.Identity{}, models.TokenPair{}, errors.Wrap(err, "login: issue tokens")
	}

	logrus.WithField("telegram_id", identity.TelegramID).Info("Пользователь авторизован")
	return identity, pair, nil
}

// Refresh rotates refreshToken and returns the owner's current identity.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.Identity, models.TokenPair, error) {
	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	telegramID, pair, err := s.tokens.Rotate(qctx, refreshToken)
	if err != nil {
		return models.Identity{}, models.TokenPair{}, reject("refresh", 0, err)
	}

	// Пользователь мог быть удалён после выдачи токена
	identity, err := s.identities.GetByTelegramID(qctx, telegramID)
	if err != nil {
		return models.Identity{}, models.TokenPair{}, reject("refresh", telegramID, err)
	}

	return identity, pair, nil
}

// Logout revokes a refresh token owned by telegramID.
func (s *AuthService) Logout(ctx context.Context, telegramID int64, refreshToken string) error {
	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.tokens.Revoke(qctx, telegramID, refreshToken); err != nil {
		return reject("logout", telegramID, err)
	}
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, telegramID int64) (models.Identity, error) {
	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	identity, err := s.identities.GetByTelegramID(qctx, telegramID)
	if err != nil {
		return models.Identity{}, reject("me", telegramID, err)
	}
	return identity, nil
}

func (s *AuthService) ParseAccessToken(accessToken string) (int64, error) {
	telegramID, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return 0, reject("access", 0, err)
	}
	return telegramID, nil
}

// reject logs the detailed cause and hides it behind AuthenticationFailed.
func reject(op string, telegramID int64, err error) error {
	fields := logrus.Fields{
		"op":    op,
		"error": err.Error(),
	}
	if kind := apperror.Kind(err); kind != nil {
		fields["kind"] = kind.Error()
	}
	if telegramID != 0 {
		fields["telegram_id"] = telegramID
	}
	logrus.WithFields(fields).Warn("Ошибка аутентификации")

	return apperror.AuthenticationFailed(err)
}
