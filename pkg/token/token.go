// Package token issues and rotates the access/refresh JWT pair.
package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tg_auth_back/models"
	"tg_auth_back/pkg/apperror"
)

const (
	MinAccessTTL  = 5 * time.Minute
	MaxAccessTTL  = 15 * time.Minute
	MinRefreshTTL = 7 * 24 * time.Hour
	MaxRefreshTTL = 30 * 24 * time.Hour

	minSecretLen = 16
)

// RevocationStore records consumed refresh token ids.
type RevocationStore interface {
	// Consume marks jti as used. It reports false without error when jti was
	// already consumed. Check and insert happen as one atomic step.
	Consume(ctx context.Context, jti string, telegramID int64, expiresAt time.Time) (bool, error)
}

type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Claims struct {
	TelegramID *int64           `json:"telegram_id,omitempty"`
	Type       models.TokenType `json:"type"`
	jwt.RegisteredClaims
}

type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      RevocationStore

	now   func() time.Time
	newID func() string
}

func NewService(cfg Config, store RevocationStore) (*Service, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, errors.Errorf("token: secret must be at least %d characters", minSecretLen)
	}
	if store == nil {
		return nil, errors.New("token: revocation store is required")
	}

	return &Service{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  clamp(cfg.AccessTTL, MinAccessTTL, MaxAccessTTL),
		refreshTTL: clamp(cfg.RefreshTTL, MinRefreshTTL, MaxRefreshTTL),
		store:      store,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// IssuePair mints a fresh access/refresh pair for telegramID. Claims are
// always built from scratch.
func (s *Service) IssuePair(telegramID int64) (models.TokenPair, error) {
	now := s.now()

	access, err := s.sign(s.newClaims(telegramID, models.AccessToken, now, s.accessTTL, ""))
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := s.sign(s.newClaims(telegramID, models.RefreshToken, now, s.refreshTTL, s.newID()))
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Rotate consumes refreshToken and returns a new pair for the same user.
// A refresh token can be rotated at most once.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (int64, models.TokenPair, error) {
	claims, err := s.parse(refreshToken, models.RefreshToken)
	if err != nil {
		return 0, models.TokenPair{}, err
	}
	if claims.ID == "" {
		return 0, models.TokenPair{}, apperror.InvalidToken("refresh token has no jti", nil)
	}
	telegramID := *claims.TelegramID

	// Сначала выпускаем пару: ошибка подписи не должна сжечь refresh токен
	pair, err := s.IssuePair(telegramID)
	if err != nil {
		return 0, models.TokenPair{}, err
	}

	if err := s.consume(ctx, claims); err != nil {
		return 0, models.TokenPair{}, err
	}

	logrus.WithFields(logrus.Fields{
		"telegram_id": telegramID,
		"jti":         claims.ID,
	}).Debug("refresh token rotated")

	return telegramID, pair, nil
}

// Revoke consumes refreshToken on behalf of telegramID without issuing a new
// pair. The token must belong to telegramID. Revoking a token that was
// already consumed is not an error.
func (s *Service) Revoke(ctx context.Context, telegramID int64, refreshToken string) error {
	claims, err := s.parse(refreshToken, models.RefreshToken)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return apperror.InvalidToken("refresh token has no jti", nil)
	}
	if *claims.TelegramID != telegramID {
		return apperror.InvalidToken("refresh token belongs to another user", nil)
	}

	err = s.consume(ctx, claims)
	if errors.Is(err, apperror.ErrTokenReused) {
		return nil
	}
	return err
}

// ParseAccess returns the telegram_id of a valid access token.
func (s *Service) ParseAccess(accessToken string) (int64, error) {
	claims, err := s.parse(accessToken, models.AccessToken)
	if err != nil {
		return 0, err
	}
	return *claims.TelegramID, nil
}

func (s *Service) consume(ctx context.Context, claims *Claims) error {
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	ok, err := s.store.Consume(ctx, claims.ID, *claims.TelegramID, expiresAt)
	if err != nil {
		return apperror.Persistence("consume refresh token", err)
	}
	if !ok {
		return apperror.TokenReused(claims.ID)
	}
	return nil
}

func (s *Service) newClaims(telegramID int64, typ models.TokenType, now time.Time, ttl time.Duration, jti string) Claims {
	return Claims{
		TelegramID: &telegramID,
		Type:       typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

var signClaims = func(c Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

func (s *Service) sign(c Claims) (string, error) {
	signed, err := signClaims(c, s.secret)
	if err != nil {
		return "", errors.Wrap(err, "token: signing")
	}
	return signed, nil
}

func (s *Service) parse(tokenStr string, want models.TokenType) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.InvalidToken("expired", err)
		}
		return nil, apperror.InvalidToken("parse", err)
	}
	if !tok.Valid {
		return nil, apperror.InvalidToken("not valid", nil)
	}
	if claims.Type != want {
		return nil, apperror.InvalidToken("unexpected token type "+string(claims.Type), nil)
	}
	if claims.TelegramID == nil {
		return nil, apperror.InvalidToken("no telegram_id claim", nil)
	}

	return claims, nil
}
