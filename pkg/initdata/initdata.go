// Package initdata verifies the signed init data a Telegram Mini App passes to
// its backend (window.Telegram.WebApp.initData).
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tg_auth_back/models"
	"tg_auth_back/pkg/apperror"
)

const (
	// MaxAge is the freshness window for auth_date.
	MaxAge = time.Hour

	hashKey     = "hash"
	authDateKey = "auth_date"
	userKey     = "user"

	webAppDataKey = "WebAppData"
)

// Payload holds the first value of every submitted field.
type Payload map[string]string

type Verifier struct {
	secretKey []byte
}

// NewVerifier fails with apperror.ErrMissingBotToken when botToken is empty.
func NewVerifier(botToken string) (*Verifier, error) {
	if botToken == "" {
		return nil, apperror.ErrMissingBotToken
	}
	return &Verifier{secretKey: deriveSecretKey(botToken)}, nil
}

// VerifyAndParse checks the hash of raw against the bot token and the age of
// auth_date against now.
func (v *Verifier) VerifyAndParse(raw string, now time.Time) (Payload, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, apperror.MalformedField("initData", err)
	}

	payload := make(Payload, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			payload[key] = vals[0]
		}
	}

	received, ok := payload[hashKey]
	if !ok {
		return nil, apperror.MissingField(hashKey)
	}

	expected := sign(v.secretKey, checkString(payload))
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return nil, apperror.InvalidSignature()
	}

	authDate, ok := payload[authDateKey]
	if !ok {
		return nil, apperror.MalformedField(authDateKey, nil)
	}
	ts, err := strconv.ParseInt(authDate, 10, 64)
	if err != nil {
		return nil, apperror.MalformedField(authDateKey, err)
	}

	// Будущие auth_date не отбрасываем: расхождение часов допустимо.
	if age := now.Sub(time.Unix(ts, 0)); age > MaxAge {
		return nil, apperror.StalePayload(age.String())
	}

	return payload, nil
}

type userClaims struct {
	ID           *int64 `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
	IsPremium    bool   `json:"is_premium"`
	PhotoURL     string `json:"photo_url"`
}

// ExtractIdentityClaims decodes the `user` field of a verified payload.
func ExtractIdentityClaims(p Payload) (models.TelegramUser, error) {
	raw, ok := p[userKey]
	if !ok {
		return models.TelegramUser{}, apperror.MissingField(userKey)
	}

	var claims userClaims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return models.TelegramUser{}, apperror.MalformedField(userKey, err)
	}
	if claims.ID == nil {
		return models.TelegramUser{}, apperror.MissingField("user.id")
	}

	return models.TelegramUser{
		TelegramID:   *claims.ID,
		FirstName:    claims.FirstName,
		LastName:     claims.LastName,
		Username:     claims.Username,
		LanguageCode: claims.LanguageCode,
		IsPremium:    claims.IsPremium,
		PhotoURL:     claims.PhotoURL,
	}, nil
}

// Sign returns the hash Telegram would attach to values for botToken.
// Any existing hash in values is ignored. It is the client-side counterpart
// of VerifyAndParse, used by tests and local tooling that need to build
// valid init data without a real Telegram client.
func Sign(values url.Values, botToken string) string {
	payload := make(Payload, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			payload[key] = vals[0]
		}
	}
	return sign(deriveSecretKey(botToken), checkString(payload))
}

func deriveSecretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(webAppDataKey))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

func sign(secretKey []byte, data string) string {
	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// checkString joins every field except hash as sorted key=value lines.
func checkString(p Payload) string {
	keys := make([]string, 0, len(p))
	for key := range p {
		if key == hashKey {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+p[key])
	}
	return strings.Join(lines, "\n")
}
