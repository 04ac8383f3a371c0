package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const purgeInterval = 10 * time.Minute

type revokedEntry struct {
	TelegramID int64
	ExpiresAt  time.Time
}

// RevokedTokens is an in-process set of consumed refresh token ids.
// Entries are dropped once the token itself has expired.
type RevokedTokens struct {
	mu        sync.Mutex
	entries   map[string]revokedEntry
	nextPurge time.Time
	now       func() time.Time
}

func NewRevokedTokens() *RevokedTokens {
	return &RevokedTokens{
		entries: make(map[string]revokedEntry),
		now:     time.Now,
	}
}

// Consume возвращает false, если jti уже был использован
func (c *RevokedTokens) Consume(_ context.Context, jti string, telegramID int64, expiresAt time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.After(c.nextPurge) {
		c.purgeLocked(now)
		c.nextPurge = now.Add(purgeInterval)
	}

	if _, ok := c.entries[jti]; ok {
		logrus.Warnf("Повторное использование refresh токена jti=%s telegram_id=%d", jti, telegramID)
		return false, nil
	}

	c.entries[jti] = revokedEntry{TelegramID: telegramID, ExpiresAt: expiresAt}
	return true, nil
}

func (c *RevokedTokens) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *RevokedTokens) purgeLocked(now time.Time) {
	for jti, e := range c.entries {
		if !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt) {
			delete(c.entries, jti)
		}
	}
}
