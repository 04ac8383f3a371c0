package service

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg_auth_back/models"
	"tg_auth_back/pkg/apperror"
	"tg_auth_back/pkg/cache"
	"tg_auth_back/pkg/initdata"
	"tg_auth_back/pkg/token"
)

const testBotToken = "1234567890:FAKE_BOT_TOKEN"

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeIdentityRepo mimics the upsert contract of the postgres adapter.
type fakeIdentityRepo struct {
	mu      sync.Mutex
	users   map[int64]models.Identity
	inserts int
	err     error
	now     func() time.Time
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{users: make(map[int64]models.Identity), now: time.Now}
}

func (r *fakeIdentityRepo) Upsert(_ context.Context, u models.TelegramUser) (models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return models.Identity{}, r.err
	}

	now := r.now()
	identity, ok := r.users[u.TelegramID]
	if !ok {
		identity = models.Identity{TelegramID: u.TelegramID, CreatedAt: now}
		r.inserts++
	}
	identity.FirstName = u.FirstName
	identity.LastName = u.LastName
	identity.Username = u.Username
	identity.LanguageCode = u.LanguageCode
	identity.IsPremium = u.IsPremium
	identity.PhotoURL = u.PhotoURL
	identity.UpdatedAt = now
	r.users[u.TelegramID] = identity
	return identity, nil
}

func (r *fakeIdentityRepo) GetByTelegramID(_ context.Context, telegramID int64) (models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return models.Identity{}, r.err
	}
	identity, ok := r.users[telegramID]
	if !ok {
		return models.Identity{}, apperror.UserNotFound(telegramID)
	}
	return identity, nil
}

func (r *fakeIdentityRepo) delete(telegramID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, telegramID)
}

type fixture struct {
	auth   *AuthService
	repo   *fakeIdentityRepo
	tokens *token.Service
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	verifier, err := initdata.NewVerifier(testBotToken)
	require.NoError(t, err)
	tokens, err := token.NewService(token.Config{
		Secret:     "service-test-secret-0123456789",
		Issuer:     "tg-auth-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, cache.NewRevokedTokens())
	require.NoError(t, err)

	repo := newFakeIdentityRepo()
	f := &fixture{
		auth:   NewAuthService(repo, verifier, tokens, time.Second),
		repo:   repo,
		tokens: tokens,
		now:    time.Now(),
	}
	f.auth.now = func() time.Time { return f.now }
	return f
}

func initData(t *testing.T, authDate time.Time, userJSON string) string {
	t.Helper()
	values := url.Values{
		"query_id":  {"test_query_id_123"},
		"user":      {userJSON},
		"auth_date": {strconv.FormatInt(authDate.Unix(), 10)},
	}
	values.Set("hash", initdata.Sign(values, testBotToken))
	return values.Encode()
}

func assertAuthFailed(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, kind)
	assert.Equal(t, "authentication failed", apperror.Public(err))
}

// =========================================================================
// LOGIN
// =========================================================================

func TestLogin_CreatesThenUpdatesIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	identity, pair, err := f.auth.Login(ctx, initData(t, f.now, `{"id":123456789,"first_name":"Test","last_name":"User","username":"testtguser"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), identity.TelegramID)
	assert.Equal(t, "testtguser", identity.Username)
	assert.Equal(t, 1, f.repo.inserts)

	telegramID, err := f.tokens.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), telegramID)

	created := identity.CreatedAt
	f.repo.now = func() time.Time { return created.Add(time.Minute) }

	again, _, err := f.auth.Login(ctx, initData(t, f.now, `{"id":123456789,"first_name":"Test","last_name":"User","username":"newname"}`))
	require.NoError(t, err)
	assert.Equal(t, "newname", again.Username)
	assert.Equal(t, created, again.CreatedAt)
	assert.Equal(t, 1, f.repo.inserts)
	assert.Len(t, f.repo.users, 1)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		raw  string
		kind error
	}{
		{"empty", "", apperror.ErrMissingField},
		{"no hash", "auth_date=1&user=%7B%7D", apperror.ErrMissingField},
		{"bad signature", "auth_date=1&user=%7B%7D&hash=deadbeef", apperror.ErrInvalidSignature},
		{"stale", initData(t, f.now.Add(-2*time.Hour), `{"id":1}`), apperror.ErrStalePayload},
		{"user without id", initData(t, f.now, `{"username":"x"}`), apperror.ErrMissingField},
		{"user not json", initData(t, f.now, `not-json`), apperror.ErrMalformedField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.auth.Login(context.Background(), tt.raw)
			assertAuthFailed(t, err, tt.kind)
		})
	}
	assert.Zero(t, f.repo.inserts)
}

func TestLogin_PersistenceError(t *testing.T) {
	f := newFixture(t)
	f.repo.err = apperror.Persistence("upsert identity", errors.New("db down"))

	_, _, err := f.auth.Login(context.Background(), initData(t, f.now, `{"id":1}`))
	assertAuthFailed(t, err, apperror.ErrPersistence)
}

// =========================================================================
// REFRESH
// =========================================================================

func TestRefresh_RotatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.auth.Login(ctx, initData(t, f.now, `{"id":42,"username":"alice"}`))
	require.NoError(t, err)

	identity, next, err := f.auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.TelegramID)
	assert.Equal(t, "alice", identity.Username)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, _, err = f.auth.Refresh(ctx, pair.RefreshToken)
	assertAuthFailed(t, err, apperror.ErrTokenReused)
}

func TestRefresh_ConcurrentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.auth.Login(ctx, initData(t, f.now, `{"id":42}`))
	require.NoError(t, err)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.auth.Refresh(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
}

func TestRefresh_WithAccessToken(t *testing.T) {
	f := newFixture(t)

	_, pair, err := f.auth.Login(context.Background(), initData(t, f.now, `{"id":42}`))
	require.NoError(t, err)

	_, _, err = f.auth.Refresh(context.Background(), pair.AccessToken)
	assertAuthFailed(t, err, apperror.ErrInvalidToken)
}

func TestRefresh_DeletedUser(t *testing.T) {
	f := newFixture(t)

	_, pair, err := f.auth.Login(context.Background(), initData(t, f.now, `{"id":42}`))
	require.NoError(t, err)
	f.repo.delete(42)

	_, _, err = f.auth.Refresh(context.Background(), pair.RefreshToken)
	assertAuthFailed(t, err, apperror.ErrUserNotFound)
}

// =========================================================================
// LOGOUT / ME
// =========================================================================

func TestLogout_InvalidatesRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.auth.Login(ctx, initData(t, f.now, `{"id":42}`))
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, 42, pair.RefreshToken))
	require.NoError(t, f.auth.Logout(ctx, 42, pair.RefreshToken))

	_, _, err = f.auth.Refresh(ctx, pair.RefreshToken)
	assertAuthFailed(t, err, apperror.ErrTokenReused)
}

func TestLogout_Garbage(t *testing.T) {
	f := newFixture(t)

	err := f.auth.Logout(context.Background(), 42, "garbage")
	assertAuthFailed(t, err, apperror.ErrInvalidToken)
}

func TestLogout_CannotRevokeAnotherUsersToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, victim, err := f.auth.Login(ctx, initData(t, f.now, `{"id":1}`))
	require.NoError(t, err)
	_, _, err = f.auth.Login(ctx, initData(t, f.now, `{"id":2}`))
	require.NoError(t, err)

	err = f.auth.Logout(ctx, 2, victim.RefreshToken)
	assertAuthFailed(t, err, apperror.ErrInvalidToken)

	identity, _, err := f.auth.Refresh(ctx, victim.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), identity.TelegramID)
}

func TestCurrentUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.auth.Login(ctx, initData(t, f.now, `{"id":42,"first_name":"Alice"}`))
	require.NoError(t, err)

	telegramID, err := f.auth.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)

	identity, err := f.auth.CurrentUser(ctx, telegramID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", identity.FirstName)

	_, err = f.auth.CurrentUser(ctx, 7)
	assertAuthFailed(t, err, apperror.ErrUserNotFound)
}

func TestParseAccessToken_RejectsRefresh(t *testing.T) {
	f := newFixture(t)

	_, pair, err := f.auth.Login(context.Background(), initData(t, f.now, `{"id":42}`))
	require.NoError(t, err)

	_, err = f.auth.ParseAccessToken(pair.RefreshToken)
	assertAuthFailed(t, err, apperror.ErrInvalidToken)
}
