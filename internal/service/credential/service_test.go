package credential

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/mondo989/ReallyGoodJob/internal/config"
	"github.com/mondo989/ReallyGoodJob/internal/model"
	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
	"github.com/mondo989/ReallyGoodJob/pkg/metrics"
	"github.com/mondo989/ReallyGoodJob/pkg/security"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	m := make(map[uuid.UUID]*model.User)
	for _, u := range users {
		m[u.ID] = u
	}
	return &memUserRepo{users: m}
}

func (r *memUserRepo) Create(ctx context.Context, u *model.User) error { return nil }

func (r *memUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", nil)
	}
	copy := *u
	return &copy, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, apperrors.NewNotFound("user", nil)
}

func (r *memUserRepo) Update(ctx context.Context, u *model.User) error { return nil }

func (r *memUserRepo) UpdateEncryptedTokens(ctx context.Context, userID uuid.UUID, blob string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperrors.NewNotFound("user", nil)
	}
	u.EncryptedTokens = &blob
	return nil
}

func testEncryptor(t *testing.T) security.Encryptor {
	t.Helper()
	enc, err := security.NewAESEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return enc
}

func seedTokens(t *testing.T, enc security.Encryptor, user *model.User, tokens TokenSet) {
	t.Helper()
	raw, err := json.Marshal(tokens)
	require.NoError(t, err)
	blob, err := enc.EncryptString(string(raw))
	require.NoError(t, err)
	user.EncryptedTokens = &blob
}

func refreshServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		// No refresh_token in the response; the stored one must be kept.
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fresh-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
}

func newTestService(t *testing.T, repo *memUserRepo, enc security.Encryptor, tokenURL string) *Service {
	t.Helper()
	return NewService(
		repo, enc,
		config.GoogleConfig{ClientID: "id", ClientSecret: "secret"},
		logger.NewLogger(nil), metrics.NewNopMetrics(),
		WithEndpoint(oauth2.Endpoint{TokenURL: tokenURL}),
	)
}

func TestValidTokenReturnsUnexpiredWithoutRefresh(t *testing.T) {
	var calls int64
	server := refreshServer(t, &calls)
	defer server.Close()

	enc := testEncryptor(t)
	user := &model.User{Base: model.Base{ID: uuid.New()}}
	seedTokens(t, enc, user, TokenSet{
		AccessToken:  "still-good",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	})
	svc := newTestService(t, newMemUserRepo(user), enc, server.URL)

	token, err := svc.ValidToken(context.Background(), user.ID)

	require.NoError(t, err)
	assert.Equal(t, "still-good", token)
	assert.EqualValues(t, 0, atomic.LoadInt64(&calls))
}

func TestValidTokenRefreshesNearExpiry(t *testing.T) {
	var calls int64
	server := refreshServer(t, &calls)
	defer server.Close()

	enc := testEncryptor(t)
	user := &model.User{Base: model.Base{ID: uuid.New()}}
	originalExpiry := time.Now().Add(2 * time.Minute)
	seedTokens(t, enc, user, TokenSet{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		Expiry:       originalExpiry,
	})
	repo := newMemUserRepo(user)
	svc := newTestService(t, repo, enc, server.URL)

	token, err := svc.ValidToken(context.Background(), user.ID)

	require.NoError(t, err)
	assert.Equal(t, "fresh-access", token)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))

	// The rotated blob is persisted, keeps the refresh token, and has a
	// strictly later expiry.
	stored, err := repo.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EncryptedTokens)
	plaintext, err := enc.DecryptString(*stored.EncryptedTokens)
	require.NoError(t, err)
	var persisted TokenSet
	require.NoError(t, json.Unmarshal([]byte(plaintext), &persisted))
	assert.Equal(t, "fresh-access", persisted.AccessToken)
	assert.Equal(t, "refresh-1", persisted.RefreshToken)
	assert.True(t, persisted.Expiry.After(originalExpiry))
}

func TestValidTokenConcurrentRefreshSerialized(t *testing.T) {
	var calls int64
	server := refreshServer(t, &calls)
	defer server.Close()

	enc := testEncryptor(t)
	user := &model.User{Base: model.Base{ID: uuid.New()}}
	seedTokens(t, enc, user, TokenSet{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Minute),
	})
	svc := newTestService(t, newMemUserRepo(user), enc, server.URL)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := svc.ValidToken(context.Background(), user.ID)
			assert.NoError(t, err)
			assert.Equal(t, "fresh-access", token)
		}()
	}
	wg.Wait()

	// The lock serializes the exchange; later callers see the persisted
	// fresh token and skip the refresh.
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestValidTokenNoStoredCredentials(t *testing.T) {
	enc := testEncryptor(t)
	user := &model.User{Base: model.Base{ID: uuid.New()}}
	svc := newTestService(t, newMemUserRepo(user), enc, "http://127.0.0.1:0")

	_, err := svc.ValidToken(context.Background(), user.ID)
	assert.Error(t, err)
}

func TestValidTokenRefreshFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	enc := testEncryptor(t)
	user := &model.User{Base: model.Base{ID: uuid.New()}}
	seedTokens(t, enc, user, TokenSet{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Minute),
	})
	svc := newTestService(t, newMemUserRepo(user), enc, server.URL)

	_, err := svc.ValidToken(context.Background(), user.ID)
	assert.Error(t, err)
}
