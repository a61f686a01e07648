package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mondo989/ReallyGoodJob/internal/config"
	"github.com/mondo989/ReallyGoodJob/internal/repository"
	apperrors "github.com/mondo989/ReallyGoodJob/pkg/errors"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
	"github.com/mondo989/ReallyGoodJob/pkg/metrics"
	"github.com/mondo989/ReallyGoodJob/pkg/security"
)

// expiryBuffer treats tokens expiring within this margin as already expired,
// so a send never starts with a token about to lapse mid-flight.
const expiryBuffer = 5 * time.Minute

// TokenSet is the plaintext shape of a user's stored OAuth tokens. It only
// ever exists decrypted in memory; the database column holds the encrypted
// blob.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// Service decrypts, refreshes and re-persists per-user OAuth credentials.
// Refreshes for the same user are serialized so concurrent sends perform at
// most one token exchange.
type Service struct {
	users     repository.UserRepository
	encryptor security.Encryptor
	oauth     *oauth2.Config
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// Option customizes the service.
type Option func(*Service)

// WithEndpoint overrides the OAuth endpoint, for tests.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(s *Service) { s.oauth.Endpoint = endpoint }
}

func NewService(
	users repository.UserRepository,
	encryptor security.Encryptor,
	googleCfg config.GoogleConfig,
	log *logger.Logger,
	m *metrics.Metrics,
	opts ...Option,
) *Service {
	s := &Service{
		users:     users,
		encryptor: encryptor,
		oauth: &oauth2.Config{
			ClientID:     googleCfg.ClientID,
			ClientSecret: googleCfg.ClientSecret,
			RedirectURL:  googleCfg.RedirectURI,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				"https://www.googleapis.com/auth/gmail.send",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
		},
		logger:  log,
		metrics: m,
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store encrypts and persists the token set for the user.
func (s *Service) Store(ctx context.Context, userID uuid.UUID, tokens TokenSet) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	blob, err := s.encryptor.EncryptString(string(raw))
	if err != nil {
		return fmt.Errorf("failed to encrypt tokens: %w", err)
	}

	return s.users.UpdateEncryptedTokens(ctx, userID, blob)
}

// ValidToken returns an access token guaranteed to outlive the expiry buffer,
// refreshing and re-persisting if needed. The refresh path holds the user's
// lock for the whole decrypt-exchange-persist sequence.
func (s *Service) ValidToken(ctx context.Context, userID uuid.UUID) (string, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	tokens, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}

	if time.Until(tokens.Expiry) > expiryBuffer {
		return tokens.AccessToken, nil
	}

	refreshed, err := s.refresh(ctx, tokens)
	if err != nil {
		s.metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return "", apperrors.Unauthorized(fmt.Errorf("token refresh failed: %w", err))
	}
	s.metrics.TokenRefreshes.WithLabelValues("success").Inc()

	if err := s.Store(ctx, userID, refreshed); err != nil {
		// Persist before use; a token the store does not know about would be
		// lost on restart while the provider has already rotated.
		return "", err
	}

	s.logger.Info("refreshed oauth token", map[string]interface{}{"user_id": userID.String()})
	return refreshed.AccessToken, nil
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) (TokenSet, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return TokenSet{}, err
	}
	if user.EncryptedTokens == nil || *user.EncryptedTokens == "" {
		return TokenSet{}, apperrors.Unauthorized(fmt.Errorf("user %s has no stored credentials", userID))
	}

	plaintext, err := s.encryptor.DecryptString(*user.EncryptedTokens)
	if err != nil {
		return TokenSet{}, fmt.Errorf("failed to decrypt tokens: %w", err)
	}

	var tokens TokenSet
	if err := json.Unmarshal([]byte(plaintext), &tokens); err != nil {
		return TokenSet{}, fmt.Errorf("failed to unmarshal tokens: %w", err)
	}
	return tokens, nil
}

func (s *Service) refresh(ctx context.Context, tokens TokenSet) (TokenSet, error) {
	if tokens.RefreshToken == "" {
		return TokenSet{}, fmt.Errorf("no refresh token stored")
	}

	src := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: tokens.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return TokenSet{}, err
	}

	out := TokenSet{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		TokenType:    fresh.TokenType,
		Expiry:       fresh.Expiry,
	}
	// Google often omits the refresh token on refresh responses; keep the one
	// we already have.
	if out.RefreshToken == "" {
		out.RefreshToken = tokens.RefreshToken
	}
	return out, nil
}

func (s *Service) userLock(userID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}
