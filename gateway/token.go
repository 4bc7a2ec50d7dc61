package gateway

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer token attached to outgoing requests.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
type TokenSource interface {
	// Token returns a currently valid bearer token.
	Token(ctx context.Context) (string, error)
}

// ErrNoToken indicates no credential material was configured.
var ErrNoToken = errors.New("gateway: no token configured")

// staticTokenSource returns a fixed token.
type staticTokenSource struct {
	token string
}

// StaticToken returns a TokenSource around a fixed bearer token.
func StaticToken(token string) TokenSource {
	return &staticTokenSource{token: token}
}

func (s *staticTokenSource) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// AppTokenConfig configures an app-credential token source.
type AppTokenConfig struct {
	// AppID becomes the token's issuer claim.
	AppID string

	// PrivateKeyPEM is the PEM-encoded RSA signing key.
	PrivateKeyPEM string

	// TTL is the minted token's lifetime.
	// Default: 10 minutes
	TTL time.Duration
}

// appTokenSource mints short-lived RS256 app tokens and caches them
// until shortly before expiry.
type appTokenSource struct {
	appID string
	key   *rsa.PrivateKey
	ttl   time.Duration

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// NewAppTokenSource creates a TokenSource that signs app JWTs with the
// configured RSA key.
func NewAppTokenSource(config AppTokenConfig) (TokenSource, error) {
	if config.AppID == "" {
		return nil, errors.New("gateway: app ID is required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(config.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse app private key: %w", err)
	}
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}

	return &appTokenSource{
		appID: config.AppID,
		key:   key,
		ttl:   config.TTL,
	}, nil
}

func (s *appTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.cached != "" && now.Before(s.expiry.Add(-30*time.Second)) {
		return s.cached, nil
	}

	expiry := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer: s.appID,
		// Backdated to tolerate clock drift between us and the backend.
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("gateway: sign app token: %w", err)
	}

	s.cached = signed
	s.expiry = expiry
	return signed, nil
}
