// Package token issues and verifies the signed view tokens a browser presents
// when it opens the live connection for a page it was served.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "livebind"

var (
	ErrReplay   = errors.New("token replay detected")
	ErrAudience = errors.New("token issued for another component")
)

// Service signs view tokens with a per-process HS256 key and rejects replays.
type Service struct {
	signingKey []byte
	algorithm  jwt.SigningMethod
	nonces     *NonceStore
	config     Config
	mu         sync.RWMutex
}

// Config defines Service configuration
type Config struct {
	TTL         time.Duration // Default: 1 hour
	NonceWindow time.Duration // Default: TTL
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		TTL:         time.Hour,
		NonceWindow: time.Hour,
	}
}

// ViewToken is the JWT payload binding a connection to a session and the
// component it was rendered for.
type ViewToken struct {
	Component string `json:"component"`
	SessionID string `json:"sid"`
	Nonce     string `json:"nonce"`
	jwt.RegisteredClaims
}

// NonceStore tracks spent nonces.
type NonceStore struct {
	nonces map[string]time.Time
	mu     sync.Mutex
}

// NewNonceStore creates an empty nonce store
func NewNonceStore() *NonceStore {
	return &NonceStore{nonces: make(map[string]time.Time)}
}

// Spend records nonce and reports false if it was already spent within
// window.
func (ns *NonceStore) Spend(nonce string, window time.Duration) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if at, ok := ns.nonces[nonce]; ok && time.Since(at) < window {
		return false
	}
	ns.nonces[nonce] = time.Now()
	return true
}

// Len returns the number of tracked nonces.
func (ns *NonceStore) Len() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return len(ns.nonces)
}

// Cleanup removes nonces older than maxAge
func (ns *NonceStore) Cleanup(maxAge time.Duration) int {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	count := 0
	cutoff := time.Now().Add(-maxAge)
	for nonce, at := range ns.nonces {
		if at.Before(cutoff) {
			delete(ns.nonces, nonce)
			count++
		}
	}
	return count
}

// NewService creates a Service with a fresh random signing key. Zero config
// fields take their defaults.
func NewService(config Config) (*Service, error) {
	def := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.NonceWindow <= 0 {
		config.NonceWindow = config.TTL
	}

	key, err := randomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &Service{
		signingKey: key,
		algorithm:  jwt.SigningMethodHS256, // fixed to prevent algorithm confusion
		nonces:     NewNonceStore(),
		config:     config,
	}, nil
}

// Issue signs a token for sessionID viewing component.
func (s *Service) Issue(component, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nonce, err := randomBytes(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	claims := &ViewToken{
		Component: component,
		SessionID: sessionID,
		Nonce:     hex.EncodeToString(nonce),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   sessionID,
			Audience:  jwt.ClaimStrings{component},
		},
	}

	signed, err := jwt.NewWithClaims(s.algorithm, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry, audience and nonce of a token issued
// for component. A token verifies at most once.
func (s *Service) Verify(tokenString, component string) (*ViewToken, error) {
	s.mu.RLock()
	key := s.signingKey
	s.mu.RUnlock()

	claims := &ViewToken{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method != s.algorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Component != component {
		return nil, ErrAudience
	}
	if !s.nonces.Spend(claims.Nonce, s.config.NonceWindow) {
		return nil, ErrReplay
	}
	return claims, nil
}

// RotateSigningKey replaces the signing key. Outstanding tokens stop
// verifying.
func (s *Service) RotateSigningKey() error {
	key, err := randomBytes(32)
	if err != nil {
		return fmt.Errorf("failed to generate new signing key: %w", err)
	}
	s.mu.Lock()
	s.signingKey = key
	s.mu.Unlock()
	return nil
}

// CleanupExpiredNonces forgets nonces that can no longer be replayed
func (s *Service) CleanupExpiredNonces() int {
	return s.nonces.Cleanup(s.config.NonceWindow)
}

// Config returns a copy of the configuration
func (s *Service) Config() Config {
	return s.config
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
