package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
)

var (
	// ErrTokenExpired indicates the access token is past its expiry.
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenInvalid indicates the token failed signature or claim checks.
	ErrTokenInvalid = errors.New("access token invalid")
)

// AccessClaims are the verified claims extracted from a bearer token.
type AccessClaims struct {
	IdentityID string
	Email      string
}

// JWTManager mints and parses HS256 access tokens for confirmed identities.
type JWTManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager builds a manager from the configured signing secret.
func NewJWTManager(secret, issuer string, ttl time.Duration) (*JWTManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &JWTManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (m *JWTManager) WithClock(clock func() time.Time) *JWTManager {
	if clock != nil {
		m.now = clock
	}
	return m
}

// MintSession issues an access token for the identity.
func (m *JWTManager) MintSession(_ context.Context, identity domain.Identity) (*domain.Session, error) {
	if !identity.Confirmed {
		return nil, fmt.Errorf("identity %s is not confirmed", identity.ID)
	}

	now := m.now().UTC()
	claims := jwt.MapClaims{
		"sub":   identity.ID,
		"email": identity.Email,
		"iss":   m.issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(m.ttl).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &domain.Session{
		IdentityID:  identity.ID,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(m.ttl.Seconds()),
	}, nil
}

// ParseAccessToken verifies a bearer token and returns its claims.
func (m *JWTManager) ParseAccessToken(_ context.Context, raw string) (*AccessClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrTokenInvalid
	}
	email, _ := claims["email"].(string)

	return &AccessClaims{IdentityID: sub, Email: email}, nil
}
