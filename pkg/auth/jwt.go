package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var signupNamespace = uuid.MustParse("1f0b3f6e-6b1a-4d8e-9f44-5b7a2e0c9a11")

// JWTProvider verifies and issues HMAC signed tokens. Used for development and tests.
type JWTProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type identityClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTProvider constructs a provider for the given secret.
func NewJWTProvider(secret string, ttl time.Duration) *JWTProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTProvider{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Verify validates the token signature and expiry.
func (p *JWTProvider) Verify(_ context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil || !token.Valid {
		return Identity{}, NewError(CodeInvalidCredential, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return Identity{}, NewError(CodeInvalidCredential, errors.New("token has no subject"))
	}

	return Identity{
		UID:         subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}, nil
}

// Issue signs a token for identity.
func (p *JWTProvider) Issue(identity Identity) (string, error) {
	now := p.now()
	claims := identityClaims{
		Email:   identity.Email,
		Name:    identity.DisplayName,
		Picture: identity.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// CreateAccount derives a stable uid from the email. The password is only strength-checked.
func (p *JWTProvider) CreateAccount(_ context.Context, input SignupInput) (Identity, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !strings.Contains(email, "@") {
		return Identity{}, NewError(CodeInvalidEmail, nil)
	}
	if err := CheckPassword(input.Password); err != nil {
		return Identity{}, err
	}

	return Identity{
		UID:         uuid.NewSHA1(signupNamespace, []byte(email)).String(),
		Email:       email,
		DisplayName: strings.TrimSpace(input.DisplayName),
	}, nil
}
