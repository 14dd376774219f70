// Package auth verifies identity provider tokens and classifies authentication failures.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrMissingToken is returned when no credential accompanies a request.
	ErrMissingToken = errors.New("missing token")
	// ErrRegistrationUnsupported is returned when the configured provider cannot create accounts.
	ErrRegistrationUnsupported = errors.New("account registration not supported by provider")
)

// Identity is the verified principal behind a token.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// UsernameHint derives a lowercase, space-free username candidate from the display name or email.
func (i Identity) UsernameHint() string {
	source := strings.TrimSpace(i.DisplayName)
	if source == "" {
		source = strings.TrimSpace(i.Email)
		if at := strings.IndexByte(source, '@'); at >= 0 {
			source = source[:at]
		}
	}

	var b strings.Builder
	for _, r := range strings.ToLower(source) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

// SignupInput carries email/password account creation parameters.
type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
}

// Provider verifies bearer tokens.
type Provider interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Registrar creates email/password accounts.
type Registrar interface {
	CreateAccount(ctx context.Context, input SignupInput) (Identity, error)
}

// Issuer mints session tokens for an identity.
type Issuer interface {
	Issue(identity Identity) (string, error)
}
