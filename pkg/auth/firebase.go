package auth

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
)

// FirebaseProvider verifies Firebase ID tokens and creates Firebase accounts.
type FirebaseProvider struct {
	client *fbauth.Client
}

// NewFirebaseProvider obtains the auth client from an initialised Firebase app.
func NewFirebaseProvider(ctx context.Context, app *firebase.App) (*FirebaseProvider, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseProvider{client: client}, nil
}

// Verify validates a Firebase ID token.
func (p *FirebaseProvider) Verify(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	token, err := p.client.VerifyIDToken(ctx, raw)
	if err != nil {
		return Identity{}, NewError(CodeInvalidCredential, err)
	}

	identity := Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		identity.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		identity.DisplayName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		identity.PhotoURL = picture
	}
	return identity, nil
}

// CreateAccount registers an email/password user.
func (p *FirebaseProvider) CreateAccount(ctx context.Context, input SignupInput) (Identity, error) {
	if err := CheckPassword(input.Password); err != nil {
		return Identity{}, err
	}

	params := (&fbauth.UserToCreate{}).
		Email(strings.TrimSpace(input.Email)).
		Password(input.Password)
	if name := strings.TrimSpace(input.DisplayName); name != "" {
		params = params.DisplayName(name)
	}

	record, err := p.client.CreateUser(ctx, params)
	if err != nil {
		return Identity{}, classifyFirebase(err)
	}

	return Identity{
		UID:         record.UID,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		PhotoURL:    record.PhotoURL,
	}, nil
}

func classifyFirebase(err error) error {
	switch {
	case fbauth.IsEmailAlreadyExists(err):
		return NewError(CodeEmailAlreadyInUse, err)
	case fbauth.IsUserNotFound(err):
		return NewError(CodeUserNotFound, err)
	}

	message := strings.ToUpper(err.Error())
	switch {
	case strings.Contains(message, "INVALID_EMAIL"), strings.Contains(message, "MALFORMED EMAIL"):
		return NewError(CodeInvalidEmail, err)
	case strings.Contains(message, "WEAK_PASSWORD"), strings.Contains(message, "INVALID_PASSWORD"):
		return NewError(CodeWeakPassword, err)
	}
	return NewError(CodeUnknown, err)
}
