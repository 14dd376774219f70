package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFriendlyMessagePerFlow(t *testing.T) {
	cases := []struct {
		flow Flow
		code Code
		want string
	}{
		{FlowLogin, CodeWrongPassword, "Invalid email or password. Please try again."},
		{FlowLogin, CodeUserNotFound, "Invalid email or password. Please try again."},
		{FlowLogin, CodeInvalidCredential, "Invalid email or password. Please try again."},
		{FlowLogin, CodeInvalidEmail, "Please enter a valid email address."},
		{FlowLogin, CodeUnknown, "Login failed. Please try again later."},
		{FlowSignup, CodeEmailAlreadyInUse, "This email is already registered. Please try logging in."},
		{FlowSignup, CodeWeakPassword, "Your password is too weak. Please choose a stronger one."},
		{FlowSignup, CodeAccountExistsWithOtherCred, "An account already exists with this email. Please sign in with the original method."},
		{FlowSignup, Code("quota-exceeded"), "Sign up failed. Please try again later."},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, FriendlyMessage(tc.flow, tc.code), "%s/%s", tc.flow, tc.code)
	}
}

func TestClassifyUnwrapsWrappedErrors(t *testing.T) {
	err := errors.Join(errors.New("context"), NewError(CodeEmailAlreadyInUse, nil))
	require.Equal(t, CodeEmailAlreadyInUse, Classify(err))
	require.Equal(t, CodeUnknown, Classify(errors.New("boom")))
	require.Equal(t, CodeInvalidCredential, Classify(ErrMissingToken))
	require.Equal(t, Code(""), Classify(nil))
}

func TestJWTProviderRoundTrip(t *testing.T) {
	provider := NewJWTProvider("secret", time.Hour)
	token, err := provider.Issue(Identity{UID: "u1", Email: "ada@example.com", DisplayName: "Ada"})
	require.NoError(t, err)

	identity, err := provider.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "u1", identity.UID)
	require.Equal(t, "Ada", identity.DisplayName)

	_, err = NewJWTProvider("other", time.Hour).Verify(context.Background(), token)
	require.Equal(t, CodeInvalidCredential, Classify(err))

	_, err = provider.Verify(context.Background(), "  ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestJWTProviderRejectsExpiredToken(t *testing.T) {
	provider := NewJWTProvider("secret", time.Minute)
	provider.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := provider.Issue(Identity{UID: "u1"})
	require.NoError(t, err)

	provider.now = time.Now
	_, err = provider.Verify(context.Background(), token)
	require.Equal(t, CodeInvalidCredential, Classify(err))
}

func TestJWTCreateAccountIsStablePerEmail(t *testing.T) {
	provider := NewJWTProvider("secret", time.Hour)
	first, err := provider.CreateAccount(context.Background(), SignupInput{Email: "Ada@Example.com", Password: "Correct-Horse-Battery-9"})
	require.NoError(t, err)
	second, err := provider.CreateAccount(context.Background(), SignupInput{Email: "ada@example.com", Password: "Correct-Horse-Battery-9"})
	require.NoError(t, err)
	require.Equal(t, first.UID, second.UID)

	_, err = provider.CreateAccount(context.Background(), SignupInput{Email: "ada@example.com", Password: "abc"})
	require.Equal(t, CodeWeakPassword, Classify(err))

	_, err = provider.CreateAccount(context.Background(), SignupInput{Email: "nope", Password: "Correct-Horse-Battery-9"})
	require.Equal(t, CodeInvalidEmail, Classify(err))
}

func TestUsernameHint(t *testing.T) {
	require.Equal(t, "adalovelace", Identity{DisplayName: "Ada Lovelace"}.UsernameHint())
	require.Equal(t, "grace.h", Identity{Email: "Grace.H@example.com"}.UsernameHint())
	require.Equal(t, "user", Identity{}.UsernameHint())
}
