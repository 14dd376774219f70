package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublicID(t *testing.T) {
	cases := map[string]string{
		"uid_123.png":         "uid_123",
		"Ana Lima.JPG":        "ana-lima",
		"../../etc/passwd":    "passwd",
		".png":                "avatar",
		"avatars/UserX9.webp": "userx9",
	}
	for input, want := range cases {
		require.Equal(t, want, PublicID(input), input)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)

	store, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/vibely/avatars/"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "vibely/avatars", store.folder)
}
