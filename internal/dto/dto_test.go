package dto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

func chatWithMembers(id string, public, dm bool, members ...string) models.Chat {
	return models.Chat{ID: id, IsPublic: public, IsDM: dm, Members: models.NewMembers(id, members...)}
}

func TestPartitionChatsOneOfEach(t *testing.T) {
	chats := []ChatResponse{
		NewChatResponse(chatWithMembers("general", true, false, "u1", "u2", "u3")),
		NewChatResponse(chatWithMembers("trio", false, true, "u1", "u2", "u3")),
		NewChatResponse(chatWithMembers("u1_u2", false, true, "u1", "u2")),
		NewChatResponse(chatWithMembers("secret", false, false, "u1", "u2")),
	}

	directory := PartitionChats(chats)
	require.Len(t, directory.Public, 1)
	require.Equal(t, "general", directory.Public[0].ID)
	require.Len(t, directory.Groups, 1)
	require.Equal(t, "trio", directory.Groups[0].ID)
	require.Len(t, directory.Direct, 1)
	require.Equal(t, "u1_u2", directory.Direct[0].ID)
}

func TestPartitionChatsEmptySectionsAreNotNil(t *testing.T) {
	directory := PartitionChats(nil)
	require.NotNil(t, directory.Public)
	require.NotNil(t, directory.Groups)
	require.NotNil(t, directory.Direct)
}

func TestNewChatResponseFillsDefaults(t *testing.T) {
	response := NewChatResponse(models.Chat{ID: "c1", IsPublic: true, Members: models.NewMembers("c1", "b", "a")})
	require.Equal(t, []string{"a", "b"}, response.MemberIDs)
	require.NotNil(t, response.Automations)
	require.Equal(t, models.ChatKindPublic, response.Kind)
	require.Nil(t, response.Counterpart)
}

func TestValidatorUsernameTag(t *testing.T) {
	validate := NewValidator()
	require.NoError(t, validate.Struct(CompleteProfileRequest{FullName: "Ada", Username: "ada.l"}))
	require.Error(t, validate.Struct(CompleteProfileRequest{FullName: "Ada", Username: "Ada Lovelace"}))
	require.Error(t, validate.Struct(CompleteProfileRequest{FullName: "Ada", Username: "ab"}))
}

func TestUserResponsePublicViewHidesEmail(t *testing.T) {
	response := NewUserResponse(models.User{ID: "u1", Email: "ada@example.com", Username: "ada"}, PresenceResponse{Online: true})
	require.Equal(t, "ada", response.FullName)
	require.True(t, response.Online)
	require.Empty(t, response.PublicView().Email)
	require.NotEmpty(t, response.AvatarURL)
}
