package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/pkg/ai"
)

type stubAssistant struct {
	suggestion ai.ChannelSetupSuggestion
	configured map[string]string
	err        error

	setupInput  ai.ChannelSetupInput
	configInput ai.AutomationConfigInput
}

func (s *stubAssistant) SuggestChannelSetup(_ context.Context, input ai.ChannelSetupInput) (ai.ChannelSetupSuggestion, error) {
	s.setupInput = input
	return s.suggestion, s.err
}

func (s *stubAssistant) ConfigureAutomations(_ context.Context, input ai.AutomationConfigInput) (ai.AutomationConfigResult, error) {
	s.configInput = input
	if s.err != nil {
		return ai.AutomationConfigResult{}, s.err
	}
	return ai.AutomationConfigResult{ConfiguredAutomations: s.configured}, nil
}

func newAutomationFixture(t *testing.T, assistant ai.Assistant) (*testEnv, AutomationService, string) {
	t.Helper()

	env := newTestEnv(t)
	env.seedUser(t, "ana", "ana")
	env.seedUser(t, "ben", "ben")
	chat, err := env.directory.CreateChannel(context.Background(), "ana", dto.CreateChannelRequest{Name: "general", MemberIDs: []string{"ben"}})
	require.NoError(t, err)

	svc := NewAutomationService(env.chats, env.users, env.directory, assistant, env.bus, env.clock, dto.NewValidator(), testLogger())
	return env, svc, chat.ID
}

func TestSuggestSetupKeepsOnlyCatalogAutomations(t *testing.T) {
	assistant := &stubAssistant{suggestion: ai.ChannelSetupSuggestion{
		DescriptionSuggestion: "Daily chatter",
		AutomationSuggestions: []string{"welcome message", "Launch Rockets", "Ice Breaker", "Welcome Message"},
	}}
	_, svc, _ := newAutomationFixture(t, assistant)

	suggestion, err := svc.SuggestSetup(context.Background(), "ana", dto.SetupSuggestionRequest{ChatTitle: "general", MemberIDs: []string{"ben"}})
	require.NoError(t, err)
	require.Equal(t, "Daily chatter", suggestion.DescriptionSuggestion)
	require.Len(t, suggestion.Automations, 2)
	require.Equal(t, "Welcome Message", suggestion.Automations[0].Name)
	require.Equal(t, "Welcome, {{user}}!", suggestion.Automations[0].Content)
	require.True(t, suggestion.Automations[0].Enabled)
	require.Equal(t, "Ice Breaker", suggestion.Automations[1].Name)
	require.Equal(t, []string{"Ana", "Ben"}, assistant.setupInput.MemberNames)
}

func TestSuggestSetupWithoutAssistant(t *testing.T) {
	_, svc, _ := newAutomationFixture(t, nil)

	_, err := svc.SuggestSetup(context.Background(), "ana", dto.SetupSuggestionRequest{ChatTitle: "general"})
	require.ErrorIs(t, err, ErrAssistantUnavailable)
}

func TestSaveAutomationsPersistsAndReturnsConfiguration(t *testing.T) {
	assistant := &stubAssistant{configured: map[string]string{"Welcome Message": "Hey {{user}}, welcome to general!"}}
	env, svc, chatID := newAutomationFixture(t, assistant)
	ctx := context.Background()

	result, err := svc.Save(ctx, chatID, "ben", dto.UpdateAutomationsRequest{Automations: []dto.AutomationPayload{
		{Name: "Welcome Message", Enabled: true, Content: "Hey {{user}}"},
		{Name: "Ice Breaker", Enabled: false},
	}})
	require.NoError(t, err)
	require.Equal(t, "Hey {{user}}, welcome to general!", result.ConfiguredAutomations["Welcome Message"])
	require.Len(t, result.Automations, 2)
	require.Equal(t, map[string]bool{"Welcome Message": true, "Ice Breaker": false}, assistant.configInput.AutomationSettings)
	require.Equal(t, "Hey {{user}}", assistant.configInput.AutomationAdjustments["Welcome Message"])
	require.Equal(t, "general", assistant.configInput.ChannelName)

	chat, err := env.directory.Get(ctx, chatID, "ana")
	require.NoError(t, err)
	require.Len(t, chat.Automations, 2)
	require.NotEmpty(t, chat.Automations[0].ID)
}

func TestSaveAutomationsAbortsWhenAssistantFails(t *testing.T) {
	assistant := &stubAssistant{err: errors.New("upstream unavailable")}
	env, svc, chatID := newAutomationFixture(t, assistant)
	ctx := context.Background()

	_, err := svc.Save(ctx, chatID, "ana", dto.UpdateAutomationsRequest{Automations: []dto.AutomationPayload{{Name: "Ice Breaker", Enabled: true}}})
	require.Error(t, err)

	chat, err := env.directory.Get(ctx, chatID, "ana")
	require.NoError(t, err)
	require.Empty(t, chat.Automations)
}

func TestUpdateAutomationsRequiresMembership(t *testing.T) {
	env, svc, chatID := newAutomationFixture(t, nil)
	env.seedUser(t, "cat", "cat")

	_, err := svc.UpdateAutomations(context.Background(), chatID, "cat", dto.UpdateAutomationsRequest{})
	require.ErrorIs(t, err, ErrNotChatMember)

	stored, err := svc.UpdateAutomations(context.Background(), chatID, "ana", dto.UpdateAutomationsRequest{Automations: []dto.AutomationPayload{{Name: "Ice Breaker", Enabled: true}}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
}
