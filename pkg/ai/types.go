package ai

import "context"

// ChannelSetupInput describes a channel being created.
type ChannelSetupInput struct {
	ChannelTitle string
	MemberNames  []string
}

// ChannelSetupSuggestion is the assistant's proposal for a new channel.
type ChannelSetupSuggestion struct {
	DescriptionSuggestion string   `json:"descriptionSuggestion"`
	AutomationSuggestions []string `json:"automationSuggestions"`
}

// AutomationConfigInput carries the desired automation state of a channel.
// Settings and adjustments are keyed by automation name.
type AutomationConfigInput struct {
	ChannelName           string            `json:"channelName"`
	ChannelDescription    string            `json:"channelDescription"`
	MemberList            []string          `json:"memberList"`
	AutomationSettings    map[string]bool   `json:"automationSettings"`
	AutomationAdjustments map[string]string `json:"automationAdjustments,omitempty"`
}

// AutomationConfigResult maps automation names to their final configuration text.
type AutomationConfigResult struct {
	ConfiguredAutomations map[string]string `json:"configuredAutomations"`
}

// Assistant produces channel setup suggestions and automation configurations.
type Assistant interface {
	SuggestChannelSetup(ctx context.Context, input ChannelSetupInput) (ChannelSetupSuggestion, error)
	ConfigureAutomations(ctx context.Context, input AutomationConfigInput) (AutomationConfigResult, error)
}
