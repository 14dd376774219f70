package dto

// UpdateAutomationsRequest replaces a chat's automations wholesale.
type UpdateAutomationsRequest struct {
	Automations []AutomationPayload `json:"automations" validate:"max=20,dive"`
}

// SetupSuggestionRequest asks for an AI proposal while a channel is being drafted.
type SetupSuggestionRequest struct {
	ChatTitle string   `json:"chat_title" validate:"required,min=3,max=80"`
	MemberIDs []string `json:"member_ids" validate:"max=200,dive,required,max=128"`
}

// SetupSuggestionResponse carries the suggested description and catalog automations.
type SetupSuggestionResponse struct {
	DescriptionSuggestion string              `json:"description_suggestion"`
	Automations           []AutomationPayload `json:"automations"`
}

// SaveAutomationsResponse returns the stored automations and the assistant's configuration.
type SaveAutomationsResponse struct {
	Automations           []AutomationPayload `json:"automations"`
	ConfiguredAutomations map[string]string   `json:"configured_automations"`
}
