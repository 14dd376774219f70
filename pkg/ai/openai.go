package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vibely",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of AI assistant requests",
	}, []string{"model", "operation"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibely",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of AI assistant failures",
	}, []string{"model", "operation"})
)

// OpenAIConfig defines configuration options for the OpenAI assistant.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAssistant implements Assistant against the OpenAI chat completion API.
type OpenAIAssistant struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAssistant builds a new assistant using the provided configuration.
func NewOpenAIAssistant(cfg OpenAIConfig) (*OpenAIAssistant, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIAssistant{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/vibely-go-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_assistant").Logger(),
	}, nil
}

// SuggestChannelSetup proposes a description and catalog automations for a new channel.
func (a *OpenAIAssistant) SuggestChannelSetup(ctx context.Context, input ChannelSetupInput) (ChannelSetupSuggestion, error) {
	content, err := a.complete(ctx, "channel_setup", channelSetupSystemPrompt(), buildChannelSetupPrompt(input))
	if err != nil {
		return ChannelSetupSuggestion{}, err
	}

	var suggestion ChannelSetupSuggestion
	if err := decodeValidated(channelSetupSchema, content, &suggestion); err != nil {
		aiFailures.WithLabelValues(a.cfg.Model, "channel_setup").Inc()
		return ChannelSetupSuggestion{}, err
	}
	return suggestion, nil
}

// ConfigureAutomations returns the final configuration text for each enabled automation.
func (a *OpenAIAssistant) ConfigureAutomations(ctx context.Context, input AutomationConfigInput) (AutomationConfigResult, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return AutomationConfigResult{}, fmt.Errorf("encode automation input: %w", err)
	}

	content, err := a.complete(ctx, "configure_automations", automationSystemPrompt(), string(payload))
	if err != nil {
		return AutomationConfigResult{}, err
	}

	var result AutomationConfigResult
	if err := decodeValidated(automationConfigSchema, content, &result); err != nil {
		aiFailures.WithLabelValues(a.cfg.Model, "configure_automations").Inc()
		return AutomationConfigResult{}, err
	}
	if result.ConfiguredAutomations == nil {
		result.ConfiguredAutomations = map[string]string{}
	}
	return result, nil
}

func (a *OpenAIAssistant) complete(parent context.Context, operation, system, user string) (string, error) {
	ctx, span := a.tracer.Start(parent, "openai."+operation, trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := a.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(a.cfg.Model, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(a.cfg.Model, operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai %s: %w", operation, err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		aiFailures.WithLabelValues(a.cfg.Model, operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	a.logger.Debug().Str("operation", operation).Int("total_tokens", resp.Usage.TotalTokens).Msg("assistant completion")
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func channelSetupSystemPrompt() string {
	return "You help people set up team chat channels. Respond with a JSON object containing descriptionSuggestion " +
		"(one sentence) and automationSuggestions (a list chosen only from: " + strings.Join(CatalogNames(), ", ") + ")."
}

func automationSystemPrompt() string {
	return "You are a channel automation configuration expert. You receive a channel name, description, member list, " +
		"desired automation settings and automation adjustments as JSON. For each enabled automation provide its final " +
		"configuration. Respond with a JSON object {\"configuredAutomations\": {name: configuration}}."
}

func buildChannelSetupPrompt(input ChannelSetupInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Channel Title\n")
	builder.WriteString(input.ChannelTitle)
	builder.WriteString("\n\n## Members\n")
	builder.WriteString(strings.Join(input.MemberNames, ", "))
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}
