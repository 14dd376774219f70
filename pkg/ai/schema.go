package ai

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const channelSetupSchemaJSON = `{
  "type": "object",
  "required": ["descriptionSuggestion", "automationSuggestions"],
  "properties": {
    "descriptionSuggestion": {"type": "string"},
    "automationSuggestions": {"type": "array", "items": {"type": "string"}}
  }
}`

const automationConfigSchemaJSON = `{
  "type": "object",
  "required": ["configuredAutomations"],
  "properties": {
    "configuredAutomations": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`

var (
	channelSetupSchema     = jsonschema.MustCompileString("channel_setup.schema.json", channelSetupSchemaJSON)
	automationConfigSchema = jsonschema.MustCompileString("automation_config.schema.json", automationConfigSchemaJSON)
)

// decodeValidated checks content against schema before decoding it into target.
func decodeValidated(schema *jsonschema.Schema, content string, target interface{}) error {
	var document interface{}
	if err := json.Unmarshal([]byte(content), &document); err != nil {
		return fmt.Errorf("parse assistant json: %w", err)
	}
	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("assistant response rejected: %w", err)
	}
	if err := json.Unmarshal([]byte(content), target); err != nil {
		return fmt.Errorf("decode assistant json: %w", err)
	}
	return nil
}
