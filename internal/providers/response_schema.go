package providers

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// anthropicResponseSchema is the subset of the Messages API response the
// adapter depends on.
const anthropicResponseSchema = `{
  "type": "object",
  "required": ["content", "usage"],
  "properties": {
    "id": {"type": "string"},
    "model": {"type": "string"},
    "stop_reason": {"type": ["string", "null"]},
    "content": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string"},
          "text": {"type": "string"}
        }
      }
    },
    "usage": {
      "type": "object",
      "required": ["input_tokens", "output_tokens"],
      "properties": {
        "input_tokens": {"type": "integer", "minimum": 0},
        "output_tokens": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

var compileAnthropicSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("anthropic_response.json", strings.NewReader(anthropicResponseSchema)); err != nil {
		return nil, fmt.Errorf("failed to load response schema: %w", err)
	}
	return compiler.Compile("anthropic_response.json")
})

// validateResponsePayload checks a raw provider body against schema before
// it is decoded into typed structs.
func validateResponsePayload(compile func() (*jsonschema.Schema, error), provider string, body []byte) error {
	schema, err := compile()
	if err != nil {
		return fmt.Errorf("failed to compile response schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return &ProviderError{Provider: provider, StatusCode: 200, Body: "malformed response: " + err.Error()}
	}
	if err := schema.Validate(doc); err != nil {
		return &ProviderError{Provider: provider, StatusCode: 200, Body: "unexpected response shape: " + err.Error()}
	}
	return nil
}
