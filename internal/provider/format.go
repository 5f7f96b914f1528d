package provider

import (
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nbykov/go-bedrockgw/internal/types"
)

// FormatChatRequest builds the provider request body for the model named in
// cfg. It is a pure function: messages are read, never mutated.
func FormatChatRequest(messages []types.Message, cfg types.ModelConfig, tools []openai.Tool) (RequestBody, error) {
	family := Resolve(cfg.Model)

	var body any
	switch family {
	case FamilyNova:
		body = formatNova(messages, cfg, tools)
	case FamilyTitan:
		body = formatTitan(messages, cfg)
	case FamilyLlama:
		body = formatLlama(messages, cfg)
	case FamilyMistral:
		body = formatMistral(messages, cfg, tools)
	default:
		body = formatClaude(messages, cfg, tools)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return RequestBody{}, fmt.Errorf("marshal %s request: %w", family, err)
	}
	return RequestBody{Family: family, JSON: raw}, nil
}

func defaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
