package provider

import (
	"strings"

	"github.com/nbykov/go-bedrockgw/internal/types"
)

// Llama 3 prompt token vocabulary.
const (
	llamaBeginOfText   = "<|begin_of_text|>"
	llamaHeaderStart   = "<|start_header_id|>"
	llamaHeaderEnd     = "<|end_header_id|>"
	llamaEndOfTurn     = "<|eot_id|>"
	llamaDefaultGenLen = 512
)

type llamaRequest struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// formatLlama renders the conversation as a single delimited prompt: system
// block first, each turn wrapped in role headers, and a trailing open
// assistant header to elicit the continuation.
func formatLlama(messages []types.Message, cfg types.ModelConfig) llamaRequest {
	var prompt strings.Builder
	prompt.WriteString(llamaBeginOfText)

	for _, m := range messages {
		if m.Role != types.RoleSystem {
			continue
		}
		writeLlamaTurn(&prompt, types.RoleSystem, types.TextContent(m))
		break
	}
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			continue
		}
		role := types.RoleUser
		if m.Role == types.RoleAssistant {
			role = types.RoleAssistant
		}
		writeLlamaTurn(&prompt, role, types.TextContent(m))
	}
	prompt.WriteString(llamaHeaderStart + types.RoleAssistant + llamaHeaderEnd)

	return llamaRequest{
		Prompt:      prompt.String(),
		MaxGenLen:   defaultInt(cfg.MaxTokens, llamaDefaultGenLen),
		Temperature: defaultFloat(cfg.Temperature, 0.7),
		TopP:        defaultFloat(cfg.TopP, 0.9),
	}
}

func writeLlamaTurn(sb *strings.Builder, role, content string) {
	sb.WriteString(llamaHeaderStart)
	sb.WriteString(role)
	sb.WriteString(llamaHeaderEnd)
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString(llamaEndOfTurn)
}
