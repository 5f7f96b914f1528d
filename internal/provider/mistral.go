package provider

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/nbykov/go-bedrockgw/internal/types"
)

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralFunction struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

type mistralTool struct {
	Type     string          `json:"type"`
	Function mistralFunction `json:"function"`
}

type mistralRequest struct {
	Messages    []mistralMessage `json:"messages"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	TopP        float64          `json:"top_p"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	Tools       []mistralTool    `json:"tools,omitempty"`
}

// formatMistral keeps the multi-turn structure as discrete messages.
// Unrecognized roles fall back to user.
func formatMistral(messages []types.Message, cfg types.ModelConfig, tools []openai.Tool) mistralRequest {
	out := make([]mistralMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		switch role {
		case types.RoleSystem, types.RoleUser, types.RoleAssistant:
		default:
			role = types.RoleUser
		}
		out = append(out, mistralMessage{Role: role, Content: types.TextContent(m)})
	}

	req := mistralRequest{
		Messages:    out,
		MaxTokens:   defaultInt(cfg.MaxTokens, 4096),
		Temperature: defaultFloat(cfg.Temperature, 0.7),
		TopP:        defaultFloat(cfg.TopP, 0.9),
	}

	if len(tools) > 0 {
		req.ToolChoice = "auto"
		for _, t := range tools {
			if t.Function == nil {
				continue
			}
			req.Tools = append(req.Tools, mistralTool{
				Type: "function",
				Function: mistralFunction{
					Name:        t.Function.Name,
					Description: t.Function.Description,
					Parameters:  t.Function.Parameters,
				},
			})
		}
	}
	return req
}
