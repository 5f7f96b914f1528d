package provider

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nbykov/go-bedrockgw/internal/types"
)

const (
	defaultAnthropicVersion = "bedrock-2023-05-31"
	// fillerContent is the body of synthetic turns inserted to satisfy the
	// backend's strict user/assistant alternation.
	fillerContent = ";"
)

type claudeSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeContent struct {
	Type   string        `json:"type"`
	Text   string        `json:"text,omitempty"`
	Source *claudeSource `json:"source,omitempty"`
}

type claudeMessage struct {
	Role string `json:"role"`
	// Content is a plain string for text-only turns, []claudeContent for
	// vision turns.
	Content any `json:"content"`
}

type claudeTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Messages         []claudeMessage `json:"messages"`
	Temperature      float64         `json:"temperature"`
	TopP             float64         `json:"top_p"`
	TopK             int             `json:"top_k"`
	Tools            []claudeTool    `json:"tools,omitempty"`
}

// formatClaude builds the default (Claude-shape) request. System turns are
// remapped to user turns, empty turns are dropped, and the sequence is
// padded with filler turns so that roles strictly alternate.
func formatClaude(messages []types.Message, cfg types.ModelConfig, tools []openai.Tool) claudeRequest {
	vision := types.IsVisionModel(cfg.Model)

	kept := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		if types.IsEmpty(m) {
			continue
		}
		kept = append(kept, m)
	}

	out := make([]claudeMessage, 0, len(kept))
	for i, m := range kept {
		out = append(out, claudeMessageFrom(m, vision))
		if i+1 < len(kept) && isUserClass(m.Role) && isUserClass(kept[i+1].Role) {
			out = append(out, claudeMessage{Role: types.RoleAssistant, Content: fillerContent})
		}
	}
	if len(out) > 0 && out[0].Role == types.RoleAssistant {
		out = append([]claudeMessage{{Role: types.RoleUser, Content: fillerContent}}, out...)
	}

	version := cfg.AnthropicVersion
	if version == "" {
		version = defaultAnthropicVersion
	}

	req := claudeRequest{
		AnthropicVersion: version,
		MaxTokens:        cfg.MaxTokens,
		Messages:         out,
		Temperature:      cfg.Temperature,
		TopP:             defaultFloat(cfg.TopP, 0.9),
		TopK:             defaultInt(cfg.TopK, 5),
	}

	if len(tools) > 0 && strings.Contains(cfg.Model, "anthropic.claude") {
		for _, t := range tools {
			if t.Function == nil {
				continue
			}
			schema := t.Function.Parameters
			if schema == nil {
				schema = map[string]any{}
			}
			req.Tools = append(req.Tools, claudeTool{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				InputSchema: schema,
			})
		}
	}
	return req
}

// isUserClass reports whether the role lands on the user side of the
// alternation (system turns are sent as user turns).
func isUserClass(role string) bool {
	return role == types.RoleSystem || role == types.RoleUser
}

func claudeMessageFrom(m types.Message, vision bool) claudeMessage {
	role := types.RoleUser
	if m.Role == types.RoleAssistant {
		role = types.RoleAssistant
	}

	if !vision || len(m.Parts) == 0 {
		return claudeMessage{Role: role, Content: types.TextContent(m)}
	}

	var content []claudeContent
	for _, p := range m.Parts {
		switch {
		case p.Type == "text" && p.Text != "":
			content = append(content, claudeContent{Type: "text", Text: p.Text})
		case p.ImageURL != "":
			mime, encoding, data, ok := types.SplitDataURI(p.ImageURL)
			if !ok {
				continue
			}
			content = append(content, claudeContent{
				Type: "image",
				Source: &claudeSource{
					Type:      encoding,
					MediaType: mime,
					Data:      data,
				},
			})
		}
	}
	return claudeMessage{Role: role, Content: content}
}
