package provider

import (
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"

	"github.com/nbykov/go-bedrockgw/internal/types"
)

type novaSource struct {
	Bytes string `json:"bytes"`
}

type novaImage struct {
	Format string     `json:"format"`
	Source novaSource `json:"source"`
}

type novaContent struct {
	Text  string     `json:"text,omitempty"`
	Image *novaImage `json:"image,omitempty"`
}

type novaMessage struct {
	Role    string        `json:"role"`
	Content []novaContent `json:"content"`
}

type novaInferenceConfig struct {
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	TopK          int      `json:"top_k"`
	MaxNewTokens  int      `json:"max_new_tokens"`
	StopSequences []string `json:"stopSequences"`
}

type novaSchemaJSON struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Required   json.RawMessage `json:"required"`
}

type novaToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema struct {
		JSON novaSchemaJSON `json:"json"`
	} `json:"inputSchema"`
}

type novaToolEntry struct {
	ToolSpec novaToolSpec `json:"toolSpec"`
}

type novaToolConfig struct {
	Tools      []novaToolEntry `json:"tools"`
	ToolChoice map[string]any  `json:"toolChoice"`
}

type novaRequest struct {
	SchemaVersion   string              `json:"schemaVersion"`
	Messages        []novaMessage       `json:"messages"`
	System          []novaContent       `json:"system,omitempty"`
	InferenceConfig novaInferenceConfig `json:"inferenceConfig"`
	ToolConfig      *novaToolConfig     `json:"toolConfig,omitempty"`
}

// formatNova builds the Nova messages-v1 request. The system turn moves to
// the dedicated system field; image parts are rebuilt from data URIs.
func formatNova(messages []types.Message, cfg types.ModelConfig, tools []openai.Tool) novaRequest {
	req := novaRequest{
		SchemaVersion: "messages-v1",
		InferenceConfig: novaInferenceConfig{
			Temperature:   defaultFloat(cfg.Temperature, 0.7),
			TopP:          defaultFloat(cfg.TopP, 0.9),
			TopK:          defaultInt(cfg.TopK, 50),
			MaxNewTokens:  defaultInt(cfg.MaxTokens, 1000),
			StopSequences: cfg.Stop,
		},
	}
	if req.InferenceConfig.StopSequences == nil {
		req.InferenceConfig.StopSequences = []string{}
	}

	for _, m := range messages {
		if m.Role == types.RoleSystem {
			if req.System == nil {
				req.System = []novaContent{{Text: types.TextContent(m)}}
			}
			continue
		}
		req.Messages = append(req.Messages, novaMessage{
			Role:    m.Role,
			Content: novaContentFrom(m),
		})
	}

	if len(tools) > 0 {
		tc := &novaToolConfig{ToolChoice: map[string]any{"auto": map[string]any{}}}
		for _, t := range tools {
			if t.Function == nil {
				continue
			}
			entry := novaToolEntry{ToolSpec: novaToolSpec{
				Name:        t.Function.Name,
				Description: t.Function.Description,
			}}
			entry.ToolSpec.InputSchema.JSON = novaSchemaFrom(t.Function.Parameters)
			tc.Tools = append(tc.Tools, entry)
		}
		req.ToolConfig = tc
	}
	return req
}

func novaContentFrom(m types.Message) []novaContent {
	if len(m.Parts) == 0 {
		return []novaContent{{Text: m.Content}}
	}
	var content []novaContent
	for _, p := range m.Parts {
		switch {
		case p.Type == "text":
			content = append(content, novaContent{Text: p.Text})
		case p.ImageURL != "":
			mime, _, data, ok := types.SplitDataURI(p.ImageURL)
			if !ok {
				continue
			}
			format := mime
			if idx := strings.Index(mime, "/"); idx >= 0 {
				format = mime[idx+1:]
			}
			content = append(content, novaContent{Image: &novaImage{
				Format: format,
				Source: novaSource{Bytes: data},
			}})
		}
	}
	return content
}

// novaSchemaFrom passes the tool's JSON-schema properties and required list
// through unchanged, defaulting each to empty when absent.
func novaSchemaFrom(parameters any) novaSchemaJSON {
	schema := novaSchemaJSON{
		Type:       "object",
		Properties: json.RawMessage("{}"),
		Required:   json.RawMessage("[]"),
	}
	raw, err := json.Marshal(parameters)
	if err != nil {
		return schema
	}
	if props := gjson.GetBytes(raw, "properties"); props.Exists() {
		schema.Properties = json.RawMessage(props.Raw)
	}
	if required := gjson.GetBytes(raw, "required"); required.Exists() {
		schema.Required = json.RawMessage(required.Raw)
	}
	return schema
}
