package provider

import (
	"strings"

	"github.com/nbykov/go-bedrockgw/internal/types"
)

type titanGenerationConfig struct {
	MaxTokenCount int      `json:"maxTokenCount"`
	Temperature   float64  `json:"temperature"`
	StopSequences []string `json:"stopSequences"`
}

type titanRequest struct {
	InputText            string                `json:"inputText"`
	TextGenerationConfig titanGenerationConfig `json:"textGenerationConfig"`
}

// formatTitan flattens the whole conversation into one "role: content"
// transcript. Titan has no tool support and no fallback defaults: the
// configured values are passed through as-is.
func formatTitan(messages []types.Message, cfg types.ModelConfig) titanRequest {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+types.TextContent(m))
	}
	return titanRequest{
		InputText: strings.Join(lines, "\n\n"),
		TextGenerationConfig: titanGenerationConfig{
			MaxTokenCount: cfg.MaxTokens,
			Temperature:   cfg.Temperature,
			StopSequences: []string{},
		},
	}
}
