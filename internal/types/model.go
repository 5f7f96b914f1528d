package types

// ModelConfig carries per-request inference parameters. Zero values mean
// "unset"; each provider formatter applies its own documented defaults.
type ModelConfig struct {
	Model            string
	Temperature      float64
	TopP             float64
	TopK             int
	MaxTokens        int
	Stop             []string
	Stream           bool
	AnthropicVersion string
}
