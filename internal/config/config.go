package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode selects how outbound requests are authorized.
type Mode string

const (
	// ModeDirect signs requests with SigV4 and talks to the backend itself.
	ModeDirect Mode = "direct"
	// ModeRelayed sends encrypted credential headers to a trusted relay,
	// which performs the real signed call.
	ModeRelayed Mode = "relayed"
)

const (
	// DefaultAnthropicVersion is sent with every Claude-family request.
	DefaultAnthropicVersion = "bedrock-2023-05-31"
	// DefaultVideoOutputURI receives video artifacts when no bucket is set.
	DefaultVideoOutputURI = "s3://nova-test-videos-us-west-2"
)

// Config holds all gateway configuration. It is assembled once at startup
// and injected; nothing reads ambient process state after that.
type Config struct {
	Mode Mode

	Region        string
	AccessKey     string
	SecretKey     string
	SessionToken  string
	EncryptionKey string

	// Endpoint overrides the regional backend URL (tests, relay targets).
	Endpoint string
	// RelayURL is the base URL of the trusted relay in relayed mode.
	RelayURL string

	// RequestTimeout bounds one streaming round; expiry behaves like an
	// explicit cancellation.
	RequestTimeout time.Duration
	// PacerInterval is the display pacer flush tick.
	PacerInterval time.Duration
	// MaxToolRounds bounds tool-call round-trips per turn. Zero means
	// unbounded, matching the reference behavior.
	MaxToolRounds int

	AnthropicVersion string
	Verbose          bool
}

// DefaultFromEnv creates a Config with defaults from environment variables.
func DefaultFromEnv() *Config {
	mode := ModeDirect
	if strings.EqualFold(os.Getenv("BEDROCKGW_MODE"), string(ModeRelayed)) {
		mode = ModeRelayed
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-west-2"
	}
	return &Config{
		Mode:             mode,
		Region:           region,
		AccessKey:        strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID")),
		SecretKey:        strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY")),
		SessionToken:     strings.TrimSpace(os.Getenv("AWS_SESSION_TOKEN")),
		EncryptionKey:    strings.TrimSpace(os.Getenv("BEDROCKGW_ENCRYPTION_KEY")),
		Endpoint:         os.Getenv("BEDROCKGW_ENDPOINT"),
		RelayURL:         os.Getenv("BEDROCKGW_RELAY_URL"),
		RequestTimeout:   envDuration("BEDROCKGW_TIMEOUT", 60*time.Second),
		PacerInterval:    envDuration("BEDROCKGW_PACER_INTERVAL", 16*time.Millisecond),
		MaxToolRounds:    envInt("BEDROCKGW_MAX_TOOL_ROUNDS", 8),
		AnthropicVersion: envOrDefault("BEDROCKGW_ANTHROPIC_VERSION", DefaultAnthropicVersion),
		Verbose:          envBool("BEDROCKGW_VERBOSE"),
	}
}

// EndpointURL returns the backend base URL for the configured region,
// honoring an explicit override.
func (c *Config) EndpointURL() string {
	if c.Endpoint != "" {
		return strings.TrimRight(c.Endpoint, "/")
	}
	return "https://bedrock-runtime." + c.Region + ".amazonaws.com"
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
