package types

import "strings"

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ContentPart is one element of a multimodal message body.
type ContentPart struct {
	Type     string `json:"type"` // "text" or "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"` // data URI
}

// Message is the canonical conversation message. Content holds plain text;
// multimodal messages carry Parts instead. Messages are append-only: once a
// message is part of a request it is never mutated, follow-up turns are
// appended after it.
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// TextContent flattens a message into plain text, joining text parts and
// ignoring images.
func TextContent(m Message) string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type != "text" || p.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// IsEmpty reports whether the message carries no usable content.
func IsEmpty(m Message) bool {
	if len(m.Parts) > 0 {
		return false
	}
	return strings.TrimSpace(m.Content) == ""
}

// SplitDataURI splits a "data:<mime>;<encoding>,<payload>" URI into its
// segments. ok is false when the string is not a well-formed data URI.
func SplitDataURI(uri string) (mime, encoding, data string, ok bool) {
	colon := strings.Index(uri, ":")
	semi := strings.Index(uri, ";")
	comma := strings.Index(uri, ",")
	if colon < 0 || semi < colon || comma < semi {
		return "", "", "", false
	}
	return uri[colon+1 : semi], uri[semi+1 : comma], uri[comma+1:], true
}

// visionMarkers are model-id substrings that indicate image input support.
var visionMarkers = []string{"claude-3", "claude-4", "amazon.nova", "vision"}

// IsVisionModel reports whether the model accepts image content parts.
func IsVisionModel(model string) bool {
	for _, marker := range visionMarkers {
		if strings.Contains(model, marker) {
			return true
		}
	}
	return false
}
