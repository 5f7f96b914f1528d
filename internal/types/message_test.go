package types

import "testing"

func TestSplitDataURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		mime     string
		encoding string
		data     string
		ok       bool
	}{
		{"png", "data:image/png;base64,iVBORw0KGgo", "image/png", "base64", "iVBORw0KGgo", true},
		{"jpeg", "data:image/jpeg;base64,/9j/4AAQ", "image/jpeg", "base64", "/9j/4AAQ", true},
		{"empty payload", "data:image/png;base64,", "image/png", "base64", "", true},
		{"plain url", "https://example.com/cat.png", "", "", "", false},
		{"missing comma", "data:image/png;base64", "", "", "", false},
		{"missing semicolon", "data:image/png,abc", "", "", "", false},
		{"empty", "", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, encoding, data, ok := SplitDataURI(tt.uri)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if mime != tt.mime || encoding != tt.encoding || data != tt.data {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)", mime, encoding, data, tt.mime, tt.encoding, tt.data)
			}
		})
	}
}

func TestTextContent(t *testing.T) {
	plain := Message{Role: RoleUser, Content: "hello"}
	if got := TextContent(plain); got != "hello" {
		t.Errorf("plain content = %q", got)
	}

	multi := Message{Role: RoleUser, Parts: []ContentPart{
		{Type: "text", Text: "first"},
		{Type: "image_url", ImageURL: "data:image/png;base64,xx"},
		{Type: "text", Text: "second"},
	}}
	if got := TextContent(multi); got != "first\nsecond" {
		t.Errorf("multimodal content = %q", got)
	}
}

func TestIsEmpty(t *testing.T) {
	if !IsEmpty(Message{Role: RoleUser, Content: "   "}) {
		t.Error("whitespace-only message should be empty")
	}
	if IsEmpty(Message{Role: RoleUser, Content: "hi"}) {
		t.Error("text message should not be empty")
	}
	if IsEmpty(Message{Role: RoleUser, Parts: []ContentPart{{Type: "image_url", ImageURL: "data:image/png;base64,xx"}}}) {
		t.Error("message with parts should not be empty")
	}
}

func TestIsVisionModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"anthropic.claude-3-5-sonnet-20240620-v1:0", true},
		{"amazon.nova-pro-v1:0", true},
		{"us.meta.llama3-2-90b-vision-instruct-v1:0", true},
		{"anthropic.claude-v2:1", false},
		{"amazon.titan-text-express-v1", false},
	}
	for _, tt := range tests {
		if got := IsVisionModel(tt.model); got != tt.want {
			t.Errorf("IsVisionModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
