package eventstream

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/nbykov/go-bedrockgw/internal/provider"
)

// wrapChunk builds a wire frame whose payload carries chunk behind the
// base64 "bytes" envelope, the way streamed chunks arrive.
func wrapChunk(chunk string) []byte {
	payload := fmt.Sprintf(`{"bytes":%q}`, base64.StdEncoding.EncodeToString([]byte(chunk)))
	return Encode(map[string]string{
		":message-type": "event",
		":event-type":   "chunk",
	}, []byte(payload))
}

func claudeStream() []byte {
	var wire []byte
	for _, chunk := range []string{
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":" world"}}`,
		`{"type":"message_stop"}`,
	} {
		wire = append(wire, wrapChunk(chunk)...)
	}
	return wire
}

func collectText(events []Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Kind == KindTextDelta {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}

func TestDecoderClaudeText(t *testing.T) {
	dec := NewDecoder(provider.FamilyClaude)
	events := dec.Feed(claudeStream())
	events = append(events, dec.Flush()...)

	if got := collectText(events); got != "Hello world" {
		t.Errorf("text = %q", got)
	}
	last := events[len(events)-1]
	if last.Kind != KindMessageStop {
		t.Errorf("last event = %s", last.Kind)
	}
}

func TestDecoderChunkBoundaryInvariance(t *testing.T) {
	wire := claudeStream()

	whole := NewDecoder(provider.FamilyClaude)
	wantEvents := whole.Feed(append([]byte{}, wire...))
	wantEvents = append(wantEvents, whole.Flush()...)

	for _, size := range []int{1, 2, 7, 64} {
		dec := NewDecoder(provider.FamilyClaude)
		var events []Event
		for start := 0; start < len(wire); start += size {
			end := min(start+size, len(wire))
			events = append(events, dec.Feed(wire[start:end])...)
		}
		events = append(events, dec.Flush()...)

		if !reflect.DeepEqual(events, wantEvents) {
			t.Errorf("chunk size %d: events differ\ngot  %v\nwant %v", size, events, wantEvents)
		}
	}
}

func TestDecoderClaudeToolCall(t *testing.T) {
	var wire []byte
	for _, chunk := range []string{
		`{"type":"content_block_start","content_block":{"type":"tool_use","id":"tooluse_9","name":"get_weather"}}`,
		`{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
		`{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"\"Oslo\"}"}}`,
		`{"type":"content_block_stop"}`,
		`{"type":"message_stop"}`,
	} {
		wire = append(wire, wrapChunk(chunk)...)
	}

	dec := NewDecoder(provider.FamilyClaude)
	events := dec.Feed(wire)

	kinds := make([]Kind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	want := []Kind{KindToolCallStart, KindToolCallArgDelta, KindToolCallArgDelta, KindToolCallStop, KindMessageStop}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}

	start := events[0]
	if start.ToolID != "tooluse_9" || start.ToolName != "get_weather" || start.Index != 0 {
		t.Errorf("start event = %+v", start)
	}
	args := events[1].Text + events[2].Text
	if args != `{"city":"Oslo"}` {
		t.Errorf("accumulated args = %q", args)
	}
}

func TestDecoderSynthesizesToolID(t *testing.T) {
	wire := wrapChunk(`{"type":"content_block_start","content_block":{"type":"tool_use","name":"get_weather"}}`)
	dec := NewDecoder(provider.FamilyClaude)
	events := dec.Feed(wire)
	if len(events) != 1 {
		t.Fatalf("events = %v", events)
	}
	if !strings.HasPrefix(events[0].ToolID, "tooluse_") || len(events[0].ToolID) <= len("tooluse_") {
		t.Errorf("synthesized id = %q", events[0].ToolID)
	}
}

func TestDecoderNova(t *testing.T) {
	var wire []byte
	for _, chunk := range []string{
		`{"contentBlockDelta":{"delta":{"text":"Hi"}}}`,
		`{"contentBlockStart":{"start":{"toolUse":{"toolUseId":"tu1","name":"lookup"}}}}`,
		`{"contentBlockDelta":{"delta":{"toolUse":{"input":"{}"}}}}`,
		`{"contentBlockStop":{}}`,
		`{"messageStop":{}}`,
	} {
		wire = append(wire, wrapChunk(chunk)...)
	}

	dec := NewDecoder(provider.FamilyNova)
	events := dec.Feed(wire)

	kinds := make([]Kind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	want := []Kind{KindTextDelta, KindToolCallStart, KindToolCallArgDelta, KindToolCallStop, KindMessageStop}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
}

func TestDecoderTranscriptFamilies(t *testing.T) {
	tests := []struct {
		name   string
		family provider.Family
		chunks []string
	}{
		{"titan", provider.FamilyTitan, []string{
			`{"outputText":"Hello"}`,
			`{"outputText":" world","completionReason":"FINISH"}`,
		}},
		{"llama", provider.FamilyLlama, []string{
			`{"generation":"Hello"}`,
			`{"generation":" world","stop_reason":"stop"}`,
		}},
		{"mistral", provider.FamilyMistral, []string{
			`{"outputs":[{"text":"Hello"}]}`,
			`{"outputs":[{"text":" world","stop_reason":"stop"}]}`,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var wire []byte
			for _, chunk := range tt.chunks {
				wire = append(wire, wrapChunk(chunk)...)
			}
			dec := NewDecoder(tt.family)
			events := dec.Feed(wire)
			if got := collectText(events); got != "Hello world" {
				t.Errorf("text = %q", got)
			}
			if events[len(events)-1].Kind != KindMessageStop {
				t.Errorf("missing message stop: %v", events)
			}
		})
	}
}

func TestDecoderExceptionFrame(t *testing.T) {
	wire := Encode(map[string]string{
		":message-type":   "exception",
		":exception-type": "throttlingException",
	}, []byte(`{"message":"slow down"}`))

	dec := NewDecoder(provider.FamilyClaude)
	events := dec.Feed(wire)
	if len(events) != 1 || events[0].Kind != KindStreamError {
		t.Fatalf("events = %v", events)
	}
	if events[0].Text != "slow down" {
		t.Errorf("detail = %q", events[0].Text)
	}
}

func TestDecoderSkipsCorruptFrame(t *testing.T) {
	bad := wrapChunk(`{"type":"content_block_delta","delta":{"type":"text_delta","text":"LOST"}}`)
	bad[len(bad)-checksumSize-1] ^= 0xFF
	good := wrapChunk(`{"type":"content_block_delta","delta":{"type":"text_delta","text":"kept"}}`)

	dec := NewDecoder(provider.FamilyClaude)
	events := dec.Feed(append(bad, good...))
	if got := collectText(events); got != "kept" {
		t.Errorf("text = %q", got)
	}
}

func TestDecoderFlushTrailingPayload(t *testing.T) {
	// A stream cut off before the final frame's checksum still yields the
	// frame's payload on Flush.
	wire := wrapChunk(`{"type":"content_block_delta","delta":{"type":"text_delta","text":"tail"}}`)
	truncated := wire[:len(wire)-checksumSize]

	dec := NewDecoder(provider.FamilyClaude)
	if events := dec.Feed(truncated); len(events) != 0 {
		t.Fatalf("premature events: %v", events)
	}
	events := dec.Flush()
	if got := collectText(events); got != "tail" {
		t.Errorf("flushed text = %q", got)
	}
	if again := dec.Flush(); len(again) != 0 {
		t.Errorf("second flush = %v", again)
	}
}
