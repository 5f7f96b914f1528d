package eventstream

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/nbykov/go-bedrockgw/internal/provider"
)

// Decoder reassembles arbitrarily chunked stream bytes into frames and
// normalizes frame payloads into events for one provider family. It owns
// its buffer: leftover bytes from one Feed persist into the next. A Decoder
// belongs to exactly one in-flight request and is not safe for concurrent
// use.
type Decoder struct {
	family provider.Family
	buf    []byte

	// toolIndex tracks the position of the tool call currently being
	// accumulated; argument fragments attach to it.
	toolIndex int
	toolOpen  bool
}

// NewDecoder creates a Decoder for the given provider family.
func NewDecoder(family provider.Family) *Decoder {
	return &Decoder{family: family, toolIndex: -1}
}

// Feed appends chunk to the internal buffer and emits events for every
// complete frame now available. Malformed frames are logged and skipped;
// the stream continues.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	for len(d.buf) > 0 {
		frame, consumed, err := decodeFrame(d.buf)
		if errors.Is(err, errIncompleteFrame) {
			break
		}
		if err != nil {
			if consumed == 0 {
				// Prelude is untrustworthy, nothing to resync on.
				slog.Warn("dropping unrecoverable stream buffer", "error", err, "buffered", len(d.buf))
				d.buf = nil
				break
			}
			slog.Warn("skipping malformed frame", "error", err, "size", consumed)
			d.buf = d.buf[consumed:]
			continue
		}
		d.buf = d.buf[consumed:]
		events = append(events, d.parseFrame(frame)...)
	}
	return events
}

// Flush drains a trailing unterminated frame through the same payload parse
// path. Called once at end of stream.
func (d *Decoder) Flush() []Event {
	if len(d.buf) == 0 {
		return nil
	}
	buf := d.buf
	d.buf = nil

	payload := buf
	if len(buf) >= preludeSize && crc32.ChecksumIEEE(buf[0:8]) == binary.BigEndian.Uint32(buf[8:preludeSize]) {
		headerLen := int(binary.BigEndian.Uint32(buf[4:8]))
		if preludeSize+headerLen <= len(buf) {
			payload = buf[preludeSize+headerLen:]
		}
	}
	events := d.parsePayload(payload)
	if events == nil {
		slog.Warn("discarding undecodable trailing bytes", "buffered", len(buf))
	}
	return events
}

func (d *Decoder) parseFrame(frame Frame) []Event {
	if frame.Headers[":message-type"] == "exception" {
		detail := gjson.GetBytes(frame.Payload, "message").String()
		if detail == "" {
			detail = string(frame.Payload)
		}
		return []Event{{Kind: KindStreamError, Text: detail}}
	}
	return d.parsePayload(frame.Payload)
}

// parsePayload unwraps the payload JSON (including the base64 "bytes"
// envelope) and routes it by family. Non-JSON payloads yield no events.
func (d *Decoder) parsePayload(payload []byte) []Event {
	if !gjson.ValidBytes(payload) {
		slog.Warn("skipping non-JSON frame payload", "size", len(payload))
		return nil
	}
	chunk := payload
	if wrapped := gjson.GetBytes(payload, "bytes"); wrapped.Exists() {
		decoded, err := base64.StdEncoding.DecodeString(wrapped.String())
		if err != nil {
			slog.Warn("skipping frame with undecodable bytes field", "error", err)
			return nil
		}
		chunk = decoded
	}

	switch d.family {
	case provider.FamilyNova:
		return d.routeNova(chunk)
	case provider.FamilyTitan:
		return d.routeTitan(chunk)
	case provider.FamilyLlama:
		return d.routeLlama(chunk)
	case provider.FamilyMistral:
		return d.routeMistral(chunk)
	default:
		return d.routeClaude(chunk)
	}
}

func (d *Decoder) routeClaude(chunk []byte) []Event {
	switch gjson.GetBytes(chunk, "type").String() {
	case "content_block_start":
		block := gjson.GetBytes(chunk, "content_block")
		if block.Get("type").String() != "tool_use" {
			return nil
		}
		d.toolIndex++
		d.toolOpen = true
		return []Event{{
			Kind:     KindToolCallStart,
			Index:    d.toolIndex,
			ToolID:   orUUID(block.Get("id").String()),
			ToolName: block.Get("name").String(),
		}}
	case "content_block_delta":
		delta := gjson.GetBytes(chunk, "delta")
		switch delta.Get("type").String() {
		case "text_delta":
			return textDelta(delta.Get("text").String())
		case "input_json_delta":
			if !d.toolOpen {
				return nil
			}
			return []Event{{
				Kind:  KindToolCallArgDelta,
				Index: d.toolIndex,
				Text:  delta.Get("partial_json").String(),
			}}
		}
		return nil
	case "content_block_stop":
		if !d.toolOpen {
			return nil
		}
		d.toolOpen = false
		return []Event{{Kind: KindToolCallStop, Index: d.toolIndex}}
	case "message_stop":
		return []Event{{Kind: KindMessageStop}}
	}
	// Legacy completion-style chunks carry bare text.
	if completion := gjson.GetBytes(chunk, "completion"); completion.Exists() {
		return textDelta(completion.String())
	}
	return nil
}

func (d *Decoder) routeNova(chunk []byte) []Event {
	if toolUse := gjson.GetBytes(chunk, "contentBlockStart.start.toolUse"); toolUse.Exists() {
		d.toolIndex++
		d.toolOpen = true
		return []Event{{
			Kind:     KindToolCallStart,
			Index:    d.toolIndex,
			ToolID:   orUUID(toolUse.Get("toolUseId").String()),
			ToolName: toolUse.Get("name").String(),
		}}
	}
	if input := gjson.GetBytes(chunk, "contentBlockDelta.delta.toolUse.input"); input.Exists() && d.toolOpen {
		return []Event{{Kind: KindToolCallArgDelta, Index: d.toolIndex, Text: input.String()}}
	}
	if text := gjson.GetBytes(chunk, "contentBlockDelta.delta.text"); text.Exists() {
		return textDelta(text.String())
	}
	if gjson.GetBytes(chunk, "contentBlockStop").Exists() && d.toolOpen {
		d.toolOpen = false
		return []Event{{Kind: KindToolCallStop, Index: d.toolIndex}}
	}
	if gjson.GetBytes(chunk, "messageStop").Exists() {
		return []Event{{Kind: KindMessageStop}}
	}
	return nil
}

func (d *Decoder) routeTitan(chunk []byte) []Event {
	var events []Event
	if text := gjson.GetBytes(chunk, "outputText"); text.Exists() {
		events = append(events, textDelta(text.String())...)
	}
	if reason := gjson.GetBytes(chunk, "completionReason"); reason.Exists() && reason.String() != "" {
		events = append(events, Event{Kind: KindMessageStop})
	}
	return events
}

func (d *Decoder) routeLlama(chunk []byte) []Event {
	var events []Event
	if text := gjson.GetBytes(chunk, "generation"); text.Exists() {
		events = append(events, textDelta(text.String())...)
	}
	if reason := gjson.GetBytes(chunk, "stop_reason"); reason.Exists() && reason.String() != "" {
		events = append(events, Event{Kind: KindMessageStop})
	}
	return events
}

func (d *Decoder) routeMistral(chunk []byte) []Event {
	var events []Event
	if text := gjson.GetBytes(chunk, "outputs.0.text"); text.Exists() {
		events = append(events, textDelta(text.String())...)
	}
	if reason := gjson.GetBytes(chunk, "outputs.0.stop_reason"); reason.Exists() && reason.String() != "" {
		events = append(events, Event{Kind: KindMessageStop})
	}
	return events
}

func textDelta(text string) []Event {
	if text == "" {
		return nil
	}
	return []Event{{Kind: KindTextDelta, Text: text}}
}

func orUUID(id string) string {
	if id != "" {
		return id
	}
	return "tooluse_" + uuid.NewString()
}
