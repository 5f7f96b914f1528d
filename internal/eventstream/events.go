// Package eventstream decodes the self-describing binary frame protocol
// carried by streaming response bodies and normalizes frame payloads into
// semantic events.
package eventstream

// Kind discriminates normalized stream events.
type Kind int

const (
	KindTextDelta Kind = iota
	KindToolCallStart
	KindToolCallArgDelta
	KindToolCallStop
	KindMessageStop
	KindStreamError
)

func (k Kind) String() string {
	switch k {
	case KindTextDelta:
		return "text_delta"
	case KindToolCallStart:
		return "tool_call_start"
	case KindToolCallArgDelta:
		return "tool_call_arg_delta"
	case KindToolCallStop:
		return "tool_call_stop"
	case KindMessageStop:
		return "message_stop"
	case KindStreamError:
		return "stream_error"
	default:
		return "unknown"
	}
}

// Event is one normalized stream event. Text carries the incremental text
// for KindTextDelta, the argument fragment for KindToolCallArgDelta, and
// the detail for KindStreamError. Index, ToolID, and ToolName are set for
// tool-call events only.
type Event struct {
	Kind     Kind
	Text     string
	Index    int
	ToolID   string
	ToolName string
}
