package types

// FunctionCall is the name plus serialized JSON arguments of one requested
// tool invocation.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a finalized model-requested tool invocation. Arguments are
// normalized at finalization: either a valid JSON object string or "{}".
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// ToolResult is the outcome of executing one tool call, ready to be fed back
// to the model as a tool-result turn.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}
