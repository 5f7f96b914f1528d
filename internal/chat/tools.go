package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nbykov/go-bedrockgw/internal/types"
)

// Outcome is what a registry function returns: an HTTP-like status plus
// either a payload or a status text.
type Outcome struct {
	Status     int
	Data       any
	StatusText string
}

// Func is a local tool implementation, registered by name.
type Func func(ctx context.Context, args map[string]any) (Outcome, error)

// runTools executes every pending call concurrently and waits for all of
// them. Failures never abort the batch: each failed call becomes an error
// result the model sees as a tool outcome.
func (o *Orchestrator) runTools(ctx context.Context, calls []types.ToolCall, cb Callbacks) []types.ToolResult {
	results := make([]types.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call types.ToolCall) {
			defer wg.Done()
			if cb.OnBeforeTool != nil {
				cb.OnBeforeTool(call)
			}
			content, isErr := o.invokeTool(ctx, call)
			results[i] = types.ToolResult{
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    content,
				IsError:    isErr,
			}
			if cb.OnAfterTool != nil {
				cb.OnAfterTool(call, content, isErr)
			}
		}(i, call)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) invokeTool(ctx context.Context, call types.ToolCall) (content string, isError bool) {
	name := call.Function.Name
	fn, ok := o.funcs[name]
	if !ok {
		return fmt.Sprintf("function %q not found", name), true
	}

	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			args = map[string]any{}
		}
	}

	out, err := fn(ctx, args)
	if err != nil {
		return err.Error(), true
	}
	content = stringifyOutcome(out)
	if out.Status >= 300 {
		return content, true
	}
	return content, false
}

func stringifyOutcome(out Outcome) string {
	value := out.Data
	if value == nil {
		value = out.StatusText
	}
	if s, ok := value.(string); ok {
		return s
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(encoded)
}
