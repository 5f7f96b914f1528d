package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tidwall/sjson"

	"github.com/nbykov/go-bedrockgw/internal/types"
)

// AppendToolRound splices the assistant tool-use turn and the tool-result
// turn(s) into the serialized request body, in the envelope the owning
// family expects. The prior message sequence is left untouched. Families
// without tool support return the body unchanged.
func AppendToolRound(body RequestBody, calls []types.ToolCall, results []types.ToolResult) (RequestBody, error) {
	if len(calls) == 0 {
		return body, nil
	}

	var (
		turns []any
		err   error
	)
	switch body.Family {
	case FamilyClaude:
		turns = claudeToolTurns(calls, results)
	case FamilyMistral:
		turns = mistralToolTurns(calls, results)
	case FamilyNova:
		turns = novaToolTurns(calls, results)
	default:
		slog.Warn("tool results unsupported for model family", "family", body.Family.String())
		return body, nil
	}

	raw := body.JSON
	for _, turn := range turns {
		encoded, merr := json.Marshal(turn)
		if merr != nil {
			return body, fmt.Errorf("marshal tool turn: %w", merr)
		}
		raw, err = sjson.SetRawBytes(raw, "messages.-1", encoded)
		if err != nil {
			return body, fmt.Errorf("append tool turn: %w", err)
		}
	}
	return RequestBody{Family: body.Family, JSON: raw}, nil
}

func claudeToolTurns(calls []types.ToolCall, results []types.ToolResult) []any {
	uses := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		uses = append(uses, map[string]any{
			"type":  "tool_use",
			"id":    call.ID,
			"name":  call.Function.Name,
			"input": parseToolArgs(call.Function.Arguments),
		})
	}
	turns := []any{map[string]any{
		"role":    types.RoleAssistant,
		"content": uses,
	}}
	for _, r := range results {
		turns = append(turns, map[string]any{
			"role": types.RoleUser,
			"content": []map[string]any{{
				"type":        "tool_result",
				"tool_use_id": r.ToolCallID,
				"content":     r.Content,
			}},
		})
	}
	return turns
}

func mistralToolTurns(calls []types.ToolCall, results []types.ToolResult) []any {
	tcs := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		args := call.Function.Arguments
		if args == "" {
			args = "{}"
		}
		tcs = append(tcs, map[string]any{
			"id": call.ID,
			"function": map[string]any{
				"name":      call.Function.Name,
				"arguments": args,
			},
		})
	}
	turns := []any{map[string]any{
		"role":       types.RoleAssistant,
		"content":    "",
		"tool_calls": tcs,
	}}
	for _, r := range results {
		turns = append(turns, map[string]any{
			"role":         types.RoleTool,
			"tool_call_id": r.ToolCallID,
			"content":      r.Content,
		})
	}
	return turns
}

// novaToolTurns carries only the first call and result; the Nova envelope
// pairs a single toolUse block with a single toolResult block per round.
func novaToolTurns(calls []types.ToolCall, results []types.ToolResult) []any {
	call := calls[0]
	turns := []any{map[string]any{
		"role": types.RoleAssistant,
		"content": []map[string]any{{
			"toolUse": map[string]any{
				"toolUseId": call.ID,
				"name":      call.Function.Name,
				"input":     parseToolArgs(call.Function.Arguments),
			},
		}},
	}}
	if len(results) > 0 {
		turns = append(turns, map[string]any{
			"role": types.RoleUser,
			"content": []map[string]any{{
				"toolResult": map[string]any{
					"toolUseId": results[0].ToolCallID,
					"content": []map[string]any{{
						"json": map[string]any{"content": results[0].Content},
					}},
				},
			}},
		})
	}
	return turns
}

// parseToolArgs decodes accumulated argument JSON, falling back to an empty
// object when the buffer is missing or malformed.
func parseToolArgs(args string) map[string]any {
	parsed := map[string]any{}
	if args == "" {
		return parsed
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return map[string]any{}
	}
	return parsed
}
