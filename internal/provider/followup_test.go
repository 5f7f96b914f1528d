package provider

import (
	"testing"

	"github.com/tidwall/gjson"

	"github.com/nbykov/go-bedrockgw/internal/types"
)

func toolRoundFixture() ([]types.ToolCall, []types.ToolResult) {
	calls := []types.ToolCall{{
		ID:   "tooluse_1",
		Type: "function",
		Function: types.FunctionCall{
			Name:      "get_weather",
			Arguments: `{"city":"Oslo"}`,
		},
	}}
	results := []types.ToolResult{{
		ToolCallID: "tooluse_1",
		Name:       "get_weather",
		Content:    "rainy",
	}}
	return calls, results
}

func TestAppendToolRoundClaude(t *testing.T) {
	messages := []types.Message{{Role: types.RoleUser, Content: "weather in Oslo?"}}
	body, err := FormatChatRequest(messages, types.ModelConfig{Model: "anthropic.claude-3-5-sonnet-20240620-v1:0"}, sampleTools())
	if err != nil {
		t.Fatal(err)
	}
	before := gjson.GetBytes(body.JSON, "messages").Array()

	calls, results := toolRoundFixture()
	next, err := AppendToolRound(body, calls, results)
	if err != nil {
		t.Fatal(err)
	}

	after := gjson.GetBytes(next.JSON, "messages").Array()
	if len(after) != len(before)+2 {
		t.Fatalf("got %d messages, want %d", len(after), len(before)+2)
	}
	// Existing turns are untouched.
	for i := range before {
		if after[i].Raw != before[i].Raw {
			t.Errorf("message %d changed: %s -> %s", i, before[i].Raw, after[i].Raw)
		}
	}

	use := after[len(after)-2]
	if use.Get("role").String() != "assistant" {
		t.Errorf("tool-use role = %q", use.Get("role").String())
	}
	block := use.Get("content.0")
	if block.Get("type").String() != "tool_use" || block.Get("id").String() != "tooluse_1" {
		t.Errorf("tool-use block = %s", block.Raw)
	}
	if block.Get("input.city").String() != "Oslo" {
		t.Errorf("tool input = %s", block.Get("input").Raw)
	}

	result := after[len(after)-1]
	if result.Get("role").String() != "user" {
		t.Errorf("result role = %q", result.Get("role").String())
	}
	rb := result.Get("content.0")
	if rb.Get("type").String() != "tool_result" || rb.Get("tool_use_id").String() != "tooluse_1" || rb.Get("content").String() != "rainy" {
		t.Errorf("result block = %s", rb.Raw)
	}
}

func TestAppendToolRoundMistral(t *testing.T) {
	messages := []types.Message{{Role: types.RoleUser, Content: "weather?"}}
	body, err := FormatChatRequest(messages, types.ModelConfig{Model: "mistral.mistral-large-2402-v1:0"}, sampleTools())
	if err != nil {
		t.Fatal(err)
	}
	calls, results := toolRoundFixture()
	next, err := AppendToolRound(body, calls, results)
	if err != nil {
		t.Fatal(err)
	}

	msgs := gjson.GetBytes(next.JSON, "messages").Array()
	use := msgs[len(msgs)-2]
	if use.Get("tool_calls.0.function.name").String() != "get_weather" {
		t.Errorf("tool call turn = %s", use.Raw)
	}
	result := msgs[len(msgs)-1]
	if result.Get("role").String() != "tool" || result.Get("tool_call_id").String() != "tooluse_1" {
		t.Errorf("result turn = %s", result.Raw)
	}
}

func TestAppendToolRoundNova(t *testing.T) {
	messages := []types.Message{{Role: types.RoleUser, Content: "weather?"}}
	body, err := FormatChatRequest(messages, types.ModelConfig{Model: "amazon.nova-pro-v1:0"}, sampleTools())
	if err != nil {
		t.Fatal(err)
	}
	calls, results := toolRoundFixture()
	next, err := AppendToolRound(body, calls, results)
	if err != nil {
		t.Fatal(err)
	}

	msgs := gjson.GetBytes(next.JSON, "messages").Array()
	use := msgs[len(msgs)-2].Get("content.0.toolUse")
	if use.Get("toolUseId").String() != "tooluse_1" || use.Get("input.city").String() != "Oslo" {
		t.Errorf("toolUse block = %s", use.Raw)
	}
	result := msgs[len(msgs)-1].Get("content.0.toolResult")
	if result.Get("content.0.json.content").String() != "rainy" {
		t.Errorf("toolResult block = %s", result.Raw)
	}
}

func TestAppendToolRoundUnsupportedFamily(t *testing.T) {
	messages := []types.Message{{Role: types.RoleUser, Content: "hi"}}
	body, err := FormatChatRequest(messages, types.ModelConfig{Model: "amazon.titan-text-express-v1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	calls, results := toolRoundFixture()
	next, err := AppendToolRound(body, calls, results)
	if err != nil {
		t.Fatal(err)
	}
	if string(next.JSON) != string(body.JSON) {
		t.Error("titan body changed by tool round")
	}
}

func TestParseToolArgs(t *testing.T) {
	if got := parseToolArgs(`{"a":1}`); got["a"] != float64(1) {
		t.Errorf("parseToolArgs valid = %v", got)
	}
	if got := parseToolArgs("not json"); len(got) != 0 {
		t.Errorf("parseToolArgs invalid = %v", got)
	}
	if got := parseToolArgs(""); len(got) != 0 {
		t.Errorf("parseToolArgs empty = %v", got)
	}
}
