// Package chat runs one conversational turn against the backend: it builds
// and signs the request, decodes the streamed response, paces text toward
// the caller, and drives the tool-call loop until the model stops asking
// for tools.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nbykov/go-bedrockgw/internal/auth"
	"github.com/nbykov/go-bedrockgw/internal/config"
	"github.com/nbykov/go-bedrockgw/internal/eventstream"
	"github.com/nbykov/go-bedrockgw/internal/provider"
	"github.com/nbykov/go-bedrockgw/internal/types"
	"github.com/nbykov/go-bedrockgw/internal/upstream"
)

// resubmitDelay is the pause between finishing a tool round and resending
// the extended conversation.
const resubmitDelay = 60 * time.Millisecond

// Callbacks deliver turn progress to the caller. All fields are optional.
type Callbacks struct {
	OnUpdate     func(full, delta string)
	OnFinish     func(full string)
	OnError      func(err error)
	OnBeforeTool func(call types.ToolCall)
	OnAfterTool  func(call types.ToolCall, content string, isError bool)
}

// Orchestrator drives chat turns. It is safe for concurrent use: all
// per-turn state lives on the stack of Chat.
type Orchestrator struct {
	cfg    *config.Config
	client *upstream.Client
	funcs  map[string]Func
}

// New creates an Orchestrator backed by the given transport and local tool
// registry.
func New(cfg *config.Config, client *upstream.Client, funcs map[string]Func) *Orchestrator {
	return &Orchestrator{cfg: cfg, client: client, funcs: funcs}
}

// pendingCall accumulates one tool call during a streamed turn. The
// argument buffer is append-only until the call's stop event.
type pendingCall struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

// Chat runs one logical turn, including all tool round-trips. It returns
// after the final answer is delivered through the callbacks.
func (o *Orchestrator) Chat(ctx context.Context, messages []types.Message, mc types.ModelConfig, tools []openai.Tool, cb Callbacks) error {
	if mc.AnthropicVersion == "" {
		mc.AnthropicVersion = o.cfg.AnthropicVersion
	}
	body, err := provider.FormatChatRequest(messages, mc, tools)
	if err != nil {
		return o.fail(cb, err)
	}
	if !mc.Stream {
		return o.chatOnce(ctx, mc.Model, body, cb)
	}

	pacer := NewPacer(o.cfg.PacerInterval, cb.OnUpdate)
	defer pacer.Finish()

	rounds := 0
	for {
		pending, err := o.streamOnce(ctx, mc.Model, body, pacer)
		if err != nil {
			if isCancellation(err) {
				// Cancellation is silent: deliver whatever arrived.
				o.finish(cb, pacer.Finish())
				return nil
			}
			pacer.Finish()
			return o.fail(cb, err)
		}

		if len(pending) == 0 {
			final := pacer.Finish()
			if final == "" {
				return o.fail(cb, ErrEmptyResponse)
			}
			o.finish(cb, final)
			return nil
		}

		rounds++
		if o.cfg.MaxToolRounds > 0 && rounds > o.cfg.MaxToolRounds {
			slog.Warn("tool round limit reached, finishing turn", "rounds", rounds-1)
			o.finish(cb, pacer.Finish())
			return nil
		}

		calls := finalizeCalls(pending)
		results := o.runTools(ctx, calls, cb)
		body, err = provider.AppendToolRound(body, calls, results)
		if err != nil {
			pacer.Finish()
			return o.fail(cb, err)
		}

		select {
		case <-time.After(resubmitDelay):
		case <-ctx.Done():
			o.finish(cb, pacer.Finish())
			return nil
		}
	}
}

// streamOnce performs one signed streaming request and consumes it fully.
// It returns the tool calls the model requested, in arrival order. The
// response body is always closed before returning, so the caller may open
// the next stream immediately.
func (o *Orchestrator) streamOnce(ctx context.Context, model string, body provider.RequestBody, pacer *Pacer) ([]*pendingCall, error) {
	reqCtx := ctx
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	resp, err := o.client.InvokeStream(reqCtx, model, body.JSON)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/plain") {
		raw, _ := io.ReadAll(resp.Body)
		pacer.Push(string(raw))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(contentType, auth.ContentTypeEventStream) {
		pacer.Push(protocolFallbackText(resp))
		return nil, nil
	}

	dec := eventstream.NewDecoder(body.Family)
	pending := map[int]*pendingCall{}
	buf := make([]byte, 32*1024)
	stopped := false
	for !stopped {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				if o.handleEvent(ev, pacer, pending) {
					stopped = true
				}
			}
		}
		if rerr != nil {
			if rerr != io.EOF && !stopped {
				if cerr := reqCtx.Err(); cerr != nil {
					return nil, cerr
				}
				return nil, fmt.Errorf("read stream: %w", rerr)
			}
			break
		}
	}
	for _, ev := range dec.Flush() {
		o.handleEvent(ev, pacer, pending)
	}
	return orderedPending(pending), nil
}

// chatOnce handles the non-streaming path: the whole body arrives at once
// and bypasses the decoder.
func (o *Orchestrator) chatOnce(ctx context.Context, model string, body provider.RequestBody, cb Callbacks) error {
	reqCtx := ctx
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	resp, err := o.client.Invoke(reqCtx, model, body.JSON, false)
	if err != nil {
		if isCancellation(err) {
			o.finish(cb, "")
			return nil
		}
		return o.fail(cb, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		o.finish(cb, protocolFallbackText(resp))
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return o.fail(cb, fmt.Errorf("read response: %w", err))
	}
	o.finish(cb, provider.ExtractText(body.Family, raw))
	return nil
}

// handleEvent routes one decoded event; it reports whether the turn's
// terminal event arrived.
func (o *Orchestrator) handleEvent(ev eventstream.Event, pacer *Pacer, pending map[int]*pendingCall) bool {
	switch ev.Kind {
	case eventstream.KindTextDelta:
		pacer.Push(ev.Text)
	case eventstream.KindToolCallStart:
		pending[ev.Index] = &pendingCall{index: ev.Index, id: ev.ToolID, name: ev.ToolName}
	case eventstream.KindToolCallArgDelta:
		if pc, ok := pending[ev.Index]; ok {
			pc.args.WriteString(ev.Text)
		}
	case eventstream.KindToolCallStop:
		// Finalization happens at end of turn; nothing to do per call.
	case eventstream.KindMessageStop:
		return true
	case eventstream.KindStreamError:
		slog.Warn("stream reported error", "detail", ev.Text)
	}
	return false
}

// finalizeCalls normalizes accumulated argument buffers into tool calls:
// each buffer must parse as JSON or it degrades to the empty object.
func finalizeCalls(pending []*pendingCall) []types.ToolCall {
	calls := make([]types.ToolCall, 0, len(pending))
	for _, pc := range pending {
		args := strings.TrimSpace(pc.args.String())
		if args == "" || !json.Valid([]byte(args)) {
			args = "{}"
		}
		calls = append(calls, types.ToolCall{
			ID:   pc.id,
			Type: "function",
			Function: types.FunctionCall{
				Name:      pc.name,
				Arguments: args,
			},
		})
	}
	return calls
}

func orderedPending(pending map[int]*pendingCall) []*pendingCall {
	out := make([]*pendingCall, 0, len(pending))
	for _, pc := range pending {
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

// protocolFallbackText converts a non-stream failure response into the
// human-readable text delivered as the final answer.
func protocolFallbackText(resp *http.Response) string {
	raw, _ := io.ReadAll(resp.Body)
	text := strings.TrimSpace(string(raw))
	if json.Valid(raw) {
		var pretty bytes.Buffer
		if json.Indent(&pretty, raw, "", "  ") == nil {
			text = pretty.String()
		}
	}
	var parts []string
	if resp.StatusCode == http.StatusUnauthorized {
		parts = append(parts, unauthorizedNotice)
	}
	if text != "" {
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

func (o *Orchestrator) finish(cb Callbacks, full string) {
	if cb.OnFinish != nil {
		cb.OnFinish(full)
	}
}

func (o *Orchestrator) fail(cb Callbacks, err error) error {
	if cb.OnError != nil {
		cb.OnError(err)
	}
	return err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
