package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nbykov/go-bedrockgw/internal/auth"
	"github.com/nbykov/go-bedrockgw/internal/chat"
	"github.com/nbykov/go-bedrockgw/internal/config"
	"github.com/nbykov/go-bedrockgw/internal/media"
	"github.com/nbykov/go-bedrockgw/internal/provider"
	"github.com/nbykov/go-bedrockgw/internal/relay"
	"github.com/nbykov/go-bedrockgw/internal/types"
	"github.com/nbykov/go-bedrockgw/internal/upstream"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: go-bedrockgw <command> [flags]")
		fmt.Fprintln(os.Stderr, "Commands: chat, image, video-status, serve, info")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		os.Exit(cmdChat())
	case "image":
		os.Exit(cmdImage())
	case "video-status":
		os.Exit(cmdVideoStatus())
	case "serve":
		os.Exit(cmdServe())
	case "info":
		os.Exit(cmdInfo())
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Commands: chat, image, video-status, serve, info")
		os.Exit(1)
	}
}

func cmdChat() int {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	cfg := config.DefaultFromEnv()

	model := fs.String("model", "anthropic.claude-3-5-sonnet-20240620-v1:0", "Model identifier")
	system := fs.String("system", "", "System prompt")
	noStream := fs.Bool("no-stream", false, "Wait for the full answer instead of streaming")
	enableTools := fs.Bool("tools", false, "Expose the built-in demo tools to the model")
	temperature := fs.Float64("temperature", 0, "Sampling temperature (0 keeps the provider default)")
	maxTokens := fs.Int("max-tokens", 0, "Maximum output tokens (0 keeps the provider default)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	fs.Parse(os.Args[2:])

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			slog.Error("failed to read prompt from stdin", "error", err)
			return 1
		}
		prompt = strings.TrimSpace(string(raw))
	}
	if prompt == "" {
		fmt.Fprintln(os.Stderr, "Usage: go-bedrockgw chat [flags] <prompt>  (or pipe the prompt on stdin)")
		return 1
	}

	var messages []types.Message
	if *system != "" {
		messages = append(messages, types.Message{Role: types.RoleSystem, Content: *system})
	}
	messages = append(messages, types.Message{Role: types.RoleUser, Content: prompt})

	mc := types.ModelConfig{
		Model:       *model,
		Temperature: *temperature,
		MaxTokens:   *maxTokens,
		Stream:      !*noStream,
	}

	var tools []openai.Tool
	var funcs map[string]chat.Func
	if *enableTools {
		tools, funcs = demoTools()
	}

	client := upstream.NewClient(cfg, auth.NewSigner(cfg))
	orch := chat.New(cfg, client, funcs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan int, 1)
	cb := chat.Callbacks{
		OnUpdate: func(full, delta string) {
			fmt.Print(delta)
		},
		OnFinish: func(full string) {
			if *noStream {
				fmt.Print(full)
			}
			fmt.Println()
			done <- 0
		},
		OnError: func(err error) {
			fmt.Fprintln(os.Stderr)
			slog.Error("chat failed", "error", err)
			done <- 1
		},
		OnBeforeTool: func(call types.ToolCall) {
			fmt.Fprintf(os.Stderr, "\n[tool] %s(%s)\n", call.Function.Name, call.Function.Arguments)
		},
	}
	if err := orch.Chat(ctx, messages, mc, tools, cb); err != nil {
		return 1
	}
	return <-done
}

// demoTools is the built-in registry for trying the tool loop end to end.
func demoTools() ([]openai.Tool, map[string]chat.Func) {
	tools := []openai.Tool{{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "current_time",
			Description: "Returns the current local time in RFC 3339 format",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}}
	funcs := map[string]chat.Func{
		"current_time": func(ctx context.Context, args map[string]any) (chat.Outcome, error) {
			return chat.Outcome{Status: 200, Data: time.Now().Format(time.RFC3339)}, nil
		},
	}
	return tools, funcs
}

func cmdImage() int {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	cfg := config.DefaultFromEnv()

	model := fs.String("model", "amazon.nova-canvas-v1:0", "Media model identifier")
	prompt := fs.String("prompt", "", "Image or video prompt (required)")
	size := fs.String("size", "", "Image size as WIDTHxHEIGHT")
	seed := fs.Int("seed", 0, "Generation seed (0 picks a random one)")
	cfgScale := fs.Float64("cfg-scale", 0, "Prompt adherence scale")
	out := fs.String("out", "", "Output file path (default derived from the task id)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	fs.Parse(os.Args[2:])

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "image requires -prompt")
		return 1
	}

	params := types.MediaParams{
		Model:    *model,
		Prompt:   *prompt,
		Size:     *size,
		Seed:     *seed,
		CfgScale: *cfgScale,
	}

	client := upstream.NewClient(cfg, auth.NewSigner(cfg))
	manager := media.NewManager(client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if provider.IsVideoModel(*model) {
		arn, err := manager.StartVideoJob(ctx, params)
		if err != nil {
			slog.Error("video job submission failed", "error", err)
			return 1
		}
		fmt.Println(arn)
		fmt.Fprintln(os.Stderr, "Check progress with: go-bedrockgw video-status -arn <handle>")
		return 0
	}

	tracker := media.NewTracker(manager, func(data []byte) (string, error) {
		path := *out
		if path == "" {
			path = fmt.Sprintf("bedrockgw-%d.png", time.Now().Unix())
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return path, nil
		}
		return abs, nil
	})

	task := tracker.Do(ctx, params)
	if task.Status != media.TaskSuccess {
		slog.Error("image generation failed", "task", task.ID, "error", task.Error)
		return 1
	}
	fmt.Println(task.Location)
	return 0
}

func cmdVideoStatus() int {
	fs := flag.NewFlagSet("video-status", flag.ExitOnError)
	cfg := config.DefaultFromEnv()

	arn := fs.String("arn", "", "Invocation handle returned by the image command (required)")
	jsonOut := fs.Bool("json", false, "Output the normalized status as JSON")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	fs.Parse(os.Args[2:])

	if *arn == "" {
		fmt.Fprintln(os.Stderr, "video-status requires -arn")
		return 1
	}

	client := upstream.NewClient(cfg, auth.NewSigner(cfg))
	manager := media.NewManager(client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status, err := manager.CheckVideoStatus(ctx, *arn)
	if err != nil {
		slog.Error("status check failed", "error", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("Status: %s\n", status.Status)
	switch status.Status {
	case types.StatusCompleted:
		fmt.Printf("Video: %s\n", status.S3Output.VideoPath)
		fmt.Printf("Manifest: %s\n", status.S3Output.ManifestPath)
		fmt.Printf("Completed: %s\n", status.CompletionTime)
	case types.StatusFailed:
		fmt.Printf("Reason: %s\n", status.Error)
	default:
		fmt.Printf("Submitted: %s\n", status.RequestTime)
	}
	return 0
}

func cmdServe() int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg := config.DefaultFromEnv()

	host := fs.String("host", "127.0.0.1", "Bind host")
	port := fs.Int("port", 8317, "Listen port")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	fs.Parse(os.Args[2:])

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", *host, *port),
		Handler: relay.NewServer(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("relay starting", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		return 1
	}
	return 0
}

func cmdInfo() int {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output the effective configuration as JSON")
	fs.Parse(os.Args[2:])

	cfg := config.DefaultFromEnv()

	if *jsonOut {
		data, _ := json.MarshalIndent(map[string]any{
			"mode":              cfg.Mode,
			"region":            cfg.Region,
			"endpoint":          cfg.EndpointURL(),
			"relay_url":         cfg.RelayURL,
			"has_credentials":   cfg.AccessKey != "" && cfg.SecretKey != "",
			"has_session":       cfg.SessionToken != "",
			"request_timeout":   cfg.RequestTimeout.String(),
			"max_tool_rounds":   cfg.MaxToolRounds,
			"anthropic_version": cfg.AnthropicVersion,
		}, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Println("\U0001F310 Gateway")
	fmt.Printf("  • Mode: %s\n", cfg.Mode)
	fmt.Printf("  • Region: %s\n", cfg.Region)
	fmt.Printf("  • Endpoint: %s\n", cfg.EndpointURL())
	if cfg.Mode == config.ModeRelayed {
		relayURL := cfg.RelayURL
		if relayURL == "" {
			relayURL = "<not set>"
		}
		fmt.Printf("  • Relay: %s\n", relayURL)
	}
	fmt.Println()
	fmt.Println("\U0001F511 Credentials")
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		fmt.Printf("  • Access key: %s\n", maskKey(cfg.AccessKey))
		if cfg.SessionToken != "" {
			fmt.Println("  • Session token present")
		}
	} else {
		fmt.Println("  • Not configured")
		fmt.Println("  • Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
	}
	return 0
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
