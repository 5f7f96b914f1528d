// Package media submits synchronous image generation requests and
// asynchronous video jobs, and polls job status by invocation handle.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nbykov/go-bedrockgw/internal/provider"
	"github.com/nbykov/go-bedrockgw/internal/types"
	"github.com/nbykov/go-bedrockgw/internal/upstream"
)

// videoStatusModelID identifies the async video family on status checks.
const videoStatusModelID = "amazon.nova-reel-v1:0"

var (
	// ErrNoMediaData is returned when a success response carries no
	// base64 payload in the family's field.
	ErrNoMediaData = errors.New("no media data in response")
	// ErrNoInvocationArn is returned when an async submission response
	// lacks the invocation handle.
	ErrNoInvocationArn = errors.New("no invocation handle in response")
)

// Manager is the media job manager.
type Manager struct {
	client *upstream.Client
}

// NewManager creates a Manager on the given transport.
func NewManager(client *upstream.Client) *Manager {
	return &Manager{client: client}
}

// ImageResult is one generated image, base64-encoded.
type ImageResult struct {
	Base64 string
}

// GenerateImage formats, signs, and sends a synchronous image request and
// extracts the single base64 payload from the response.
func (m *Manager) GenerateImage(ctx context.Context, p types.MediaParams) (ImageResult, error) {
	if provider.IsVideoModel(p.Model) {
		return ImageResult{}, fmt.Errorf("model %s is asynchronous, use StartVideoJob", p.Model)
	}
	body, err := provider.FormatImageRequest(p)
	if err != nil {
		return ImageResult{}, err
	}

	raw, err := m.post(ctx, p.Model, body, false)
	if err != nil {
		return ImageResult{}, err
	}

	data := gjson.GetBytes(raw, mediaDataPath(p.Model)).String()
	if data == "" {
		return ImageResult{}, ErrNoMediaData
	}
	return ImageResult{Base64: data}, nil
}

// StartVideoJob submits an asynchronous video generation job and returns
// its invocation handle.
func (m *Manager) StartVideoJob(ctx context.Context, p types.MediaParams) (string, error) {
	body, err := provider.FormatImageRequest(p)
	if err != nil {
		return "", err
	}
	raw, err := m.post(ctx, p.Model, body, true)
	if err != nil {
		return "", err
	}
	arn := gjson.GetBytes(raw, "invocationArn").String()
	if arn == "" {
		return "", ErrNoInvocationArn
	}
	return arn, nil
}

// CheckVideoStatus polls an asynchronous job and normalizes its state.
func (m *Manager) CheckVideoStatus(ctx context.Context, invocationArn string) (types.VideoStatus, error) {
	resp, err := m.client.AsyncStatus(ctx, videoStatusModelID, invocationArn)
	if err != nil {
		return types.VideoStatus{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.VideoStatus{}, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.VideoStatus{}, fmt.Errorf("check video status: %s", strings.TrimSpace(string(raw)))
	}

	return types.VideoStatus{
		InvocationArn:  invocationArn,
		Status:         gjson.GetBytes(raw, "status").String(),
		S3Output:       types.S3Output{ManifestPath: gjson.GetBytes(raw, "outputMetadata.manifestS3Path").String(), VideoPath: gjson.GetBytes(raw, "outputMetadata.videoS3Path").String()},
		Error:          gjson.GetBytes(raw, "failureReason").String(),
		CompletionTime: gjson.GetBytes(raw, "completionTime").String(),
		RequestTime:    gjson.GetBytes(raw, "requestTime").String(),
	}, nil
}

func (m *Manager) post(ctx context.Context, model string, body []byte, async bool) ([]byte, error) {
	resp, err := m.client.Invoke(ctx, model, body, async)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generate media: %s", strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// mediaDataPath returns the provider-specific field holding the base64
// payload.
func mediaDataPath(model string) string {
	switch {
	case strings.Contains(model, "stability"):
		return "artifacts.0.base64"
	default:
		return "images.0"
	}
}
