package media

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/nbykov/go-bedrockgw/internal/auth"
	"github.com/nbykov/go-bedrockgw/internal/config"
	"github.com/nbykov/go-bedrockgw/internal/types"
	"github.com/nbykov/go-bedrockgw/internal/upstream"
)

func newTestManager(t *testing.T, handler http.HandlerFunc) *Manager {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Mode:      config.ModeDirect,
		Region:    "us-west-2",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "wJalrXUtnFEMI",
		Endpoint:  srv.URL,
	}
	return NewManager(upstream.NewClient(cfg, auth.NewSigner(cfg)))
}

func TestGenerateImageNovaCanvas(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/invoke") {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if got := gjson.GetBytes(body, "textToImageParams.text").String(); got != "a cat" {
			t.Errorf("prompt = %q", got)
		}
		io.WriteString(w, `{"images":["aW1hZ2U"]}`)
	})

	result, err := m.GenerateImage(context.Background(), types.MediaParams{
		Model:  "amazon.nova-canvas-v1:0",
		Prompt: "a cat",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Base64 != "aW1hZ2U" {
		t.Errorf("base64 = %q", result.Base64)
	}
}

func TestGenerateImageStabilityField(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"artifacts":[{"base64":"c3RhYmxl"}]}`)
	})

	result, err := m.GenerateImage(context.Background(), types.MediaParams{
		Model:  "stability.sd3-large-v1:0",
		Prompt: "a cat",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Base64 != "c3RhYmxl" {
		t.Errorf("base64 = %q", result.Base64)
	}
}

func TestGenerateImageNoData(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"images":[]}`)
	})
	_, err := m.GenerateImage(context.Background(), types.MediaParams{
		Model:  "amazon.nova-canvas-v1:0",
		Prompt: "a cat",
	})
	if !errors.Is(err, ErrNoMediaData) {
		t.Errorf("err = %v, want ErrNoMediaData", err)
	}
}

func TestGenerateImageRejectsVideoModel(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := m.GenerateImage(context.Background(), types.MediaParams{
		Model:  "amazon.nova-reel-v1:0",
		Prompt: "a river",
	})
	if err == nil {
		t.Fatal("expected error for async model")
	}
}

func TestStartVideoJob(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/start-async-invoke") {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{"invocationArn":"arn:aws:bedrock:us-west-2:123:async-invoke/abc"}`)
	})

	arn, err := m.StartVideoJob(context.Background(), types.MediaParams{
		Model:  "amazon.nova-reel-v1:0",
		Prompt: "a river",
	})
	if err != nil {
		t.Fatal(err)
	}
	if arn != "arn:aws:bedrock:us-west-2:123:async-invoke/abc" {
		t.Errorf("arn = %q", arn)
	}
}

func TestCheckVideoStatusCompleted(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.Contains(r.URL.Path, "/async-invoke/") {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{
			"status": "Completed",
			"outputMetadata": {
				"manifestS3Path": "s3://bucket/job/manifest.json",
				"videoS3Path": "s3://bucket/job/output.mp4"
			},
			"requestTime": "2024-08-15T10:00:00Z",
			"completionTime": "2024-08-15T10:05:00Z"
		}`)
	})

	status, err := m.CheckVideoStatus(context.Background(), "arn:aws:bedrock:us-west-2:123:async-invoke/abc")
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != types.StatusCompleted {
		t.Errorf("status = %q", status.Status)
	}
	if status.S3Output.VideoPath != "s3://bucket/job/output.mp4" {
		t.Errorf("video path = %q", status.S3Output.VideoPath)
	}
	if status.S3Output.ManifestPath != "s3://bucket/job/manifest.json" {
		t.Errorf("manifest path = %q", status.S3Output.ManifestPath)
	}
	if status.InvocationArn == "" || status.CompletionTime == "" {
		t.Errorf("status incomplete: %+v", status)
	}
}

func TestCheckVideoStatusFailed(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"Failed","failureReason":"content policy"}`)
	})
	status, err := m.CheckVideoStatus(context.Background(), "arn:abc")
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != types.StatusFailed || status.Error != "content policy" {
		t.Errorf("status = %+v", status)
	}
}

func TestTrackerLifecycle(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"images":["`+payload+`"]}`)
	})

	var uploaded []byte
	tracker := NewTracker(m, func(data []byte) (string, error) {
		uploaded = data
		return "https://cdn.example.com/img.png", nil
	})

	task := tracker.Do(context.Background(), types.MediaParams{
		Model:  "amazon.nova-canvas-v1:0",
		Prompt: "a cat",
	})
	if task.Status != TaskSuccess {
		t.Fatalf("task = %+v", task)
	}
	if task.Location != "https://cdn.example.com/img.png" {
		t.Errorf("location = %q", task.Location)
	}
	if string(uploaded) != "png-bytes" {
		t.Errorf("uploaded = %q", uploaded)
	}

	got, ok := tracker.Get(task.ID)
	if !ok || got.Status != TaskSuccess {
		t.Errorf("Get = %+v, %v", got, ok)
	}
}

func TestTrackerNewestFirst(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"images":["aW1n"]}`)
	})
	tracker := NewTracker(m, func(data []byte) (string, error) { return "loc", nil })

	first := tracker.Do(context.Background(), types.MediaParams{Model: "amazon.nova-canvas-v1:0", Prompt: "one"})
	second := tracker.Do(context.Background(), types.MediaParams{Model: "amazon.nova-canvas-v1:0", Prompt: "two"})

	tasks := tracker.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d", len(tasks))
	}
	if tasks[0].ID != second.ID || tasks[1].ID != first.ID {
		t.Error("tasks not newest first")
	}
}

func TestTrackerUploadFailure(t *testing.T) {
	m := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"images":["aW1n"]}`)
	})
	tracker := NewTracker(m, func(data []byte) (string, error) {
		return "", errors.New("bucket unreachable")
	})

	task := tracker.Do(context.Background(), types.MediaParams{Model: "amazon.nova-canvas-v1:0", Prompt: "a cat"})
	if task.Status != TaskError {
		t.Fatalf("task = %+v", task)
	}
	if !strings.Contains(task.Error, "bucket unreachable") {
		t.Errorf("error = %q", task.Error)
	}
}
