package media

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nbykov/go-bedrockgw/internal/types"
)

// Draw task statuses.
const (
	TaskRunning = "running"
	TaskSuccess = "success"
	TaskError   = "error"
)

// Task is one tracked draw request.
type Task struct {
	ID        string
	Params    types.MediaParams
	Status    string
	Location  string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Uploader stores generated image bytes and returns their location. The
// storage backend is a collaborator, not part of the core.
type Uploader func(data []byte) (string, error)

// Tracker keeps an in-memory list of draw tasks, newest first, and runs
// image generation for each submitted one.
type Tracker struct {
	manager *Manager
	upload  Uploader

	mu    sync.Mutex
	tasks []*Task
}

// NewTracker creates a Tracker delivering generated images to upload.
func NewTracker(manager *Manager, upload Uploader) *Tracker {
	return &Tracker{manager: manager, upload: upload}
}

// Do records a new running task, generates the image, uploads it, and
// updates the task to its terminal state. Callers wanting fire-and-forget
// behavior run it in their own goroutine.
func (t *Tracker) Do(ctx context.Context, p types.MediaParams) *Task {
	task := &Task{
		ID:        uuid.NewString(),
		Params:    p,
		Status:    TaskRunning,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	t.mu.Lock()
	t.tasks = append([]*Task{task}, t.tasks...)
	t.mu.Unlock()

	result, err := t.manager.GenerateImage(ctx, p)
	if err != nil {
		return t.update(task.ID, TaskError, "", err.Error())
	}
	raw, err := base64.StdEncoding.DecodeString(result.Base64)
	if err != nil {
		return t.update(task.ID, TaskError, "", "decode media payload: "+err.Error())
	}
	location, err := t.upload(raw)
	if err != nil {
		return t.update(task.ID, TaskError, "", err.Error())
	}
	return t.update(task.ID, TaskSuccess, location, "")
}

// Tasks returns a snapshot of all tracked tasks, newest first.
func (t *Tracker) Tasks() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, *task)
	}
	return out
}

// Get returns a task by id.
func (t *Tracker) Get(id string) (Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, task := range t.tasks {
		if task.ID == id {
			return *task, true
		}
	}
	return Task{}, false
}

func (t *Tracker) update(id, status, location, errMsg string) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, task := range t.tasks {
		if task.ID != id {
			continue
		}
		task.Status = status
		task.Location = location
		task.Error = errMsg
		task.UpdatedAt = time.Now()
		return task
	}
	return nil
}
