// Package reconcile repairs drift between the provider's bot registry and the
// local mirror. Mirror writes are provider-first with no transaction spanning
// the two systems; when the local write fails a Task is queued here and a
// worker retries it until the mirror converges.
package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Op names the repair action a task carries.
type Op string

const (
	// OpSyncMirror re-reads the bot from the provider and upserts the local
	// mirror to match.
	OpSyncMirror Op = "sync-mirror"
	// OpDeleteMirror removes the local mirror row for a bot the provider no
	// longer has.
	OpDeleteMirror Op = "delete-mirror"
)

// Task is one queued mirror repair.
type Task struct {
	ID            string    `json:"id"`
	Op            Op        `json:"op"`
	ProviderBotID string    `json:"provider_bot_id"`
	Reason        string    `json:"reason"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// NewTask builds a task with a fresh id and timestamp.
func NewTask(op Op, providerBotID, reason string) Task {
	return Task{
		ID:            uuid.NewString(),
		Op:            op,
		ProviderBotID: providerBotID,
		Reason:        reason,
		EnqueuedAt:    time.Now().UTC(),
	}
}

// Validate checks the task is actionable.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ProviderBotID) == "" {
		return fmt.Errorf("reconcile: task %s has no bot id", t.ID)
	}
	switch t.Op {
	case OpSyncMirror, OpDeleteMirror:
		return nil
	}
	return fmt.Errorf("reconcile: task %s has unknown op %q", t.ID, t.Op)
}

// Encode serializes the task for the queue.
func (t *Task) Encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("reconcile: encode task: %w", err)
	}
	return string(data), nil
}

// DecodeTask parses a queued task body.
func DecodeTask(body string) (Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return Task{}, fmt.Errorf("reconcile: decode task: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}
