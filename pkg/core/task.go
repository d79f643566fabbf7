package core

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusRejected  TaskStatus = "rejected"
)

// Task represents one in-flight request as a first-class unit of work.
type Task struct {
	ID         string
	Goal       string
	AssignedTo string
	Status     TaskStatus
	Result     any
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Metadata   map[string]string
}

// NewTask creates a task with a generated ID.
func NewTask(goal, assignedTo string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:         uuid.NewString(),
		Goal:       goal,
		AssignedTo: assignedTo,
		Status:     TaskStatusPending,
		CreatedAt:  now,
	}
}

// Start marks the task as running.
func (t *Task) Start() {
	t.Status = TaskStatusRunning
	t.StartedAt = time.Now().UTC()
}

// Complete marks the task as completed with the given result.
func (t *Task) Complete(result any) {
	t.Status = TaskStatusCompleted
	t.Result = result
	t.FinishedAt = time.Now().UTC()
}

// Fail marks the task as failed with the given error message.
func (t *Task) Fail(errMsg string) {
	t.Status = TaskStatusFailed
	t.Error = errMsg
	t.FinishedAt = time.Now().UTC()
}

// Reject marks the task as rejected before any execution happened.
func (t *Task) Reject(reason string) {
	t.Status = TaskStatusRejected
	t.Error = reason
	t.FinishedAt = time.Now().UTC()
}
