// Package notify queues ticket notifications and delivers them to the external
// workflow runner.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueueKey is the Redis list shared by the API and the worker.
const QueueKey = "jobs"

// JobWorkflow is the job type carrying a Notification.
const JobWorkflow = "workflow"

const (
	EventTicketCreated = "ticket_created"
	EventSLABreached   = "sla_breached"
)

// Job is the queue envelope.
type Job struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Notification is the payload posted to the workflow runner.
type Notification struct {
	Event              string     `json:"event"`
	TicketID           string     `json:"ticket_id"`
	Number             string     `json:"number,omitempty"`
	Title              string     `json:"title,omitempty"`
	Requester          string     `json:"requester,omitempty"`
	Tier               string     `json:"tier,omitempty"`
	RequiredHours      int        `json:"required_hours,omitempty"`
	OpenedAt           *time.Time `json:"opened_at,omitempty"`
	DueAt              *time.Time `json:"due_at,omitempty"`
	ElapsedWorkMinutes int        `json:"elapsed_work_minutes,omitempty"`
}

// Enqueue pushes n onto the job queue.
func Enqueue(ctx context.Context, q redis.Cmdable, n Notification) error {
	if q == nil {
		return nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	b, err := json.Marshal(Job{Type: JobWorkflow, Data: data})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.RPush(ctx, QueueKey, b).Err()
}

// ErrEmptyQueue is returned by Next when the wait elapsed without a job.
var ErrEmptyQueue = errors.New("queue empty")

// Next blocks up to timeout for the next job. A zero timeout blocks indefinitely.
func Next(ctx context.Context, q redis.Cmdable, timeout time.Duration) (Job, error) {
	res, err := q.BLPop(ctx, timeout, QueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrEmptyQueue
	}
	if err != nil {
		return Job{}, err
	}
	if len(res) < 2 {
		return Job{}, ErrEmptyQueue
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}
