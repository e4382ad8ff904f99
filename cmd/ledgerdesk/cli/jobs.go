package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerdesk/jobs"
)

// JobsCLI runs operator commands against the ledgerdesk queue.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers for the given Redis connection.
func NewJobsCLI(opts asynq.RedisClientOpt) (*JobsCLI, error) {
	if opts.Addr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}, nil
}

// Close releases the client and inspector connections.
func (c *JobsCLI) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// manualTriggerWindow keeps repeated manual triggers from stacking up.
const manualTriggerWindow = time.Minute

// Trigger enqueues a job that needs no payload. A second trigger of the same
// job within manualTriggerWindow fails with asynq.ErrDuplicateTask.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := triggerTask(name)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Unique(manualTriggerWindow))
}

func triggerTask(name string) (*asynq.Task, error) {
	switch name {
	case jobs.TaskMasterdataRefresh:
		return jobs.NewMasterdataRefreshTask(), nil
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return stats, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListArchived returns dead notification tasks so they can be inspected or replayed.
func (c *JobsCLI) ListArchived(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListArchivedTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

const requeuePageSize = 100

// RequeueArchived moves archived tasks back to pending and reports how many
// moved. An empty taskType moves all of them.
func (c *JobsCLI) RequeueArchived(ctx context.Context, taskType string) (int, error) {
	if c == nil || c.inspector == nil {
		return 0, errors.New("jobs cli: inspector not configured")
	}
	if taskType == "" {
		return c.inspector.RunAllArchivedTasks(jobs.QueueDefault)
	}
	var ids []string
	for page := 1; ; page++ {
		tasks, err := c.inspector.ListArchivedTasks(jobs.QueueDefault, asynq.PageSize(requeuePageSize), asynq.Page(page))
		if err != nil {
			return 0, err
		}
		ids = append(ids, archivedOfType(tasks, taskType)...)
		if len(tasks) < requeuePageSize {
			break
		}
	}
	moved := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		if err := c.inspector.RunTask(jobs.QueueDefault, id); err != nil {
			return moved, fmt.Errorf("jobs cli: requeue %s: %w", id, err)
		}
		moved++
	}
	return moved, nil
}

func archivedOfType(tasks []*asynq.TaskInfo, taskType string) []string {
	var ids []string
	for _, t := range tasks {
		if t != nil && t.Type == taskType {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
