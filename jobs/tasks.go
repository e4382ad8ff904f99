package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerdesk/internal/forms"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDocumentPosted delivers a posted-document notification.
	TaskDocumentPosted = "notify:document-posted"
	// TaskMasterdataRefresh drops and re-warms the master data cache.
	TaskMasterdataRefresh = "masterdata:refresh"
)

// NewDocumentPostedTask constructs an Asynq task.
func NewDocumentPostedTask(ev forms.PostedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentPosted, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewMasterdataRefreshTask constructs the periodic refresh task.
func NewMasterdataRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskMasterdataRefresh, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueDocumentPosted enqueues a posted-document notification.
func (c *Client) EnqueueDocumentPosted(ctx context.Context, ev forms.PostedEvent) (*asynq.TaskInfo, error) {
	task, err := NewDocumentPostedTask(ev)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// DocumentPosted implements forms.Notifier.
func (c *Client) DocumentPosted(ctx context.Context, ev forms.PostedEvent) error {
	_, err := c.EnqueueDocumentPosted(ctx, ev)
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
