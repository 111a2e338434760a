package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// uniqueWindow stops repeated manual triggers from stacking identical tasks.
const uniqueWindow = 5 * time.Minute

// ErrAlreadyQueued is returned when an identical task is still pending.
var ErrAlreadyQueued = errors.New("jobs: identical task already queued")

// Client enqueues on-demand runs of the scheduled jobs.
type Client struct {
	client *asynq.Client
}

// NewClient constructs a Client.
func NewClient(redisOpts asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueIntegrityCheck requests an integrity check as of asOf. A zero asOf checks today.
func (c *Client) EnqueueIntegrityCheck(ctx context.Context, asOf time.Time) (*asynq.TaskInfo, error) {
	task, err := NewIntegrityTask(IntegrityPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return c.enqueue(ctx, task)
}

// EnqueueCleanup requests an idempotency key cleanup.
func (c *Client) EnqueueCleanup(ctx context.Context, retention time.Duration) (*asynq.TaskInfo, error) {
	task, err := NewCleanupTask(retention)
	if err != nil {
		return nil, err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	info, err := c.client.EnqueueContext(ctx, task, asynq.Unique(uniqueWindow))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil, ErrAlreadyQueued
	}
	return info, err
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
