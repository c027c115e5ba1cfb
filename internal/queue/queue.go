package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
)

const (
	defaultQueue   = "default"
	publishRetries = 3
	retryBaseDelay = 30 * time.Second
)

// Client owns the delayed publish job for each post. Jobs are keyed by
// the post id, so there is at most one in-flight job per post and
// re-scheduling replaces rather than duplicates.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewClient(redisOpt asynq.RedisClientOpt) *Client {
	return &Client{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
	}
}

func (c *Client) Close() error {
	c.inspector.Close()
	return c.client.Close()
}

func taskID(postID int64) string {
	return strconv.FormatInt(postID, 10)
}

func (c *Client) Schedule(ctx context.Context, postID int64, runAt time.Time) error {
	payload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	// Replace any existing job for this post before enqueueing; a stale
	// entry would otherwise collide on the task id.
	if err := c.Cancel(ctx, postID); err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, payload)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(taskID(postID)),
		asynq.ProcessAt(runAt),
		asynq.MaxRetry(publishRetries),
		asynq.Queue(defaultQueue),
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	slog.Info("publish job scheduled", "post_id", postID, "run_at", runAt.Format(time.RFC3339))
	return nil
}

func (c *Client) Cancel(ctx context.Context, postID int64) error {
	err := c.inspector.DeleteTask(defaultQueue, taskID(postID))
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// RetryDelay is the exponential backoff applied by the asynq server when
// a publish task returns an error.
func RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	return time.Duration(math.Pow(2, float64(n))) * retryBaseDelay
}
