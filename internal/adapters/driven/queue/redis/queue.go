package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

const (
	taskStream     = "cloudrelay:tasks"
	taskGroup      = "cloudrelay:workers"
	scheduledTasks = "cloudrelay:scheduled"
	completedTasks = "cloudrelay:finished:completed"
	failedTasks    = "cloudrelay:finished:failed"

	taskKeyPrefix  = "cloudrelay:task:"
	consumerPrefix = "worker-"

	// taskTTL bounds how long task bodies outlive a purge that never ran
	taskTTL = 7 * 24 * time.Hour

	// claimTimeout is how long a delivered task may go unacknowledged
	// before another worker takes it over
	claimTimeout = 5 * time.Minute
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using Redis Streams with a consumer group.
// Delayed tasks wait in a sorted set until due. Finished task ids are kept in
// per-status sorted sets scored by completion time, for stats and purging.
type Queue struct {
	client       redis.UniversalClient
	consumerName string
	logger       *slog.Logger
}

// NewQueue creates a new Redis-backed task queue.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(ctx context.Context, client redis.UniversalClient, consumerName string, logger *slog.Logger) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = consumerPrefix + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	if logger == nil {
		logger = slog.Default()
	}

	err := client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Queue{client: client, consumerName: consumerName, logger: logger}, nil
}

func taskKey(id string) string    { return taskKeyPrefix + id }
func messageKey(id string) string { return taskKeyPrefix + id + ":msg" }

// stage writes the task body and routes it to the stream or the delay set.
func stage(ctx context.Context, pipe redis.Pipeliner, task *domain.Task, now time.Time) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	pipe.Set(ctx, taskKey(task.ID), data, taskTTL)

	if task.ScheduledFor.After(now) {
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{Score: float64(task.ScheduledFor.UnixMilli()), Member: task.ID})
		return nil
	}
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]any{"task_id": task.ID, "type": string(task.Type)},
	})
	return nil
}

// Enqueue adds a task to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	return q.EnqueueBatch(ctx, []*domain.Task{task})
}

// EnqueueBatch adds multiple tasks in one pipeline.
func (q *Queue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	pipe := q.client.TxPipeline()
	now := time.Now()
	for _, task := range tasks {
		if task == nil {
			return errors.New("task is required")
		}
		if err := stage(ctx, pipe, task, now); err != nil {
			return err
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue tasks: %w", err)
	}
	return nil
}

// DequeueWithTimeout retrieves the next available task, waiting up to timeout.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	if err := q.promoteScheduledTasks(ctx); err != nil {
		q.logger.Warn("failed to promote scheduled tasks", "error", err)
	}

	if task, err := q.claimAbandonedTask(ctx); err != nil {
		q.logger.Warn("failed to claim abandoned tasks", "error", err)
	} else if task != nil {
		return task, nil
	}

	if timeout <= 0 {
		timeout = time.Second
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    timeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return q.deliver(ctx, streams[0].Messages[0])
}

// deliver loads the task behind a stream message and marks it processing.
// Messages whose task body is gone are dropped.
func (q *Queue) deliver(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, _ := msg.Values["task_id"].(string)
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		q.client.XDel(ctx, taskStream, msg.ID)
		return nil, nil
	}

	task.MarkProcessing()
	data, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKey(task.ID), data, taskTTL)
	pipe.Set(ctx, messageKey(task.ID), msg.ID, taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark task processing: %w", err)
	}
	return task, nil
}

// finish removes the stream message and records the task's new state.
func (q *Queue) finish(ctx context.Context, task *domain.Task, requeue bool) error {
	msgID, err := q.client.Get(ctx, messageKey(task.ID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message id: %w", err)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return err
	}

	pipe := q.client.TxPipeline()
	if msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}
	pipe.Del(ctx, messageKey(task.ID))
	pipe.Set(ctx, taskKey(task.ID), data, taskTTL)

	score := float64(task.UpdatedAt.UnixMilli())
	switch {
	case requeue:
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{Score: float64(task.ScheduledFor.UnixMilli()), Member: task.ID})
	case task.Status == domain.TaskStatusCompleted:
		pipe.ZAdd(ctx, completedTasks, redis.Z{Score: score, Member: task.ID})
	default:
		pipe.ZAdd(ctx, failedTasks, redis.Z{Score: score, Member: task.ID})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// Ack acknowledges successful completion of a task.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return domain.ErrNotFound
	}
	task.MarkCompleted()
	return q.finish(ctx, task, false)
}

// Nack reschedules the task with backoff, or fails it once attempts are spent.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return domain.ErrNotFound
	}
	if task.CanRetry() {
		task.Retry(reason)
		return q.finish(ctx, task, true)
	}
	task.MarkFailed(reason)
	return q.finish(ctx, task, false)
}

// GetTask retrieves a task by ID. Returns nil, nil if unknown.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// PurgeTasks removes completed/failed tasks finished before the cutoff.
func (q *Queue) PurgeTasks(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := strconv.FormatInt(time.Now().Add(-olderThan).UnixMilli(), 10)
	purged := 0
	for _, set := range []string{completedTasks, failedTasks} {
		ids, err := q.client.ZRangeByScore(ctx, set, &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
		if err != nil {
			return purged, fmt.Errorf("failed to list finished tasks: %w", err)
		}
		if len(ids) == 0 {
			continue
		}

		keys := make([]string, 0, len(ids))
		members := make([]any, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, taskKey(id))
			members = append(members, id)
		}
		pipe := q.client.TxPipeline()
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, set, members...)
		if _, err := pipe.Exec(ctx); err != nil {
			return purged, fmt.Errorf("failed to purge tasks: %w", err)
		}
		purged += len(ids)
	}
	return purged, nil
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	pipe := q.client.Pipeline()
	streamLen := pipe.XLen(ctx, taskStream)
	pending := pipe.XPending(ctx, taskStream, taskGroup)
	scheduled := pipe.ZCard(ctx, scheduledTasks)
	completed := pipe.ZCard(ctx, completedTasks)
	failed := pipe.ZCard(ctx, failedTasks)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	var processing int64
	if p, err := pending.Result(); err == nil {
		processing = p.Count
	}
	waiting := streamLen.Val() - processing
	if waiting < 0 {
		waiting = 0
	}

	return &driven.QueueStats{
		PendingCount:    waiting + scheduled.Val(),
		ProcessingCount: processing,
		CompletedCount:  completed.Val(),
		FailedCount:     failed.Val(),
	}, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the client is shared.
func (q *Queue) Close() error {
	return nil
}

// promoteScheduledTasks moves due delayed tasks onto the stream.
func (q *Queue) promoteScheduledTasks(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, scheduledTasks, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil || len(ids) == 0 {
		return err
	}

	for _, id := range ids {
		// ZREM decides which worker promotes a task
		removed, err := q.client.ZRem(ctx, scheduledTasks, id).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.XAdd(ctx, &redis.XAddArgs{
			Stream: taskStream,
			Values: map[string]any{"task_id": id},
		}).Err(); err != nil {
			return err
		}
	}
	return nil
}

// claimAbandonedTask takes over a message another worker left unacknowledged.
func (q *Queue) claimAbandonedTask(ctx context.Context) (*domain.Task, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   taskStream,
		Group:    taskGroup,
		Consumer: q.consumerName,
		MinIdle:  claimTimeout,
		Start:    "0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	q.logger.Info("claimed abandoned task", "message_id", msgs[0].ID, "consumer", q.consumerName)
	return q.deliver(ctx, msgs[0])
}
