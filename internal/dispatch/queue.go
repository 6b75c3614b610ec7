// Package dispatch implements the Dispatch & Collaboration Fabric (C4):
// per-profile task/result queues matched by correlation ID, and
// per-group pub/sub collaboration channels with validation, rate
// limiting, and expiry.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/raid/pkg/raidmq"
)

// maxRequeueAttempts bounds how many times this dispatcher will push a
// non-matching result back onto the queue before giving up on it,
// refining the original's unbounded requeue loop (spec.md §9 open
// question: "a bounded re-enqueue count (e.g. 3)").
const maxRequeueAttempts = 3

// pollUnit is the blocking-pop timeout used while waiting for a
// matching result, matching spec.md §4.4's "short unit timeout" polling
// discipline.
const pollUnit = 1 * time.Second

// Queue implements the task/result broker contract over Redis lists.
type Queue struct {
	rdb *redis.Client
}

// NewQueue wraps an existing Redis client.
func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// TaskQueueKey returns the task queue key for a profile (spec.md §6).
func TaskQueueKey(profile string) string { return "tasks:" + profile }

// ResultQueueKey returns the result queue key for a profile (spec.md §6).
func ResultQueueKey(profile string) string { return "results:" + profile }

// SendTask pushes a TaskMessage onto its profile's task queue.
func (q *Queue) SendTask(ctx context.Context, task raidmq.TaskMessage) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.rdb.LPush(ctx, TaskQueueKey(task.Profile), data).Err(); err != nil {
		return fmt.Errorf("send task: %w", err)
	}
	return nil
}

// ReceiveTask blocks (up to timeout) for the next task on profile's
// queue. A nil, nil return means the timeout elapsed with nothing
// available.
func (q *Queue) ReceiveTask(ctx context.Context, profile string, timeout time.Duration) (*raidmq.TaskMessage, error) {
	res, err := q.rdb.BRPop(ctx, timeout, TaskQueueKey(profile)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receive task: %w", err)
	}
	var task raidmq.TaskMessage
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// SendResult pushes a ResultMessage onto its profile's result queue.
func (q *Queue) SendResult(ctx context.Context, profile string, result raidmq.ResultMessage) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := q.rdb.LPush(ctx, ResultQueueKey(profile), data).Err(); err != nil {
		return fmt.Errorf("send result: %w", err)
	}
	return nil
}

func (q *Queue) receiveResult(ctx context.Context, profile string, timeout time.Duration) (*raidmq.ResultMessage, error) {
	res, err := q.rdb.BRPop(ctx, timeout, ResultQueueKey(profile)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receive result: %w", err)
	}
	var result raidmq.ResultMessage
	if err := json.Unmarshal([]byte(res[1]), &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

// Dispatch writes a task to profile's queue and polls for its matching
// result until deadline, requeuing any non-matching result it observes
// along the way (spec.md §4.4). Timeout is never silent: a synthetic
// timeout ResultMessage is returned to the caller rather than an error.
func (q *Queue) Dispatch(ctx context.Context, profile, prompt string, tools []string, modelOptions map[string]interface{}, deadline time.Duration) (raidmq.ResultMessage, error) {
	task := raidmq.NewTaskMessage(profile, prompt, tools, modelOptions)
	if err := q.SendTask(ctx, task); err != nil {
		return raidmq.ResultMessage{}, err
	}

	deadlineAt := time.Now().Add(deadline)
	requeueAttempts := map[string]int{}

	for {
		remaining := time.Until(deadlineAt)
		if remaining <= 0 {
			return raidmq.NewTimeoutResult(task.TaskID, task.CorrelationID), nil
		}

		unit := pollUnit
		if remaining < unit {
			unit = remaining
		}

		result, err := q.receiveResult(ctx, profile, unit)
		if err != nil {
			return raidmq.ResultMessage{}, err
		}
		if result == nil {
			continue
		}
		if result.CorrelationID == task.CorrelationID {
			return *result, nil
		}

		requeueAttempts[result.CorrelationID]++
		if requeueAttempts[result.CorrelationID] > maxRequeueAttempts {
			slog.Warn("dropping result after requeue attempts exhausted", "component", "dispatch", "correlation_id", result.CorrelationID, "attempts", requeueAttempts[result.CorrelationID]-1)
			continue
		}
		if err := q.SendResult(ctx, profile, *result); err != nil {
			return raidmq.ResultMessage{}, err
		}
	}
}
