// Package raidmq defines the wire-format messages exchanged over the
// broker's task/result queues and collaboration pub/sub channels. These
// types are intentionally free of any broker-client dependency so they
// can be imported by both the control process and sub-agent containers
// without pulling in Redis internals.
package raidmq

import (
	"time"

	"github.com/google/uuid"
)

// TaskMessage is one unit of work dispatched to a sub-agent profile's
// task queue.
type TaskMessage struct {
	TaskID        string                 `json:"task_id"`
	CorrelationID string                 `json:"correlation_id"`
	Profile       string                 `json:"profile"`
	Prompt        string                 `json:"prompt"`
	Tools         []string               `json:"tools"`
	ModelOptions  map[string]interface{} `json:"model_options"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewTaskMessage builds a TaskMessage with a fresh task_id and
// correlation_id.
func NewTaskMessage(profile, prompt string, tools []string, modelOptions map[string]interface{}) TaskMessage {
	if modelOptions == nil {
		modelOptions = map[string]interface{}{}
	}
	return TaskMessage{
		TaskID:        uuid.NewString(),
		CorrelationID: uuid.NewString(),
		Profile:       profile,
		Prompt:        prompt,
		Tools:         tools,
		ModelOptions:  modelOptions,
		CreatedAt:     time.Now().UTC(),
	}
}

// ResultStatus enumerates the three possible ResultMessage outcomes.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
	ResultTimeout ResultStatus = "timeout"
)

// ResultMessage is a reply to a TaskMessage, matched on CorrelationID.
type ResultMessage struct {
	TaskID        string         `json:"task_id"`
	CorrelationID string         `json:"correlation_id"`
	Status        ResultStatus   `json:"status"`
	Result        string         `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	Usage         map[string]int `json:"usage,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewSuccessResult builds a success ResultMessage for the given task.
func NewSuccessResult(taskID, correlationID, result string, usage map[string]int) ResultMessage {
	return ResultMessage{
		TaskID:        taskID,
		CorrelationID: correlationID,
		Status:        ResultSuccess,
		Result:        result,
		Usage:         usage,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewErrorResult builds an error ResultMessage for the given task.
func NewErrorResult(taskID, correlationID, errText string) ResultMessage {
	return ResultMessage{
		TaskID:        taskID,
		CorrelationID: correlationID,
		Status:        ResultError,
		Error:         errText,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewTimeoutResult synthesizes the timeout ResultMessage a dispatcher
// returns to its caller when no matching result arrives before the
// deadline. Timeout is never silent (spec §4.4 step 3).
func NewTimeoutResult(taskID, correlationID string) ResultMessage {
	return ResultMessage{
		TaskID:        taskID,
		CorrelationID: correlationID,
		Status:        ResultTimeout,
		Error:         "timeout waiting for result",
		CreatedAt:     time.Now().UTC(),
	}
}
