package raidmq

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskMessage_RoundTrip(t *testing.T) {
	tm := NewTaskMessage("calculator_agent", "compute 15% of 85", []string{"calculator"}, nil)

	data, err := json.Marshal(tm)
	require.NoError(t, err)

	var decoded TaskMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tm.TaskID, decoded.TaskID)
	assert.Equal(t, tm.CorrelationID, decoded.CorrelationID)
	assert.Equal(t, tm.Profile, decoded.Profile)
	assert.WithinDuration(t, tm.CreatedAt, decoded.CreatedAt, 0)
}

func TestNewTaskMessage_UniqueIDs(t *testing.T) {
	a := NewTaskMessage("p", "x", nil, nil)
	b := NewTaskMessage("p", "x", nil, nil)
	assert.NotEqual(t, a.TaskID, b.TaskID)
	assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
}

func TestResultMessage_RoundTrip(t *testing.T) {
	rm := NewSuccessResult("task-1", "corr-1", "12.75", map[string]int{"tokens": 42})
	data, err := json.Marshal(rm)
	require.NoError(t, err)

	var decoded ResultMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rm, decoded)
}

func TestNewTimeoutResult_NeverSilent(t *testing.T) {
	rm := NewTimeoutResult("task-1", "corr-1")
	assert.Equal(t, ResultTimeout, rm.Status)
	assert.NotEmpty(t, rm.Error)
}

func TestCollaborationMessage_RoundTrip(t *testing.T) {
	msg := NewDataShareMessage("group-1", "agent-a", "", map[string]interface{}{"value": 12.75})
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded CollaborationMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, msg.MessageID, decoded.MessageID)
	assert.Equal(t, msg.Type, decoded.Type)
	require.NotNil(t, decoded.ExpiresAt)
}

func TestCollaborationMessage_IsExpired(t *testing.T) {
	msg := NewStatusUpdateMessage("group-1", "agent-a", "busy")
	assert.False(t, msg.IsExpired(msg.CreatedAt))
	assert.True(t, msg.IsExpired(msg.CreatedAt.Add(StatusUpdateTTL+1)))
}
