package raidmq

import (
	"time"

	"github.com/google/uuid"
)

// CollaborationMessageType enumerates the message kinds exchanged on a
// group's pub/sub channel.
type CollaborationMessageType string

const (
	MsgDataShare     CollaborationMessageType = "data_share"
	MsgRequestData   CollaborationMessageType = "request_data"
	MsgStatusUpdate  CollaborationMessageType = "status_update"
	MsgCoordination  CollaborationMessageType = "coordination"
	MsgValidation    CollaborationMessageType = "validation"
	MsgErrorReport   CollaborationMessageType = "error_report"
)

// Default time-to-live durations per message type, grounded on the
// original implementation's CollaborationMessage factory methods
// (config/collaboration.py: create_data_share +30min, create_request
// +10min, create_status_update +15min).
const (
	DataShareTTL    = 30 * time.Minute
	RequestDataTTL  = 10 * time.Minute
	StatusUpdateTTL = 15 * time.Minute
)

// CollaborationMessage is exchanged between sub-agents within a group.
// Exactly one of Data/Request/Status/Error is populated, matching the
// message Type.
type CollaborationMessage struct {
	MessageID     string                   `json:"message_id"`
	GroupID       string                   `json:"group_id"`
	Sender        string                   `json:"sender"`
	Target        string                   `json:"target,omitempty"`
	Type          CollaborationMessageType `json:"type"`
	CreatedAt     time.Time                `json:"created_at"`
	ExpiresAt     *time.Time               `json:"expires_at,omitempty"`
	CorrelationID string                   `json:"correlation_id,omitempty"`

	Data    map[string]interface{} `json:"data,omitempty"`
	Request string                  `json:"request,omitempty"`
	Status  string                  `json:"status,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// IsExpired reports whether the message's expiry (if any) has passed.
func (m CollaborationMessage) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

func newBase(groupID, sender, target string, msgType CollaborationMessageType) CollaborationMessage {
	return CollaborationMessage{
		MessageID: uuid.NewString(),
		GroupID:   groupID,
		Sender:    sender,
		Target:    target,
		Type:      msgType,
		CreatedAt: time.Now().UTC(),
	}
}

func withExpiry(msg CollaborationMessage, ttl time.Duration) CollaborationMessage {
	exp := msg.CreatedAt.Add(ttl)
	msg.ExpiresAt = &exp
	return msg
}

// NewDataShareMessage builds a data_share message, expiring after
// DataShareTTL.
func NewDataShareMessage(groupID, sender, target string, data map[string]interface{}) CollaborationMessage {
	msg := newBase(groupID, sender, target, MsgDataShare)
	msg.Data = data
	return withExpiry(msg, DataShareTTL)
}

// NewRequestDataMessage builds a request_data message, expiring after
// RequestDataTTL.
func NewRequestDataMessage(groupID, sender, target, request string) CollaborationMessage {
	msg := newBase(groupID, sender, target, MsgRequestData)
	msg.Request = request
	return withExpiry(msg, RequestDataTTL)
}

// NewStatusUpdateMessage builds a status_update message, expiring after
// StatusUpdateTTL.
func NewStatusUpdateMessage(groupID, sender, status string) CollaborationMessage {
	msg := newBase(groupID, sender, "", MsgStatusUpdate)
	msg.Status = status
	return withExpiry(msg, StatusUpdateTTL)
}

// NewValidationMessage builds a validation message with no default
// expiry (the original treats validation acks as short-lived
// coordination, not data with a TTL of its own); callers may still set
// ExpiresAt explicitly.
func NewValidationMessage(groupID, sender, target, status string) CollaborationMessage {
	msg := newBase(groupID, sender, target, MsgValidation)
	msg.Status = status
	return msg
}

// NewCoordinationMessage builds a coordination message.
func NewCoordinationMessage(groupID, sender, target, status string) CollaborationMessage {
	msg := newBase(groupID, sender, target, MsgCoordination)
	msg.Status = status
	return msg
}

// NewErrorReportMessage builds an error_report message.
func NewErrorReportMessage(groupID, sender, errText string) CollaborationMessage {
	msg := newBase(groupID, sender, "", MsgErrorReport)
	msg.Error = errText
	return msg
}
