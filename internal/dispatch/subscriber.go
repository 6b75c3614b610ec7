package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/raid/pkg/raidmq"
)

// CollaborationContext is a subscriber's local store of data received
// from other group members, keyed the way spec.md §4.4 describes
// (`<sender>_<key>` for data_share, `<sender>_status` for status_update).
type CollaborationContext struct {
	mu    sync.Mutex
	store map[string]interface{}
}

// NewCollaborationContext builds an empty context.
func NewCollaborationContext() *CollaborationContext {
	return &CollaborationContext{store: make(map[string]interface{})}
}

// Set stores a value under key.
func (c *CollaborationContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = value
}

// Get retrieves a previously stored value.
func (c *CollaborationContext) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	return v, ok
}

// HostHandler is invoked for message types with no default action
// (coordination, error_report); the host decides what to do.
type HostHandler func(msg raidmq.CollaborationMessage)

// Subscriber applies one member's view of spec.md §4.4's accepted-message
// handling to incoming collaboration traffic. Every subscriber filters
// self-authored messages, messages targeted at someone else, and expired
// messages before dispatching by type.
type Subscriber struct {
	Self          string
	Manager       *Manager
	Context       *CollaborationContext
	OnHostMessage HostHandler
}

// Handle applies spec.md §4.4's filter-then-dispatch rules to one
// decoded message. Publishing a best-effort reply uses the same
// Manager.Publish validator path as any other send.
func (s *Subscriber) Handle(ctx context.Context, msg raidmq.CollaborationMessage) error {
	now := time.Now().UTC()

	if msg.Sender == s.Self {
		return nil
	}
	if msg.Target != "" && msg.Target != s.Self {
		return nil
	}
	if msg.IsExpired(now) {
		return nil
	}

	switch msg.Type {
	case raidmq.MsgDataShare:
		for k, v := range msg.Data {
			s.Context.Set(fmt.Sprintf("%s_%s", msg.Sender, k), v)
		}
		return nil

	case raidmq.MsgRequestData:
		key := fmt.Sprintf("%s_%s", s.Self, msg.Request)
		if v, ok := s.Context.Get(key); ok {
			reply := raidmq.NewDataShareMessage(msg.GroupID, s.Self, msg.Sender, map[string]interface{}{msg.Request: v})
			return s.Manager.Publish(ctx, reply)
		}
		return nil

	case raidmq.MsgStatusUpdate:
		s.Context.Set(fmt.Sprintf("%s_status", msg.Sender), msg.Status)
		return nil

	case raidmq.MsgValidation:
		ack := raidmq.NewDataShareMessage(msg.GroupID, s.Self, msg.Sender, map[string]interface{}{
			"validation_status": "acknowledged",
			"validation_agent":  s.Self,
		})
		return s.Manager.Publish(ctx, ack)

	case raidmq.MsgCoordination, raidmq.MsgErrorReport:
		if s.OnHostMessage != nil {
			s.OnHostMessage(msg)
		}
		return nil

	default:
		return nil
	}
}

// HandleRaw strictly JSON-decodes payload before dispatching — no
// eval, ever (spec.md §9).
func (s *Subscriber) HandleRaw(ctx context.Context, payload string) error {
	msg, err := DecodeMessage(payload)
	if err != nil {
		return err
	}
	return s.Handle(ctx, msg)
}
