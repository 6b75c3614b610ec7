package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/raid/pkg/raidmq"
)

// Restrictions bounds what a collaboration group's members may publish
// (spec.md §3, §4.4).
type Restrictions struct {
	AllowedTypes         map[raidmq.CollaborationMessageType]bool
	MaxMessageSizeBytes  int
	MaxMessagesPerMinute int
	AllowedDataKeys      map[string]bool // nil = no restriction
	InactivityTimeout    time.Duration
}

func allTypes() map[raidmq.CollaborationMessageType]bool {
	return map[raidmq.CollaborationMessageType]bool{
		raidmq.MsgDataShare:    true,
		raidmq.MsgRequestData:  true,
		raidmq.MsgStatusUpdate: true,
		raidmq.MsgCoordination: true,
		raidmq.MsgValidation:   true,
		raidmq.MsgErrorReport:  true,
	}
}

// DefaultRestrictions mirrors the original's CollaborationRestrictions
// defaults (config/collaboration.py): all message types allowed, 10KB
// messages, 30/minute, no data-key allow-list, 60-minute inactivity
// timeout.
func DefaultRestrictions() Restrictions {
	return Restrictions{
		AllowedTypes:         allTypes(),
		MaxMessageSizeBytes:  10000,
		MaxMessagesPerMinute: 30,
		InactivityTimeout:    60 * time.Minute,
	}
}

// Named collaboration-type presets, grounded on the original control
// agent's _get_collaboration_restrictions (four named modes). Each
// narrows the allowed message set and tunes rate/timeout to its
// workflow shape.
func RestrictionsForMode(mode string) (Restrictions, error) {
	switch mode {
	case "data_sharing":
		return Restrictions{
			AllowedTypes:         map[raidmq.CollaborationMessageType]bool{raidmq.MsgDataShare: true, raidmq.MsgRequestData: true},
			MaxMessageSizeBytes:  10000,
			MaxMessagesPerMinute: 20,
			InactivityTimeout:    60 * time.Minute,
		}, nil
	case "validation_chain":
		return Restrictions{
			AllowedTypes:         map[raidmq.CollaborationMessageType]bool{raidmq.MsgValidation: true, raidmq.MsgDataShare: true, raidmq.MsgErrorReport: true},
			MaxMessageSizeBytes:  5000,
			MaxMessagesPerMinute: 10,
			InactivityTimeout:    30 * time.Minute,
		}, nil
	case "parallel_analysis":
		return Restrictions{
			AllowedTypes:         map[raidmq.CollaborationMessageType]bool{raidmq.MsgDataShare: true, raidmq.MsgStatusUpdate: true},
			MaxMessageSizeBytes:  10000,
			MaxMessagesPerMinute: 30,
			InactivityTimeout:    60 * time.Minute,
		}, nil
	case "sequential_workflow":
		return Restrictions{
			AllowedTypes:         map[raidmq.CollaborationMessageType]bool{raidmq.MsgCoordination: true, raidmq.MsgStatusUpdate: true, raidmq.MsgDataShare: true},
			MaxMessageSizeBytes:  10000,
			MaxMessagesPerMinute: 15,
			InactivityTimeout:    45 * time.Minute,
		}, nil
	case "":
		return DefaultRestrictions(), nil
	default:
		return Restrictions{}, fmt.Errorf("unknown collaboration mode %q", mode)
	}
}

// Member tracks one worker's membership in a group.
type Member struct {
	Name         string
	JoinedAt     time.Time
	MessageCount int
	LastActivity time.Time
}

// maxHistory bounds the group's FIFO message history.
const maxHistory = 500

// Group is a named set of workers sharing a collaboration channel
// (spec.md §3 CollaborationGroup).
type Group struct {
	mu sync.Mutex

	GroupID      string
	GroupName    string
	CreatedAt    time.Time
	Members      map[string]*Member
	Restrictions Restrictions

	history    []raidmq.CollaborationMessage
	sendTimes  map[string][]time.Time // sender -> send timestamps within the trailing window
}

// NewGroup constructs an empty group.
func NewGroup(groupID, groupName string, restrictions Restrictions) *Group {
	return &Group{
		GroupID:      groupID,
		GroupName:    groupName,
		CreatedAt:    time.Now().UTC(),
		Members:      make(map[string]*Member),
		Restrictions: restrictions,
		sendTimes:    make(map[string][]time.Time),
	}
}

// AddMember registers a worker as a group member.
func (g *Group) AddMember(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.Members[name]; ok {
		return
	}
	g.Members[name] = &Member{Name: name, JoinedAt: time.Now().UTC(), LastActivity: time.Now().UTC()}
}

// RemoveMember drops a worker from the group.
func (g *Group) RemoveMember(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.Members, name)
}

// IsMember reports group membership.
func (g *Group) IsMember(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.Members[name]
	return ok
}

// ErrNotMember, ErrTypeNotAllowed, ErrTargetNotMember, ErrTooLarge,
// ErrRateLimited, and ErrDataKeyNotAllowed are the validator's rejection
// reasons (spec.md §4.4).
var (
	ErrNotMember        = fmt.Errorf("sender is not a member of the group")
	ErrTypeNotAllowed   = fmt.Errorf("message type is not permitted in this group")
	ErrTargetNotMember  = fmt.Errorf("target is not a member of the group")
	ErrTooLarge         = fmt.Errorf("message exceeds max_message_size_bytes")
	ErrRateLimited      = fmt.Errorf("sender exceeded max_messages_per_minute")
	ErrDataKeyNotAllowed = fmt.Errorf("message data includes a key outside the allow-list")
)

// Validate applies every check in spec.md §4.4's validator, in the
// order listed there, returning the first violation.
func (g *Group) Validate(msg raidmq.CollaborationMessage, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.Members[msg.Sender]; !ok {
		return ErrNotMember
	}
	if !g.Restrictions.AllowedTypes[msg.Type] {
		return ErrTypeNotAllowed
	}
	if msg.Target != "" {
		if _, ok := g.Members[msg.Target]; !ok {
			return ErrTargetNotMember
		}
	}

	data, err := json.Marshal(msg)
	if err == nil && g.Restrictions.MaxMessageSizeBytes > 0 && len(data) > g.Restrictions.MaxMessageSizeBytes {
		return ErrTooLarge
	}

	if g.Restrictions.MaxMessagesPerMinute > 0 && !g.checkRateLimitLocked(msg.Sender, now) {
		return ErrRateLimited
	}

	if g.Restrictions.AllowedDataKeys != nil && msg.Data != nil {
		for key := range msg.Data {
			if !g.Restrictions.AllowedDataKeys[key] {
				return ErrDataKeyNotAllowed
			}
		}
	}

	return nil
}

// checkRateLimitLocked implements the sliding-window counter spec.md §9
// requires ("per-sender sliding-window counter... not a token bucket").
// Caller must hold g.mu.
func (g *Group) checkRateLimitLocked(sender string, now time.Time) bool {
	windowStart := now.Add(-60 * time.Second)
	times := g.sendTimes[sender]
	kept := times[:0]
	for _, t := range times {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	g.sendTimes[sender] = kept
	return len(kept) < g.Restrictions.MaxMessagesPerMinute
}

// RecordSend appends an accepted message to history and the sender's
// rate-limit window, and bumps the sender's activity counters. Call
// only after Validate has accepted the message.
func (g *Group) RecordSend(msg raidmq.CollaborationMessage, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sendTimes[msg.Sender] = append(g.sendTimes[msg.Sender], now)

	g.history = append(g.history, msg)
	if len(g.history) > maxHistory {
		g.history = g.history[len(g.history)-maxHistory:]
	}

	if m, ok := g.Members[msg.Sender]; ok {
		m.MessageCount++
		m.LastActivity = now
	}
}

// History returns a snapshot of the group's bounded message history.
func (g *Group) History() []raidmq.CollaborationMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]raidmq.CollaborationMessage, len(g.history))
	copy(out, g.history)
	return out
}

// PruneExpired drops expired entries from the FIFO history.
func (g *Group) PruneExpired(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	kept := g.history[:0]
	for _, msg := range g.history {
		if !msg.IsExpired(now) {
			kept = append(kept, msg)
		}
	}
	g.history = kept
}

// Inactive reports whether every member has been inactive for longer
// than d.
func (g *Group) Inactive(now time.Time, d time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.Members {
		if now.Sub(m.LastActivity) <= d {
			return false
		}
	}
	return true
}

// ChannelName returns the pub/sub topic for a group (spec.md §6).
func ChannelName(groupID string) string {
	return "collab:" + groupID
}
