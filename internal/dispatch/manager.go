package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dyluth/raid/pkg/raidmq"
)

// groupAgeThreshold and groupInactivityInterval implement spec.md
// §4.4's default cleanup thresholds: "every member inactive for 1h AND
// group age exceeds 24h".
const (
	groupAgeThreshold       = 24 * time.Hour
	groupInactivityInterval = 1 * time.Hour
)

// Manager owns every live CollaborationGroup and mediates all publish
// traffic through each group's validator (spec.md §4.4, §5 "Collaboration
// rate-limit state and per-group history are mutated only from within
// the group's validator path under a group mutex").
type Manager struct {
	mu      sync.RWMutex
	rdb     *redis.Client
	groups  map[string]*Group
	counter int
}

// NewManager constructs an empty collaboration manager.
func NewManager(rdb *redis.Client) *Manager {
	return &Manager{rdb: rdb, groups: make(map[string]*Group)}
}

// CreateGroup allocates a new group with a fresh ID, grounded on the
// original's `collab_<counter>_<uuid8>` naming (config/collaboration.py
// CollaborationManager.create_collaboration_group).
func (m *Manager) CreateGroup(groupName string, restrictions Restrictions) *Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	groupID := fmt.Sprintf("collab_%d_%s", m.counter, uuid.NewString()[:8])
	g := NewGroup(groupID, groupName, restrictions)
	m.groups[groupID] = g
	return g
}

// GetGroup looks up a group by ID in this process's local map. The
// control process is the only one that ever calls CreateGroup, so a
// sub-agent's own Manager must reach the group through LoadGroup
// instead.
func (m *Manager) GetGroup(groupID string) (*Group, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[groupID]
	return g, ok
}

// groupMetaKey is the broker key the control process publishes a
// group's membership/restrictions under, so that sub-agent processes —
// which never call CreateGroup themselves — can validate their own
// publishes the same way the control process does.
func groupMetaKey(groupID string) string {
	return "collab:meta:" + groupID
}

type groupMeta struct {
	GroupName    string       `json:"group_name"`
	Restrictions Restrictions `json:"restrictions"`
	Members      []string     `json:"members"`
}

// SyncGroup persists g's name, restrictions, and current membership to
// the broker. Call after CreateGroup and after every AddMember, so that
// sub-agent processes calling LoadGroup see up-to-date membership.
func (m *Manager) SyncGroup(ctx context.Context, g *Group) error {
	g.mu.Lock()
	members := make([]string, 0, len(g.Members))
	for name := range g.Members {
		members = append(members, name)
	}
	meta := groupMeta{GroupName: g.GroupName, Restrictions: g.Restrictions, Members: members}
	g.mu.Unlock()

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal group metadata: %w", err)
	}
	if err := m.rdb.Set(ctx, groupMetaKey(g.GroupID), data, groupAgeThreshold).Err(); err != nil {
		return fmt.Errorf("persist group metadata: %w", err)
	}
	return nil
}

// LoadGroup fetches a group's metadata from the broker and reconstructs
// a local Group for validation purposes, caching it so repeated
// Publish/Handle calls don't round-trip to the broker every time. Its
// rate-limit and history state start empty; each process's sliding
// window is therefore approximate across the fleet, not a single
// shared counter.
func (m *Manager) LoadGroup(ctx context.Context, groupID string) (*Group, error) {
	if g, ok := m.GetGroup(groupID); ok {
		return g, nil
	}

	data, err := m.rdb.Get(ctx, groupMetaKey(groupID)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("collaboration group %s not found: %w", groupID, err)
	}
	var meta groupMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode group metadata: %w", err)
	}

	g := NewGroup(groupID, meta.GroupName, meta.Restrictions)
	for _, name := range meta.Members {
		g.AddMember(name)
	}

	m.mu.Lock()
	m.groups[groupID] = g
	m.mu.Unlock()
	return g, nil
}

// ListGroups returns every live group.
func (m *Manager) ListGroups() []*Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out
}

// Publish validates msg against its group, records it on acceptance,
// and publishes it to the group's pub/sub channel. Rejections are
// dropped and never silently reshaped (spec.md §4.4); the caller gets
// the rejection reason back.
func (m *Manager) Publish(ctx context.Context, msg raidmq.CollaborationMessage) error {
	g, err := m.LoadGroup(ctx, msg.GroupID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := g.Validate(msg, now); err != nil {
		slog.Warn("rejected collaboration message", "component", "dispatch", "sender", msg.Sender, "group_id", msg.GroupID, "error", err)
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal collaboration message: %w", err)
	}
	if err := m.rdb.Publish(ctx, ChannelName(msg.GroupID), data).Err(); err != nil {
		return fmt.Errorf("publish collaboration message: %w", err)
	}

	g.RecordSend(msg, now)
	return nil
}

// Subscribe opens a pub/sub subscription to a group's channel. Callers
// should pass received payloads to DecodeMessage before acting on them —
// never eval/execute the payload (spec.md §9).
func (m *Manager) Subscribe(ctx context.Context, groupID string) *redis.PubSub {
	return m.rdb.Subscribe(ctx, ChannelName(groupID))
}

// DecodeMessage strictly JSON-decodes a pub/sub payload into a
// CollaborationMessage. This is the only deserialization path for
// collaboration traffic in this codebase — no eval, no reflection-based
// dynamic dispatch on the payload.
func DecodeMessage(payload string) (raidmq.CollaborationMessage, error) {
	var msg raidmq.CollaborationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return raidmq.CollaborationMessage{}, fmt.Errorf("decode collaboration message: %w", err)
	}
	return msg, nil
}

// CleanupInactiveGroups removes every group whose members have all been
// inactive for groupInactivityInterval and whose age exceeds
// groupAgeThreshold, returning the removed group IDs.
func (m *Manager) CleanupInactiveGroups(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for id, g := range m.groups {
		if now.Sub(g.CreatedAt) <= groupAgeThreshold {
			continue
		}
		if !g.Inactive(now, groupInactivityInterval) {
			continue
		}
		delete(m.groups, id)
		removed = append(removed, id)
	}
	return removed
}
