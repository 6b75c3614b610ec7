// Package metatools implements the control flavour's meta-tool set
// (spec.md §4.5): discover_profiles, dispatch, create_specialized_worker,
// and create_collaborative_group. It is the wiring point between the
// reasoning engine and the profile registry, container runtime,
// lifecycle supervisor, and dispatch fabric.
package metatools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/raid/internal/containerrt"
	"github.com/dyluth/raid/internal/dispatch"
	"github.com/dyluth/raid/internal/profile"
	"github.com/dyluth/raid/internal/supervisor"
)

// DefaultDispatchTimeout matches spec.md §5's stated default.
const DefaultDispatchTimeout = 30 * time.Second

// BrokerEnv supplies the env vars every launched container needs to
// reach the broker (spec.md §6's "broker host/port variables").
type BrokerEnv func(profileName string, collaborationGroupID string) []string

// MetaTools wires the control-flavour tool set to the system's core
// components.
type MetaTools struct {
	Registry   *profile.Registry
	Containers *containerrt.Adapter
	Supervisor *supervisor.Supervisor
	Queue      *dispatch.Queue
	Collab     *dispatch.Manager
	BrokerEnv  BrokerEnv
}

// Execute implements reasoning.ToolExecutor.
func (m *MetaTools) Execute(ctx context.Context, name string, parameters map[string]interface{}) string {
	switch name {
	case "discover_profiles":
		return m.discoverProfiles()
	case "dispatch":
		return m.dispatch(ctx, parameters)
	case "create_specialized_worker":
		return m.createSpecializedWorker(ctx, parameters)
	case "create_collaborative_group":
		return m.createCollaborativeGroup(ctx, parameters)
	case "conclude_success", "conclude_failure":
		// Terminal actions are intercepted by the engine before Execute
		// is ever called; reaching here would be a caller bug, not a
		// missing-tool condition.
		return ""
	default:
		return fmt.Sprintf("Error: tool '%s' not found", name)
	}
}

func (m *MetaTools) discoverProfiles() string {
	names := m.Registry.List()
	if len(names) == 0 {
		return "No profiles are currently registered."
	}
	return "Available profiles: " + strings.Join(names, ", ")
}

func (m *MetaTools) dispatch(ctx context.Context, params map[string]interface{}) string {
	profileName := stringParam(params, "profile")
	if profileName == "" {
		return "Error: dispatch requires a 'profile' parameter"
	}
	prompt := stringParam(params, "prompt")

	timeout := DefaultDispatchTimeout
	if secs, ok := numberParam(params, "timeout"); ok {
		timeout = time.Duration(secs * float64(time.Second))
	}

	if _, err := m.Registry.Load(profileName); err != nil {
		return fmt.Sprintf("Error: %s", err)
	}

	result, err := m.Queue.Dispatch(ctx, profileName, prompt, nil, nil, timeout)
	if err != nil {
		return fmt.Sprintf("Error: dispatch to %s failed: %s", profileName, err)
	}

	switch result.Status {
	case "success":
		return result.Result
	case "timeout":
		return fmt.Sprintf("Error: dispatch to %s timed out", profileName)
	default:
		return fmt.Sprintf("Error: %s", result.Error)
	}
}

func (m *MetaTools) createSpecializedWorker(ctx context.Context, params map[string]interface{}) string {
	goal := stringParam(params, "goal")
	if goal == "" {
		return "Error: create_specialized_worker requires a 'goal' parameter"
	}
	role := stringParam(params, "role")

	p, err := m.Registry.InstantiateDynamic(goal, role, profile.ModelOptions{})
	if err != nil {
		return fmt.Sprintf("Error: could not instantiate worker profile: %s", err)
	}

	if err := m.launchWorker(ctx, p, ""); err != nil {
		return fmt.Sprintf("Error: could not launch worker %s: %s", p.Name, err)
	}

	return fmt.Sprintf("Created worker profile %s", p.Name)
}

func (m *MetaTools) createCollaborativeGroup(ctx context.Context, params map[string]interface{}) string {
	goal := stringParam(params, "goal")
	if goal == "" {
		return "Error: create_collaborative_group requires a 'goal' parameter"
	}
	roles := stringSliceParam(params, "roles")
	if len(roles) == 0 {
		return "Error: create_collaborative_group requires a non-empty 'roles' array"
	}
	mode := stringParam(params, "mode")

	restrictions, err := dispatch.RestrictionsForMode(mode)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	if keys := stringSliceParam(params, "data_keys"); len(keys) > 0 {
		allowed := make(map[string]bool, len(keys))
		for _, k := range keys {
			allowed[k] = true
		}
		restrictions.AllowedDataKeys = allowed
	}

	group := m.Collab.CreateGroup(fmt.Sprintf("group for: %s", goal), restrictions)

	var launched []string
	for _, role := range roles {
		p, err := m.Registry.InstantiateDynamic(goal, role, profile.ModelOptions{})
		if err != nil {
			return fmt.Sprintf("Error: could not instantiate worker for role %s: %s", role, err)
		}
		group.AddMember(p.Name)
		if err := m.launchWorker(ctx, p, group.GroupID); err != nil {
			return fmt.Sprintf("Error: could not launch worker %s: %s", p.Name, err)
		}
		launched = append(launched, p.Name)
	}

	// Sub-agent containers run their own Manager and never see this
	// in-memory group, so its membership/restrictions must be readable
	// back from the broker (dispatch.Manager.LoadGroup).
	if err := m.Collab.SyncGroup(ctx, group); err != nil {
		return fmt.Sprintf("Error: could not publish group membership: %s", err)
	}

	return fmt.Sprintf("Created collaborative group %s with members: %s", group.GroupID, strings.Join(launched, ", "))
}

// launchWorker builds the profile's image if needed, starts its
// container, and registers it with the supervisor. collaborationGroupID
// is empty for standalone workers.
func (m *MetaTools) launchWorker(ctx context.Context, p *profile.Profile, collaborationGroupID string) error {
	if _, err := m.Containers.EnsureImage(ctx, p); err != nil {
		return err
	}

	var env []string
	if m.BrokerEnv != nil {
		env = m.BrokerEnv(p.Name, collaborationGroupID)
	}

	handle, err := m.Containers.EnsureRunning(ctx, p, env)
	if err != nil {
		return err
	}

	if !m.Supervisor.Register(p.Name, handle, p.Name, p.Persistent(), p.ExcludeFromCount()) {
		return fmt.Errorf("worker capacity reached, could not register %s", p.Name)
	}
	return nil
}

func stringParam(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func numberParam(params map[string]interface{}, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringSliceParam(params map[string]interface{}, key string) []string {
	raw, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
