package metatools

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/raid/internal/dispatch"
	"github.com/dyluth/raid/internal/profile"
	"github.com/dyluth/raid/internal/supervisor"
	"github.com/dyluth/raid/pkg/raidmq"
)

type noopRuntime struct{}

func (noopRuntime) IsRunning(ctx context.Context, handle string) bool   { return true }
func (noopRuntime) Stop(ctx context.Context, handle string) error      { return nil }
func (noopRuntime) Remove(ctx context.Context, handle string) error    { return nil }
func (noopRuntime) PruneUnusedImages(ctx context.Context, n int) error { return nil }

func newTestMetaTools(t *testing.T) (*MetaTools, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	registry := profile.NewRegistry("", map[string]bool{"calculator": true})
	require.NoError(t, registry.Save(&profile.Profile{
		Name:    "data_analyst",
		Version: "1.0",
		DockerConfig: profile.DockerConfig{
			BaseImage: "python:3.11-slim",
		},
	}))

	sup := supervisor.New(supervisor.DefaultConfig(), noopRuntime{})

	return &MetaTools{
		Registry:   registry,
		Supervisor: sup,
		Queue:      dispatch.NewQueue(rdb),
		Collab:     dispatch.NewManager(rdb),
	}, rdb
}

func TestMetaTools_DiscoverProfiles_ListsRegistered(t *testing.T) {
	m, _ := newTestMetaTools(t)
	out := m.Execute(context.Background(), "discover_profiles", nil)
	assert.Contains(t, out, "data_analyst")
}

func TestMetaTools_Dispatch_UnknownProfile(t *testing.T) {
	m, _ := newTestMetaTools(t)
	out := m.Execute(context.Background(), "dispatch", map[string]interface{}{
		"profile": "no_such_profile",
		"prompt":  "go",
	})
	assert.Contains(t, out, "Error")
}

func TestMetaTools_Dispatch_SuccessRoundTrip(t *testing.T) {
	m, rdb := newTestMetaTools(t)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		q := dispatch.NewQueue(rdb)
		task, err := q.ReceiveTask(ctx, "data_analyst", 2*time.Second)
		require.NoError(t, err)
		require.NotNil(t, task)
		result := raidmq.NewSuccessResult(task.TaskID, task.CorrelationID, "analysis complete", nil)
		require.NoError(t, q.SendResult(ctx, "data_analyst", result))
	}()

	out := m.Execute(ctx, "dispatch", map[string]interface{}{
		"profile": "data_analyst",
		"prompt":  "analyze this",
		"timeout": float64(3),
	})
	<-done
	assert.Equal(t, "analysis complete", out)
}

func TestMetaTools_CreateCollaborativeGroup_RequiresRoles(t *testing.T) {
	m, _ := newTestMetaTools(t)
	out := m.Execute(context.Background(), "create_collaborative_group", map[string]interface{}{
		"goal": "analyze revenue",
	})
	assert.Contains(t, out, "Error")
}

func TestMetaTools_UnknownTool(t *testing.T) {
	m, _ := newTestMetaTools(t)
	out := m.Execute(context.Background(), "not_a_real_tool", nil)
	assert.Equal(t, "Error: tool 'not_a_real_tool' not found", out)
}
