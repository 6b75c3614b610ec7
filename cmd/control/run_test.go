package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyluth/raid/internal/config"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"goal failed", errors.New("goal failed"), 1},
		{"config error", fmt.Errorf("bad config: %w", errConfig), 2},
		{"broker unreachable", fmt.Errorf("no redis: %w", errBroker), 3},
		{"container runtime unreachable", fmt.Errorf("no docker: %w", errContainerRuntime), 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCodeFor(tc.err))
		})
	}
}

func TestBrokerEnv_IncludesProfileAndRedisAddr(t *testing.T) {
	cfg := &config.RaidConfig{Redis: config.RedisConfig{Addr: "localhost:6379"}, LLMBackend: config.LLMBackendConfig{Provider: "ollama", Model: "llama3"}}
	env := brokerEnv(cfg)("data_analyst", "")

	assert.Contains(t, env, "RAID_SUB_AGENT_PROFILE=data_analyst")
	assert.Contains(t, env, "RAID_REDIS_ADDR=localhost:6379")
	assert.NotContains(t, env, "RAID_COLLABORATION_ENABLED=true")
}

func TestBrokerEnv_IncludesCollaborationVarsWhenGrouped(t *testing.T) {
	cfg := &config.RaidConfig{Redis: config.RedisConfig{Addr: "localhost:6379"}, LLMBackend: config.LLMBackendConfig{Provider: "ollama", Model: "llama3"}}
	env := brokerEnv(cfg)("data_analyst", "collab_1_abc123")

	assert.Contains(t, env, "RAID_COLLABORATION_ENABLED=true")
	assert.Contains(t, env, "RAID_COLLABORATION_GROUP_ID=collab_1_abc123")
}

func TestJoinOrNone_Empty(t *testing.T) {
	assert.Contains(t, joinOrNone(nil), "none yet")
}

func TestJoinOrNone_JoinsWithComma(t *testing.T) {
	assert.Equal(t, "a, b, c", joinOrNone([]string{"a", "b", "c"}))
}
