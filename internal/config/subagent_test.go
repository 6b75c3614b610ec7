package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSubAgentConfig_RequiresProfile(t *testing.T) {
	t.Setenv("RAID_SUB_AGENT_PROFILE", "")
	t.Setenv("RAID_REDIS_ADDR", "localhost:6379")
	t.Setenv("RAID_LLM_PROVIDER", "ollama")
	t.Setenv("RAID_LLM_MODEL", "llama3")
	_, err := LoadSubAgentConfig()
	require.Error(t, err)
}

func TestLoadSubAgentConfig_CollaborationRequiresGroupID(t *testing.T) {
	t.Setenv("RAID_SUB_AGENT_PROFILE", "calculator_agent")
	t.Setenv("RAID_REDIS_ADDR", "localhost:6379")
	t.Setenv("RAID_LLM_PROVIDER", "ollama")
	t.Setenv("RAID_LLM_MODEL", "llama3")
	t.Setenv("RAID_COLLABORATION_ENABLED", "true")
	t.Setenv("RAID_COLLABORATION_GROUP_ID", "")
	_, err := LoadSubAgentConfig()
	require.Error(t, err)
}

func TestLoadSubAgentConfig_RequiresLLMProvider(t *testing.T) {
	t.Setenv("RAID_SUB_AGENT_PROFILE", "calculator_agent")
	t.Setenv("RAID_REDIS_ADDR", "localhost:6379")
	t.Setenv("RAID_LLM_PROVIDER", "")
	t.Setenv("RAID_LLM_MODEL", "llama3")
	_, err := LoadSubAgentConfig()
	require.Error(t, err)
}

func TestLoadSubAgentConfig_Success(t *testing.T) {
	t.Setenv("RAID_SUB_AGENT_PROFILE", "calculator_agent")
	t.Setenv("RAID_REDIS_ADDR", "localhost:6379")
	t.Setenv("RAID_COLLABORATION_ENABLED", "")
	t.Setenv("RAID_LLM_PROVIDER", "ollama")
	t.Setenv("RAID_LLM_MODEL", "llama3")
	cfg, err := LoadSubAgentConfig()
	require.NoError(t, err)
	require.Equal(t, "calculator_agent", cfg.ProfileName)
	require.Equal(t, "ollama", cfg.LLMProvider)
}
