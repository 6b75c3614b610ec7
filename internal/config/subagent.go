package config

import (
	"fmt"
	"os"
)

// SubAgentConfig holds a sub-agent container's runtime configuration,
// loaded entirely from environment variables the orchestrator injects at
// container start. Validate fails fast when the profile name, broker
// address, LLM provider or LLM model is missing, or when collaboration is
// enabled without a group ID.
type SubAgentConfig struct {
	// ProfileName identifies which profile this container was started for
	// (from RAID_SUB_AGENT_PROFILE).
	ProfileName string

	// RedisAddr is the broker address (from RAID_REDIS_ADDR).
	RedisAddr string

	// CollaborationGroupID is non-empty when this sub-agent is part of a
	// collaboration group (from RAID_COLLABORATION_GROUP_ID).
	CollaborationGroupID string

	// CollaborationEnabled mirrors RAID_COLLABORATION_ENABLED.
	CollaborationEnabled bool

	// LLMProvider/LLMModel/LLMBaseURL/LLMAPIKeyEnv mirror the
	// RAID_LLM_* vars the control process's BrokerEnv passes through
	// (from RAID_LLM_PROVIDER, RAID_LLM_MODEL, RAID_LLM_BASE_URL,
	// RAID_LLM_API_KEY_ENV).
	LLMProvider  string
	LLMModel     string
	LLMBaseURL   string
	LLMAPIKeyEnv string
}

// LoadSubAgentConfig reads and validates configuration from environment
// variables set by the container orchestrator adapter at launch time.
func LoadSubAgentConfig() (*SubAgentConfig, error) {
	cfg := &SubAgentConfig{
		ProfileName:          os.Getenv("RAID_SUB_AGENT_PROFILE"),
		RedisAddr:            os.Getenv("RAID_REDIS_ADDR"),
		CollaborationGroupID: os.Getenv("RAID_COLLABORATION_GROUP_ID"),
		CollaborationEnabled: os.Getenv("RAID_COLLABORATION_ENABLED") == "true",
		LLMProvider:          os.Getenv("RAID_LLM_PROVIDER"),
		LLMModel:             os.Getenv("RAID_LLM_MODEL"),
		LLMBaseURL:           os.Getenv("RAID_LLM_BASE_URL"),
		LLMAPIKeyEnv:         os.Getenv("RAID_LLM_API_KEY_ENV"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required fields are present and internally
// consistent, returning the first error encountered.
func (c *SubAgentConfig) Validate() error {
	if c.ProfileName == "" {
		return fmt.Errorf("RAID_SUB_AGENT_PROFILE environment variable is required")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("RAID_REDIS_ADDR environment variable is required")
	}

	if c.CollaborationEnabled && c.CollaborationGroupID == "" {
		return fmt.Errorf("RAID_COLLABORATION_ENABLED is set but RAID_COLLABORATION_GROUP_ID is empty")
	}

	if c.LLMProvider == "" {
		return fmt.Errorf("RAID_LLM_PROVIDER environment variable is required")
	}
	if c.LLMModel == "" {
		return fmt.Errorf("RAID_LLM_MODEL environment variable is required")
	}

	return nil
}
