package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RaidConfig represents the top-level raid.yml configuration for the
// control process: Redis connection, Docker runtime, capacity and the
// reaping timeouts used by the lifecycle supervisor.
type RaidConfig struct {
	Version     string            `yaml:"version"`
	Redis       RedisConfig       `yaml:"redis"`
	Docker      DockerConfig      `yaml:"docker,omitempty"`
	Capacity    *CapacityConfig   `yaml:"capacity,omitempty"`
	LLMBackend  LLMBackendConfig  `yaml:"llm_backend"`
	ProfilesDir string            `yaml:"profiles_dir,omitempty"`
}

// RedisConfig specifies how the control process reaches the broker.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// DockerConfig specifies how the container orchestrator adapter reaches
// the Docker daemon. An empty Host means "use DOCKER_HOST / the default
// socket", matching docker/docker client.FromEnv behaviour.
type DockerConfig struct {
	Host string `yaml:"host,omitempty"`
}

// CapacityConfig bounds the non-excluded sub-agent population and the
// reap intervals used by the lifecycle supervisor.
type CapacityConfig struct {
	MaxSubAgents     *int   `yaml:"max_sub_agents,omitempty"`
	IdleTimeout      string `yaml:"idle_timeout,omitempty"`
	HeartbeatTimeout string `yaml:"heartbeat_timeout,omitempty"`
	ReapInterval     string `yaml:"reap_interval,omitempty"`
}

// LLMBackendConfig selects and configures the model backend the
// reasoning engine calls through internal/llmprovider. Provider is
// "openai" or "ollama" (spec.md §1 treats the concrete backend as a
// pluggable external capability).
type LLMBackendConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

const (
	defaultMaxSubAgents     = 10
	defaultIdleTimeout      = "5m"
	defaultHeartbeatTimeout = "30s"
	defaultReapInterval     = "10s"
)

// Validate performs strict validation on the configuration, filling in
// defaults for anything the operator left unset.
func (c *RaidConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}

	switch c.LLMBackend.Provider {
	case "openai":
		if c.LLMBackend.APIKeyEnv == "" {
			c.LLMBackend.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "ollama":
		if c.LLMBackend.BaseURL == "" {
			c.LLMBackend.BaseURL = "http://localhost:11434"
		}
	case "":
		return fmt.Errorf("llm_backend.provider is required")
	default:
		return fmt.Errorf("unsupported llm_backend.provider: %s", c.LLMBackend.Provider)
	}

	if c.Capacity == nil {
		c.Capacity = &CapacityConfig{}
	}
	if c.Capacity.MaxSubAgents == nil {
		n := defaultMaxSubAgents
		c.Capacity.MaxSubAgents = &n
	}
	if *c.Capacity.MaxSubAgents < 1 {
		return fmt.Errorf("capacity.max_sub_agents must be >= 1, got %d", *c.Capacity.MaxSubAgents)
	}
	if c.Capacity.IdleTimeout == "" {
		c.Capacity.IdleTimeout = defaultIdleTimeout
	}
	if c.Capacity.HeartbeatTimeout == "" {
		c.Capacity.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Capacity.ReapInterval == "" {
		c.Capacity.ReapInterval = defaultReapInterval
	}

	if _, err := time.ParseDuration(c.Capacity.IdleTimeout); err != nil {
		return fmt.Errorf("capacity.idle_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Capacity.HeartbeatTimeout); err != nil {
		return fmt.Errorf("capacity.heartbeat_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Capacity.ReapInterval); err != nil {
		return fmt.Errorf("capacity.reap_interval: %w", err)
	}

	if c.ProfilesDir == "" {
		c.ProfilesDir = "./profiles"
	}

	return nil
}

// IdleTimeoutDuration parses the already-validated idle timeout string.
func (c *RaidConfig) IdleTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Capacity.IdleTimeout)
	return d
}

// HeartbeatTimeoutDuration parses the already-validated heartbeat timeout string.
func (c *RaidConfig) HeartbeatTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Capacity.HeartbeatTimeout)
	return d
}

// ReapIntervalDuration parses the already-validated reap interval string.
func (c *RaidConfig) ReapIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Capacity.ReapInterval)
	return d
}

// MaxSubAgents returns the configured capacity bound.
func (c *RaidConfig) MaxSubAgents() int {
	return *c.Capacity.MaxSubAgents
}

// Load reads and validates raid.yml from the specified path.
func Load(path string) (*RaidConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg RaidConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
