// Package profile implements the Profile Registry (C1): it loads and
// serves worker profiles, synthesizes container build specs from them,
// and suggests or instantiates role-based profiles for goals that have
// no matching static profile.
package profile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ModelOptions describes a profile's model-backend configuration.
type ModelOptions struct {
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// DockerConfig describes a profile's container build/run options.
type DockerConfig struct {
	BaseImage            string            `yaml:"base_image"`
	WorkingDir            string            `yaml:"working_dir,omitempty"`
	ExposePort            int               `yaml:"expose_port,omitempty"`
	AdditionalPackages    []string          `yaml:"additional_packages,omitempty"`
	EnvironmentVariables  map[string]string `yaml:"environment_variables,omitempty"`
	Volumes               []string          `yaml:"volumes,omitempty"`
	PersistentStorage     bool              `yaml:"persistent_storage,omitempty"`
}

// LifecycleConfig describes a profile's reaping/capacity policy.
type LifecycleConfig struct {
	Persistent       bool `yaml:"persistent,omitempty"`
	AutoCleanup      bool `yaml:"auto_cleanup,omitempty"`
	ExcludeFromCount bool `yaml:"exclude_from_count,omitempty"`
}

// Profile is the static description of a worker type (spec.md §3, §6).
type Profile struct {
	Name            string           `yaml:"name"`
	Description     string           `yaml:"description,omitempty"`
	Version         string           `yaml:"version"`
	LLMConfig       ModelOptions     `yaml:"llm_config"`
	Tools           []string         `yaml:"tools"`
	SystemPrompt    string           `yaml:"system_prompt"`
	DockerConfig    DockerConfig     `yaml:"docker_config"`
	LifecycleConfig *LifecycleConfig `yaml:"lifecycle_config,omitempty"`
}

// Persistent reports whether this profile's workers are exempt from
// reaping.
func (p *Profile) Persistent() bool {
	return p.LifecycleConfig != nil && p.LifecycleConfig.Persistent
}

// ExcludeFromCount reports whether this profile's workers are exempt
// from capacity accounting.
func (p *Profile) ExcludeFromCount() bool {
	return p.LifecycleConfig != nil && p.LifecycleConfig.ExcludeFromCount
}

// AutoCleanup reports whether idle workers of this profile should be
// automatically cleaned up.
func (p *Profile) AutoCleanup() bool {
	return p.LifecycleConfig == nil || p.LifecycleConfig.AutoCleanup
}

// Validate checks the structural invariants spec.md §3 requires of a
// Profile, given the set of tool names the registry's tool registry can
// resolve.
func (p *Profile) Validate(knownTools map[string]bool) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if p.DockerConfig.BaseImage == "" {
		return fmt.Errorf("%w: docker_config.base_image is required", ErrInvalidProfile)
	}
	if knownTools != nil {
		for _, tool := range p.Tools {
			if !knownTools[tool] {
				return fmt.Errorf("%w: unknown tool %q", ErrInvalidProfile, tool)
			}
		}
	}
	return nil
}

// FromYAML parses a single profile document.
func FromYAML(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile yaml: %w", err)
	}
	return &p, nil
}

// ToYAML serializes a profile to its canonical YAML document form.
func (p *Profile) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal profile yaml: %w", err)
	}
	return data, nil
}
