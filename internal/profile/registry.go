package profile

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry is the Profile Registry (C1). It is read-mostly; writes are
// serialized via a registry-level mutex, matching spec.md §5's "Profile
// Registry is read-mostly; writes are serialized via a registry-level
// mutex."
type Registry struct {
	mu          sync.RWMutex
	profiles    map[string]*Profile
	profilesDir string
	knownTools  map[string]bool
	rng         *rand.Rand
}

// NewRegistry constructs an empty Registry backed by profilesDir for
// Save/persisted Load, validating tool references against knownTools.
func NewRegistry(profilesDir string, knownTools map[string]bool) *Registry {
	return &Registry{
		profiles:    make(map[string]*Profile),
		profilesDir: profilesDir,
		knownTools:  knownTools,
		rng:         rand.New(rand.NewSource(1)),
	}
}

// LoadAll reads every *.yaml/*.yml file in the registry's profilesDir
// into memory. Missing directories are treated as "no profiles yet",
// not an error.
func (r *Registry) LoadAll() error {
	entries, err := os.ReadDir(r.profilesDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read profiles dir: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.profilesDir, name))
		if err != nil {
			return fmt.Errorf("read profile %s: %w", name, err)
		}
		p, err := FromYAML(data)
		if err != nil {
			return fmt.Errorf("parse profile %s: %w", name, err)
		}
		if err := p.Validate(r.knownTools); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
		r.profiles[p.Name] = p
	}
	return nil
}

// Load returns the named profile, or ErrNotFound.
func (r *Registry) Load(name string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// Save stores a profile in the in-memory registry and, if a profilesDir
// is configured, persists it to disk. Save always overwrites; the
// registry itself never prompts for confirmation (spec.md §4.1).
func (r *Registry) Save(p *Profile) error {
	if err := p.Validate(r.knownTools); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Name] = p

	if r.profilesDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.profilesDir, 0o755); err != nil {
		return fmt.Errorf("create profiles dir: %w", err)
	}
	data, err := p.ToYAML()
	if err != nil {
		return err
	}
	path := filepath.Join(r.profilesDir, p.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write profile %s: %w", p.Name, err)
	}
	return nil
}

// List returns every known profile name, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a snapshot copy of the name→Profile map.
func (r *Registry) All() map[string]*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Profile, len(r.profiles))
	for k, v := range r.profiles {
		out[k] = v
	}
	return out
}

// SuggestRole applies the deterministic keyword map to goalText.
func (r *Registry) SuggestRole(goalText string) string {
	return SuggestRole(goalText)
}

// InstantiateDynamic creates a Profile with a fresh, unique name derived
// from role (or a suggested role, if empty) and a short random suffix,
// with a system prompt produced from the role template.
func (r *Registry) InstantiateDynamic(goalText, role string, modelOptions ModelOptions) (*Profile, error) {
	if role == "" {
		role = r.SuggestRole(goalText)
	}
	tmpl, ok := LookupRoleTemplate(role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidProfile, role)
	}

	name := fmt.Sprintf("dynamic_%s_%s", role, r.randomSuffix())
	p := &Profile{
		Name:         name,
		Description:  fmt.Sprintf("dynamically instantiated %s for goal: %s", role, goalText),
		Version:      "1.0",
		LLMConfig:    modelOptions,
		Tools:        append([]string(nil), tmpl.Tools...),
		SystemPrompt: tmpl.SystemPrompt(goalText),
		DockerConfig: DockerConfig{
			BaseImage:  "python:3.11-slim",
			WorkingDir: "/app",
		},
		LifecycleConfig: &LifecycleConfig{
			AutoCleanup: true,
		},
	}

	if err := r.Save(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Registry) randomSuffix() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, 8)
	for i := range b {
		b[i] = alphabet[r.rng.Intn(len(alphabet))]
	}
	return string(b)
}
