package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knownTools() map[string]bool {
	return map[string]bool{"calculator": true, "read_file": true, "run_bash_command": true, "list_files": true}
}

func TestRegistry_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, knownTools())

	p := &Profile{
		Name:         "calculator_agent",
		Version:      "1.0",
		Tools:        []string{"calculator"},
		SystemPrompt: "You compute things.",
		DockerConfig: DockerConfig{BaseImage: "python:3.11-slim"},
	}
	require.NoError(t, r.Save(p))

	loaded, err := r.Load("calculator_agent")
	require.NoError(t, err)
	assert.Equal(t, p.Name, loaded.Name)

	// Persisted to disk too.
	r2 := NewRegistry(dir, knownTools())
	require.NoError(t, r2.LoadAll())
	_, err = r2.Load("calculator_agent")
	require.NoError(t, err)
}

func TestRegistry_Load_NotFound(t *testing.T) {
	r := NewRegistry(t.TempDir(), knownTools())
	_, err := r.Load("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Save_RejectsUnknownTool(t *testing.T) {
	r := NewRegistry(t.TempDir(), knownTools())
	p := &Profile{Name: "x", Tools: []string{"nonexistent"}, DockerConfig: DockerConfig{BaseImage: "python:3.11"}}
	err := r.Save(p)
	require.ErrorIs(t, err, ErrInvalidProfile)
}

func TestRegistry_InstantiateDynamic_UniqueNames(t *testing.T) {
	r := NewRegistry(t.TempDir(), knownTools())
	p1, err := r.InstantiateDynamic("what's the budget for this project", "", ModelOptions{Provider: "anthropic", Model: "claude"})
	require.NoError(t, err)
	p2, err := r.InstantiateDynamic("what's the budget for this project", "", ModelOptions{Provider: "anthropic", Model: "claude"})
	require.NoError(t, err)

	assert.NotEqual(t, p1.Name, p2.Name)
	assert.Contains(t, p1.Name, "financial_analyst")
}

func TestSuggestRole_KeywordMap(t *testing.T) {
	assert.Equal(t, "financial_analyst", SuggestRole("What is the budget for this purchase?"))
	assert.Equal(t, "data_analyst", SuggestRole("Find the trend in this dataset"))
	assert.Equal(t, "research_analyst", SuggestRole("Please investigate this topic"))
	assert.Equal(t, "quality_analyst", SuggestRole("Verify this result is accurate"))
	assert.Equal(t, "problem_solver", SuggestRole("Do something unrelated"))
}

func TestBuildContainerSpec_Deterministic(t *testing.T) {
	p := &Profile{
		Name:    "calculator_agent",
		Version: "1.0",
		DockerConfig: DockerConfig{
			BaseImage:          "python:3.11-slim",
			AdditionalPackages: []string{"curl"},
		},
	}

	spec1 := BuildContainerSpec(p)
	spec2 := BuildContainerSpec(p)
	assert.Equal(t, spec1.Dockerfile, spec2.Dockerfile)
	assert.Contains(t, spec1.Dockerfile, "RAID_SUB_AGENT_PROFILE=calculator_agent")
	assert.Contains(t, spec1.Dockerfile, "python3-pip")
	assert.Equal(t, "true", spec1.Labels["org.raid.agent"])
}

func TestImageTag(t *testing.T) {
	p := &Profile{Name: "calculator_agent", Version: "1.0"}
	assert.Equal(t, "raid-subagent-calculator_agent:1.0", ImageTag(p))
}

func TestRegistry_LoadAll_MissingDirIsNotError(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "missing"), knownTools())
	require.NoError(t, r.LoadAll())
	assert.Empty(t, r.List())
}
