package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildLabels(t *testing.T) {
	labels := BuildLabels("calculator_agent", "agent-1", false)

	assert.Equal(t, "true", labels[LabelProject])
	assert.Equal(t, "calculator_agent", labels[LabelProfile])
	assert.Equal(t, "agent-1", labels[LabelAgentName])
	assert.NotContains(t, labels, LabelPersistent)
}

func TestBuildLabels_Persistent(t *testing.T) {
	labels := BuildLabels("calculator_agent", "agent-1", true)
	assert.Equal(t, "true", labels[LabelPersistent])
}

func TestSubAgentContainerName(t *testing.T) {
	assert.Equal(t, "raid-subagent-calculator_agent", SubAgentContainerName("calculator_agent", ""))
	assert.Equal(t, "raid-subagent-calculator_agent-agent-1", SubAgentContainerName("calculator_agent", "agent-1"))
}

func TestSubAgentContainerName_Idempotent(t *testing.T) {
	a := SubAgentContainerName("research_agent", "w1")
	b := SubAgentContainerName("research_agent", "w1")
	assert.Equal(t, a, b)
}
