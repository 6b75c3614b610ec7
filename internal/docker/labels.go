package docker

// Label keys used to tag every container raid creates, so orphaned
// containers can be discovered and reaped even across process restarts.
const (
	LabelProject     = "raid.project"
	LabelProfile     = "raid.profile"
	LabelPersistent  = "raid.persistent"
	LabelComponent   = "raid.component"
	LabelAgentName   = "raid.agent.name"
)

// AgentImageLabel marks a Docker image as a valid sub-agent image,
// distinguishing raid-built images from unrelated images on the host.
const AgentImageLabel = "org.raid.agent"

// BuildLabels creates the standard label set attached to every sub-agent
// container. Neither the container orchestrator adapter nor the lifecycle
// supervisor reads these labels back: containers are located by their
// canonical name, and supervisor state lives in memory only.
func BuildLabels(profileName, agentName string, persistent bool) map[string]string {
	labels := map[string]string{
		LabelProject: "true",
		LabelProfile: profileName,
		LabelAgentName: agentName,
	}
	if persistent {
		labels[LabelPersistent] = "true"
	}
	return labels
}

// SubAgentContainerName returns the canonical, idempotent container name
// for a sub-agent instance of a given profile. Calling this twice for the
// same profile+agentName always yields the same name, which is what lets
// ensure_running treat "container already exists" as success rather than
// as a new launch (spec.md §4.2 "idempotent per canonical name").
func SubAgentContainerName(profileName, agentName string) string {
	if agentName == "" {
		return "raid-subagent-" + profileName
	}
	return "raid-subagent-" + profileName + "-" + agentName
}
