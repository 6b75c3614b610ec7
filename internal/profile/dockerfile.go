package profile

import (
	"fmt"
	"sort"
	"strings"
)

// ContainerSpec is the deterministic build artifact produced from a
// Profile: a Dockerfile, a pinned requirements file, and the labels the
// resulting image must carry so the container orchestrator adapter can
// enumerate raid-built images (spec.md §4.1).
type ContainerSpec struct {
	Dockerfile   string
	Requirements string
	Labels       map[string]string
}

// pinnedRequirements mirrors the original implementation's static
// pinned dependency list (config/sub_agent_config.py generate_requirements_txt).
var pinnedRequirements = []string{
	"redis==5.0.1",
	"pydantic==2.5.3",
	"PyYAML==6.0.1",
	"httpx==0.26.0",
}

// BuildContainerSpec deterministically synthesizes the Dockerfile,
// requirements.txt, and labels for a profile's sub-agent image.
func BuildContainerSpec(p *Profile) ContainerSpec {
	var b strings.Builder

	fmt.Fprintf(&b, "FROM %s\n\n", p.DockerConfig.BaseImage)
	fmt.Fprintf(&b, "WORKDIR %s\n\n", workingDirOrDefault(p.DockerConfig.WorkingDir))

	packages := append([]string(nil), p.DockerConfig.AdditionalPackages...)
	if strings.Contains(p.DockerConfig.BaseImage, "slim") {
		packages = appendUnique(packages, "python3-pip")
	}
	if len(packages) > 0 {
		sort.Strings(packages)
		fmt.Fprintf(&b, "RUN apt-get update && apt-get install -y --no-install-recommends %s \\\n    && apt-get clean && rm -rf /var/lib/apt/lists/*\n\n", strings.Join(packages, " "))
	}

	b.WriteString("COPY requirements.txt .\n")
	b.WriteString("RUN pip install --no-cache-dir -r requirements.txt\n\n")
	b.WriteString("COPY src/ ./src/\n")
	fmt.Fprintf(&b, "COPY %s.yaml ./profile.yaml\n\n", p.Name)

	fmt.Fprintf(&b, "ENV PYTHONUNBUFFERED=1\n")
	fmt.Fprintf(&b, "ENV RAID_SUB_AGENT_PROFILE=%s\n", p.Name)

	envKeys := make([]string, 0, len(p.DockerConfig.EnvironmentVariables))
	for k := range p.DockerConfig.EnvironmentVariables {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		fmt.Fprintf(&b, "ENV %s=%s\n", k, p.DockerConfig.EnvironmentVariables[k])
	}
	b.WriteString("\n")

	if p.DockerConfig.ExposePort != 0 {
		fmt.Fprintf(&b, "EXPOSE %d\n\n", p.DockerConfig.ExposePort)
	}

	b.WriteString("CMD [\"python3\", \"-m\", \"raid.sub_agent.main\"]\n")

	labels := map[string]string{
		"org.raid.agent": "true",
		"raid.profile":   p.Name,
		"raid.version":   p.Version,
	}

	return ContainerSpec{
		Dockerfile:   b.String(),
		Requirements: strings.Join(pinnedRequirements, "\n") + "\n",
		Labels:       labels,
	}
}

func workingDirOrDefault(dir string) string {
	if dir == "" {
		return "/app"
	}
	return dir
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

// ImageTag returns the canonical tag for a profile's built image
// (spec.md §6: "raid-subagent-<profile_name>:<version>").
func ImageTag(p *Profile) string {
	version := p.Version
	if version == "" {
		version = "latest"
	}
	return fmt.Sprintf("raid-subagent-%s:%s", p.Name, version)
}
