package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/raid/internal/config"
	"github.com/dyluth/raid/internal/containerrt"
	"github.com/dyluth/raid/internal/dispatch"
	"github.com/dyluth/raid/internal/docker"
	"github.com/dyluth/raid/internal/llmprovider"
	"github.com/dyluth/raid/internal/metatools"
	"github.com/dyluth/raid/internal/printer"
	"github.com/dyluth/raid/internal/profile"
	"github.com/dyluth/raid/internal/reasoning"
	"github.com/dyluth/raid/internal/supervisor"
	"github.com/dyluth/raid/internal/tools"
)

// defaultControlMaxSteps matches the original control agent's ReAct
// engine default (control_agent/react_engine.py).
const defaultControlMaxSteps = 10

var (
	errConfig           = errors.New("configuration error")
	errBroker           = errors.New("broker unreachable")
	errContainerRuntime = errors.New("container runtime unreachable")
)

func isConfigError(err error) bool           { return errors.Is(err, errConfig) }
func isBrokerError(err error) bool           { return errors.Is(err, errBroker) }
func isContainerRuntimeError(err error) bool { return errors.Is(err, errContainerRuntime) }

func buildRunCmd() *cobra.Command {
	var configPath string
	var maxSteps int
	var showStats bool

	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Accomplish a goal by orchestrating sub-agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoal(cmd.Context(), args[0], configPath, maxSteps, showStats)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "./raid.yml", "path to raid.yml")
	cmd.Flags().IntVar(&maxSteps, "max-steps", defaultControlMaxSteps, "maximum reasoning steps before giving up")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print the sub-agent worker population after the goal finishes")

	return cmd
}

func runGoal(ctx context.Context, goal, configPath string, maxSteps int, showStats bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("%w: %s", errConfig, err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %s", errBroker, err)
	}

	if cfg.Docker.Host != "" {
		os.Setenv("DOCKER_HOST", cfg.Docker.Host)
	}
	dockerCli, err := docker.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", errContainerRuntime, err)
	}
	defer dockerCli.Close()

	toolRegistry := tools.NewRegistry(
		tools.CalculatorTool{},
		tools.BashTool{},
		tools.ReadFileTool{Root: "."},
		tools.CreateFileTool{Root: "."},
		tools.ListFilesTool{Root: "."},
	)

	profiles := profile.NewRegistry(cfg.ProfilesDir, toolRegistry.KnownNames())
	if err := profiles.LoadAll(); err != nil {
		return fmt.Errorf("%w: %s", errConfig, err)
	}

	provider, err := llmprovider.New(llmprovider.BackendConfig{
		Provider:  cfg.LLMBackend.Provider,
		Model:     cfg.LLMBackend.Model,
		BaseURL:   cfg.LLMBackend.BaseURL,
		APIKeyEnv: cfg.LLMBackend.APIKeyEnv,
		MaxTokens: cfg.LLMBackend.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("%w: %s", errConfig, err)
	}

	containers := containerrt.New(dockerCli)
	sup := supervisor.New(supervisor.Config{
		MaxWorkers:       cfg.MaxSubAgents(),
		HeartbeatTimeout: cfg.HeartbeatTimeoutDuration(),
		IdleTimeout:      cfg.IdleTimeoutDuration(),
		ReapInterval:     cfg.ReapIntervalDuration(),
	}, containers)
	sup.StartMonitoring(ctx)
	defer sup.StopMonitoring(context.Background())

	queue := dispatch.NewQueue(rdb)
	collab := dispatch.NewManager(rdb)

	mt := &metatools.MetaTools{
		Registry:   profiles,
		Containers: containers,
		Supervisor: sup,
		Queue:      queue,
		Collab:     collab,
		BrokerEnv:  brokerEnv(cfg),
	}

	engine := &reasoning.Engine{
		Flavour:      reasoning.FlavourControl,
		Provider:     provider,
		Tools:        mt,
		MaxSteps:     maxSteps,
		SystemPrompt: controlSystemPrompt(profiles),
	}

	rc := reasoning.NewContext(fmt.Sprintf("goal-%d", time.Now().UTC().UnixNano()), goal)
	engine.Run(ctx, rc)

	if showStats {
		renderStatsTable(os.Stdout, sup.Workers())
	}

	switch rc.Status {
	case reasoning.StatusCompleted:
		printer.Success("%s\n", rc.FinalResult)
		return nil
	default:
		return printer.Error(
			"Goal failed",
			rc.FinalResult,
			[]string{"Inspect sub-agent logs with `docker logs`", "Re-run with a narrower goal"},
		)
	}
}

// brokerEnv builds the env vars every launched worker container needs
// to reach the broker and, when part of a group, the collaboration
// channel (spec.md §6's container environment contract). Model-provider
// credentials pass through as-is so a worker's own llmprovider factory
// can authenticate the same way the control process does.
func brokerEnv(cfg *config.RaidConfig) metatools.BrokerEnv {
	return func(profileName, collaborationGroupID string) []string {
		env := []string{
			"RAID_SUB_AGENT_PROFILE=" + profileName,
			"RAID_REDIS_ADDR=" + cfg.Redis.Addr,
			"RAID_LLM_PROVIDER=" + cfg.LLMBackend.Provider,
			"RAID_LLM_MODEL=" + cfg.LLMBackend.Model,
		}
		if cfg.LLMBackend.BaseURL != "" {
			env = append(env, "RAID_LLM_BASE_URL="+cfg.LLMBackend.BaseURL)
		}
		if cfg.LLMBackend.APIKeyEnv != "" {
			env = append(env, "RAID_LLM_API_KEY_ENV="+cfg.LLMBackend.APIKeyEnv)
			if key := os.Getenv(cfg.LLMBackend.APIKeyEnv); key != "" {
				env = append(env, cfg.LLMBackend.APIKeyEnv+"="+key)
			}
		}
		if collaborationGroupID != "" {
			env = append(env,
				"RAID_COLLABORATION_ENABLED=true",
				"RAID_COLLABORATION_GROUP_ID="+collaborationGroupID,
			)
		}
		return env
	}
}

func controlSystemPrompt(profiles *profile.Registry) string {
	names := profiles.List()
	return fmt.Sprintf(`You are the control agent of a multi-agent system. Your job is to accomplish
the user's goal by dispatching work to sub-agents rather than doing it
yourself.

Available meta-tools: discover_profiles, dispatch, create_specialized_worker,
create_collaborative_group, conclude_success, conclude_failure.

Prefer dispatching to an existing profile over creating a new worker.
Currently registered profiles: %s

Respond with a single JSON object: {"thought": "...", "action": {"tool": "...", "parameters": {...}}}.
When the goal is accomplished, use conclude_success with a "summary" parameter.
If it cannot be accomplished, use conclude_failure with a "reason" parameter.`, joinOrNone(names))
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none yet — use create_specialized_worker or create_collaborative_group)"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}
