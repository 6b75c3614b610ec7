// Command subagent is the worker-container entrypoint (C5's worker
// flavour): it loads its own profile and configuration purely from the
// environment, then loops pulling tasks from its profile's queue and
// running the reasoning loop against each one.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/raid/internal/config"
	"github.com/dyluth/raid/internal/dispatch"
	"github.com/dyluth/raid/internal/llmprovider"
	"github.com/dyluth/raid/internal/profile"
	"github.com/dyluth/raid/internal/reasoning"
	"github.com/dyluth/raid/internal/tools"
	"github.com/dyluth/raid/pkg/raidmq"
)

// defaultWorkerMaxSteps matches the original sub-agent ReAct engine's
// default (sub_agent/react_engine.py).
const defaultWorkerMaxSteps = 20

// profilePath is where the container orchestrator adapter's build
// context copies the profile file (spec.md §4.1, internal/profile's
// Dockerfile synthesis: "COPY <name>.yaml ./profile.yaml").
const profilePath = "./profile.yaml"

// receivePollTimeout bounds each BRPOP cycle so the loop can still
// observe ctx cancellation promptly on shutdown.
const receivePollTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadSubAgentConfig()
	if err != nil {
		return fmt.Errorf("load sub-agent config: %w", err)
	}

	data, err := os.ReadFile(profilePath)
	if err != nil {
		return fmt.Errorf("read profile file: %w", err)
	}
	p, err := profile.FromYAML(data)
	if err != nil {
		return fmt.Errorf("parse profile file: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}

	provider, err := llmprovider.New(llmprovider.BackendConfig{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		BaseURL:   cfg.LLMBaseURL,
		APIKeyEnv: cfg.LLMAPIKeyEnv,
		MaxTokens: p.LLMConfig.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("construct llm backend: %w", err)
	}

	toolRegistry := tools.NewRegistry(
		tools.CalculatorTool{},
		tools.BashTool{},
		tools.ReadFileTool{Root: "."},
		tools.CreateFileTool{Root: "."},
		tools.ListFilesTool{Root: "."},
	)

	queue := dispatch.NewQueue(rdb)

	var sub *dispatch.Subscriber
	var collabCtx *dispatch.CollaborationContext
	if cfg.CollaborationEnabled {
		collab := dispatch.NewManager(rdb)
		collabCtx = dispatch.NewCollaborationContext()
		sub = &dispatch.Subscriber{
			Self:    p.Name,
			Manager: collab,
			Context: collabCtx,
			OnHostMessage: func(msg raidmq.CollaborationMessage) {
				fmt.Fprintf(os.Stderr, "[Collaboration] %s from %s: %v\n", msg.Type, msg.Sender, msg.Data)
			},
		}
		go listenCollaboration(ctx, collab, sub, cfg.CollaborationGroupID)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
	}()

	engine := &reasoning.Engine{
		Flavour:      reasoning.FlavourWorker,
		Provider:     provider,
		Tools:        tools.Executor{Registry: toolRegistry},
		MaxSteps:     defaultWorkerMaxSteps,
		SystemPrompt: p.SystemPrompt,
	}

	return serveTasks(ctx, queue, p.Name, engine)
}

// serveTasks loops receiving tasks from the profile's queue and running
// the worker reasoning loop against each one until ctx is cancelled.
func serveTasks(ctx context.Context, queue *dispatch.Queue, profileName string, engine *reasoning.Engine) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		task, err := queue.ReceiveTask(ctx, profileName, receivePollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "[SubAgent] receive task failed: %s\n", err)
			continue
		}
		if task == nil {
			continue
		}

		result := runTask(ctx, engine, *task)
		if err := queue.SendResult(ctx, profileName, result); err != nil {
			fmt.Fprintf(os.Stderr, "[SubAgent] send result failed: %s\n", err)
		}
	}
}

// runTask drives one reasoning run to completion and converts its
// terminal status into a ResultMessage (spec.md §4.5, §6).
func runTask(ctx context.Context, engine *reasoning.Engine, task raidmq.TaskMessage) raidmq.ResultMessage {
	rc := reasoning.NewContext(task.TaskID, task.Prompt)
	engine.Run(ctx, rc)

	switch rc.Status {
	case reasoning.StatusCompleted:
		return raidmq.NewSuccessResult(task.TaskID, task.CorrelationID, rc.FinalResult, nil)
	default:
		return raidmq.NewErrorResult(task.TaskID, task.CorrelationID, rc.FinalResult)
	}
}

// listenCollaboration subscribes to the group's pub/sub channel and
// hands every payload to the subscriber's strict-JSON decode path
// (spec.md §9: no eval, ever).
func listenCollaboration(ctx context.Context, collab *dispatch.Manager, sub *dispatch.Subscriber, groupID string) {
	pubsub := collab.Subscribe(ctx, groupID)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := sub.HandleRaw(ctx, msg.Payload); err != nil {
				fmt.Fprintf(os.Stderr, "[Collaboration] dropped message: %s\n", err)
			}
		}
	}
}
