package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agentflux/flowcore/flow"
	"github.com/agentflux/flowcore/flow/store"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidate(os.Args[2:])
	case "run":
		runFlow(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: flowcore validate <flow.yaml>")
		os.Exit(1)
	}

	def, err := flow.LoadDefinition(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load flow: %v\n", err)
		os.Exit(1)
	}
	g, err := def.Graph()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build graph: %v\n", err)
		os.Exit(1)
	}

	res := flow.NewValidator(zap.NewNop()).Validate(g)
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if !res.Valid {
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "error: %s\n", e)
		}
		os.Exit(1)
	}
	fmt.Printf("%s: valid (%d nodes, %d edges, start: %s)\n",
		def.Name, len(g.Nodes), len(g.Edges), strings.Join(res.StartNodeIDs, ", "))
}

func runFlow(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("input", "", "Initial user input for the flow")
	logLevel := fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	redisAddr := fs.String("redis", "", "Redis address for checkpoint persistence")
	resume := fs.String("resume", "", "Run id of a saved checkpoint to resume from")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall run timeout")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: flowcore run [options] <flow.yaml>")
		os.Exit(1)
	}

	logger := initLogger(*logLevel)
	defer logger.Sync()

	def, err := flow.LoadDefinition(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load flow: %v\n", err)
		os.Exit(1)
	}
	g, err := def.Graph()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build graph: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var cpStore store.CheckpointStore
	if *redisAddr != "" {
		cpStore, err = store.NewRedisStore(store.RedisConfig{Addr: *redisAddr})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect checkpoint store: %v\n", err)
			os.Exit(1)
		}
		defer cpStore.Close()
	}

	var checkpoint *flow.RunCheckpoint
	if *resume != "" {
		if cpStore == nil {
			fmt.Fprintln(os.Stderr, "--resume requires --redis")
			os.Exit(1)
		}
		checkpoint, err = cpStore.Load(ctx, *resume)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load checkpoint %s: %v\n", *resume, err)
			os.Exit(1)
		}
		fmt.Printf("resuming from checkpoint %s (failed node: %s)\n", *resume, checkpoint.FailedNodeID)
	}

	engine := flow.NewEngine(dryRunRegistry(), flow.WithLogger(logger))
	result, runErr := engine.Execute(ctx, flow.RunConfig{
		Graph:      g,
		Input:      *input,
		Checkpoint: checkpoint,
		Sink:       printEvent,
	})

	if runErr != nil {
		if result != nil && result.FailedNodeID != "" && cpStore != nil {
			cp := flow.NewCheckpoint(result.Outputs, result.FailedNodeID)
			if saveErr := cpStore.Save(ctx, result.RunID, cp); saveErr != nil {
				fmt.Fprintf(os.Stderr, "Failed to save checkpoint: %v\n", saveErr)
			} else {
				fmt.Printf("checkpoint saved, retry with: flowcore run --redis %s --resume %s %s\n",
					*redisAddr, result.RunID, fs.Arg(0))
			}
		}
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", runErr)
		os.Exit(1)
	}

	fmt.Printf("\nrun %s completed with %d outputs\n", result.RunID, len(result.Outputs))
	if *resume != "" {
		cpStore.Delete(ctx, *resume)
	}
}

// dryRunRegistry wires placeholder executors for every node type that needs
// an external service, so a flow can be exercised end to end without
// provider credentials.
func dryRunRegistry() *flow.ExecutorRegistry {
	reg := flow.NewExecutorRegistry()
	reg.Register(flow.NodeTypeAgent, flow.ExecutorFunc(func(_ context.Context, ec *flow.ExecContext) (*flow.ExecResult, error) {
		prompt, _ := ec.Config()["prompt"].(string)
		return &flow.ExecResult{Output: &flow.AIResponseOutput{Content: "[dry-run] " + prompt, Model: "dry-run"}}, nil
	}))
	reg.Register(flow.NodeTypeIntegration, flow.ExecutorFunc(func(_ context.Context, ec *flow.ExecContext) (*flow.ExecResult, error) {
		cfg := ec.Config()
		service, _ := cfg["service"].(string)
		action, _ := cfg["action"].(string)
		return &flow.ExecResult{Output: &flow.IntegrationOutput{
			Service: service,
			Action:  action,
			Success: true,
			Data:    map[string]any{"dryRun": true},
		}}, nil
	}))
	reg.Register(flow.NodeTypeKnowledge, flow.ExecutorFunc(func(_ context.Context, ec *flow.ExecContext) (*flow.ExecResult, error) {
		query, _ := ec.Config()["query"].(string)
		return &flow.ExecResult{Output: &flow.KnowledgeOutput{Query: query}}, nil
	}))
	return reg
}

// printEvent renders one progress event per line; text deltas stream inline.
func printEvent(ev flow.Event) {
	switch ev.Type {
	case flow.EventNodeStart:
		fmt.Printf("▶ %s (%s)\n", ev.Label, ev.NodeType)
	case flow.EventNodeComplete:
		fmt.Printf("✓ %s\n", ev.Label)
	case flow.EventNodeReused:
		fmt.Printf("↻ %s (reused)\n", ev.Label)
	case flow.EventNodeSkipped:
		fmt.Printf("- %s (skipped)\n", ev.Label)
	case flow.EventNodeError:
		fmt.Printf("✗ %s\n", ev.Label)
	case flow.EventTextDelta:
		fmt.Print(ev.Delta)
	case flow.EventEvalResult:
		if out, ok := ev.Output.(*flow.ConditionOutput); ok {
			fmt.Printf("  branch %q via %s\n", out.BranchID, out.Method)
		}
	case flow.EventFlowComplete:
		if data, err := json.MarshalIndent(ev.Outputs, "", "  "); err == nil {
			fmt.Printf("\noutputs:\n%s\n", data)
		}
	case flow.EventFlowError:
		fmt.Fprintf(os.Stderr, "flow error: %s\n", ev.Message)
	}
}

func printVersion() {
	fmt.Printf("flowcore %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`flowcore - declarative flow execution engine

Usage:
  flowcore <command> [options]

Commands:
  validate  Statically check a flow definition
  run       Execute a flow definition
  version   Show version information
  help      Show this help message

Options for 'run':
  --input <text>     Initial user input
  --log-level <lvl>  Log level (debug, info, warn, error)
  --redis <addr>     Redis address for checkpoint persistence
  --resume <runId>   Resume a failed run from its saved checkpoint
  --timeout <dur>    Overall run timeout (default 5m)

Examples:
  flowcore validate flows/triage.yaml
  flowcore run --input "hello" flows/triage.yaml
  flowcore run --redis localhost:6379 flows/triage.yaml
  flowcore run --redis localhost:6379 --resume <runId> flows/triage.yaml`)
}

func initLogger(level string) *zap.Logger {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.WarnLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
