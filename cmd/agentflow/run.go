package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lyzr/agentflow/common/actors"
	ckpt "github.com/lyzr/agentflow/common/checkpoint"
	"github.com/lyzr/agentflow/common/config"
	"github.com/lyzr/agentflow/common/engine"
	"github.com/lyzr/agentflow/common/logger"
	"github.com/lyzr/agentflow/common/token"
	"github.com/lyzr/agentflow/common/workflow"
)

func newRunCmd() *cobra.Command {
	var (
		verbose    bool
		apiKey     string
		checkpoint bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow-file>",
		Short: "Run a workflow file to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd.Context(), args[0], apiKey, verbose, checkpoint)
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	cmd.Flags().StringVar(&apiKey, "key", "", "model API key (overrides GEMINI_API_KEY)")
	cmd.Flags().BoolVar(&checkpoint, "checkpoint", false, "periodically checkpoint state to CHECKPOINT_DIR")
	return cmd
}

func runWorkflow(ctx context.Context, path, apiKey string, verbose, withCheckpoints bool) error {
	cfg, err := config.Load("agentflow")
	if err != nil {
		return err
	}
	if verbose {
		cfg.Service.LogLevel = "debug"
	}
	log := logger.NewWithOptions(logger.Options{
		Level:      cfg.Service.LogLevel,
		Format:     cfg.Service.LogFormat,
		Timestamps: cfg.Service.LogTimestamps,
	})

	wf, err := workflow.LoadFile(path)
	if err != nil {
		return err
	}

	key := apiKey
	if key == "" {
		key = cfg.AI.GeminiAPIKey
	}

	eng, err := engine.New(wf, engine.Options{
		GeminiAPIKey: key,
		RobotConfig: actors.RobotConfig{
			RealMode: !cfg.Robot.Simulation,
			Protocol: cfg.Robot.Protocol,
			Host:     cfg.Robot.Host,
			Port:     cfg.Robot.Port,
		},
		WaitForHumanTasks: false,
		Verbose:           verbose,
		Logger:            log,
	})
	if err != nil {
		return err
	}

	if _, err := eng.Start(nil); err != nil {
		return err
	}

	if withCheckpoints {
		mgr := ckpt.NewManager(ckpt.NewFileStore(cfg.Checkpoint.Dir), log)
		stop := mgr.StartAuto(ctx, eng, cfg.Checkpoint.AutoInterval)
		defer stop()
	}

	if err := eng.Run(ctx, 0); err != nil {
		printTokens(eng.Tokens())
		return err
	}

	printTokens(eng.Tokens())
	fmt.Printf("workflow %s finished with status %s\n", wf.Name, eng.Status())

	if eng.Status() != engine.StatusCompleted {
		os.Exit(1)
	}
	return nil
}

func printTokens(tokens []*token.Token) {
	for _, t := range tokens {
		raw, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			continue
		}
		fmt.Println(string(raw))
	}
}
