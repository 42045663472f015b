package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"gateci/internal/cache"
	"gateci/internal/config"
	"gateci/internal/core"
	"gateci/internal/history"
	"gateci/internal/sched"
	"gateci/internal/storage"
	"gateci/internal/trigger"
)

// NewRunCmd evaluates an event payload and, if it qualifies, runs the
// full job set locally. Exits non-zero when any job fails.
func NewRunCmd() *cobra.Command {
	var kind string
	var cmd = &cobra.Command{
		Use:          "run <payload.json>",
		Short:        "Evaluate an event and run the checks it triggers",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			ev, err := loadEvent(kind, args[0])
			if err != nil {
				return err
			}

			req, err := trigger.NewEvaluator(cfg.Rules()).Evaluate(ev)
			if trigger.IsSkip(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "skip: %v\n", err)
				return nil
			}
			if err != nil {
				return err
			}

			hist, err := history.Open(cfg.HistoryPath)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			runner := core.NewRunner(cfg.RunConfig(), cfg.Jobs,
				cache.New(cfg.CacheDir), storage.NewLogStorage(cfg.LogDir))

			scheduler := sched.New(func(ctx context.Context, ex *sched.Execution) (*core.Summary, error) {
				return runner.Run(ctx, ex.ID, ex.Request.Event)
			}, hist)
			defer scheduler.Close()

			ex := scheduler.Submit(req)
			if err := ex.Wait(cmd.Context()); err != nil {
				return err
			}

			state := ex.State()
			fmt.Fprintf(cmd.OutOrStdout(), "execution %s: %s\n", ex.ID, state)
			if sum := ex.Summary(); sum != nil {
				for _, r := range sum.Results {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-14s %-10s %s\n", r.Job, r.Status, r.Failure)
				}
			}
			if state != sched.StateSucceeded {
				return fmt.Errorf("execution %s", state)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "event kind (push, pull_request, release, workflow_dispatch)")
	if err := cmd.MarkFlagRequired("kind"); err != nil {
		log.Fatalf("failed to mark flag required: %v", err)
	}
	return cmd
}
