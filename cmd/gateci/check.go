package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"gateci/internal/config"
	"gateci/internal/event"
	"gateci/internal/trigger"
)

// NewCheckCmd prints the qualification decision for an event payload
// without running anything.
func NewCheckCmd() *cobra.Command {
	var kind string
	var cmd = &cobra.Command{
		Use:          "check <payload.json>",
		Short:        "Decide whether an event would produce an execution",
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
			fmt.Fprintf(cmd.OutOrStdout(), "qualifies: group=%s policy=%s source=%s\n",
				req.Key, req.Policy, ev.Source())
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "event kind (push, pull_request, release, workflow_dispatch)")
	if err := cmd.MarkFlagRequired("kind"); err != nil {
		log.Fatalf("failed to mark flag required: %v", err)
	}
	return cmd
}

func loadEvent(kind, path string) (*event.Event, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return event.ParsePayload(kind, body)
}
