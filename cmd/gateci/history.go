package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gateci/internal/config"
	"gateci/internal/history"
	"gateci/pkg/utils"
)

// NewHistoryCmd lists recorded executions, newest first.
func NewHistoryCmd() *cobra.Command {
	var limit int
	var cmd = &cobra.Command{
		Use:          "history",
		Short:        "List recorded executions",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryPath)
			if err != nil {
				return err
			}

			records := store.Recent(limit)
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no executions recorded")
				return nil
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %-14s %-12s %s\n",
					utils.ShortID(rec.ID), rec.State, rec.Kind, rec.Key, rec.Source)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max records to show")
	return cmd
}
