package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:          "gateci",
		Short:        "Evaluate repository events and run the check pipeline",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", "", "path to the gateci config file")
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	return cmd
}
