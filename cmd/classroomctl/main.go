// Command classroomctl is the operator CLI for the classroom backend.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/quipper/poc/classroom/be/pkg/common/logger"
)

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "classroomctl",
		Short:         "Operator tools for the classroom backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Initialize(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(newTokenCmd(), newGenAICheckCmd())
	return root
}

func main() {
	defer logger.Sync()
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}
