package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
)

func main() {
	ctx := logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig))
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logger.Get(ctx).Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scmtool",
		Short:         "Builds, inspects and benchmarks spherical image pyramids",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newSynthCommand(),
		newPackCommand(),
		newInfoCommand(),
		newBenchCommand(),
	)
	return cmd
}
