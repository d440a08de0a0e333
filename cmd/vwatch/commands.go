package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AnatoleLucet/watch"
	"github.com/AnatoleLucet/watch/internal/scenario"
	"github.com/AnatoleLucet/watch/source"
)

const logLevelFlag = "log-level"

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vwatch",
		Short:         "Wait on a shared version and react to its changes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String(logLevelFlag, "info", "Log level: debug, info, warn or error")

	return rootCmd
}

func loggerFor(cmd *cobra.Command) (*zap.Logger, error) {
	level, err := cmd.Flags().GetString(logLevelFlag)
	if err != nil {
		return nil, err
	}

	return newLogger(level)
}

func createRunCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run observers against a sequence of version changes",
		Long: "Run observers against a sequence of version changes.\n" +
			"Without --config, one subscriber at version 1 sees the version go to 2, then closed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := loggerFor(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			s := scenario.Default()
			if configPath != "" {
				if s, err = scenario.Load(configPath); err != nil {
					return err
				}
			}

			results, err := scenario.Run(cmd.Context(), s, logger)
			if err != nil {
				return fmt.Errorf("error running scenario: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				for _, v := range r.Versions {
					_, _ = fmt.Fprintf(out, "%s: %d\n", r.Name, v)
				}
				if r.Closed {
					_, _ = fmt.Fprintf(out, "%s: closed\n", r.Name)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML scenario")

	return cmd
}

func createFollowCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "follow FILE",
		Short: "Print a new version every time FILE changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFor(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			state := watch.NewState(watch.WithLogger(logger))
			file, err := source.NewFile(args[0], state, source.FileOptions{
				Debounce:    debounce,
				Logger:      logger,
				CloseOnStop: true,
			})
			if err != nil {
				return fmt.Errorf("error following file: %w", err)
			}

			closed := make(chan error, 1)
			go func() {
				<-ctx.Done()
				closed <- file.Close()
			}()

			out := cmd.OutOrStdout()
			observer := state.Subscribe()
			_, _ = fmt.Fprintf(out, "following %s at version %d\n", file.Path(), observer.Version())

			for v := range observer.Versions() {
				_, _ = fmt.Fprintf(out, "version %d (%s)\n", v, describe(file.Path()))
			}

			return <-closed
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "Quiet period before a change counts")

	return cmd
}

func describe(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "missing"
	}

	return fmt.Sprintf("%d bytes", info.Size())
}
