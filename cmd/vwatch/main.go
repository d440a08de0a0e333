package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd := createRootCommand()

	rootCmd.AddCommand(
		createRunCommand(),
		createFollowCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
