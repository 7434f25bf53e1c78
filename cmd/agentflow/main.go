package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time with -ldflags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "agentflow",
		Short:        "Token-based workflow engine for agentic processes",
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
