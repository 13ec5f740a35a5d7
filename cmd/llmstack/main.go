package main

import (
	"fmt"
	"os"

	cleancmd "llmstack/cmd/llmstack/clean"
	doctorcmd "llmstack/cmd/llmstack/doctor"
	resolvecmd "llmstack/cmd/llmstack/resolve"
	synccmd "llmstack/cmd/llmstack/sync"
	"llmstack/cmd/llmstack/ui"
	"llmstack/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	var (
		debug bool
		plain bool
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "llmstack",
		Short:         "Diagnose and maintain a local LLM container stack",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}
			ui.ConfigureColor(plain)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&plain, "plain", false, "Disable colored output")

	root.AddCommand(doctorcmd.Cmd())
	root.AddCommand(synccmd.Cmd())
	root.AddCommand(cleancmd.Cmd())
	root.AddCommand(resolvecmd.Cmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
