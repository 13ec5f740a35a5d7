// Package resolvecmd implements "llmstack resolve": print the
// host-reachable address containers should use for the inference server.
package resolvecmd

import (
	"fmt"

	"llmstack/cmd/llmstack/cmdutil"
	"llmstack/cmd/llmstack/ui"
	"llmstack/internal/hostnet"

	"github.com/spf13/cobra"
)

// Cmd returns the "llmstack resolve" command.
func Cmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the host address reachable from inside containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := cmdutil.LoadConfig(configPath)
			if err != nil {
				return err
			}
			eng, err := cmdutil.DetectEngine(ctx)
			if err != nil {
				return err
			}

			ep, err := hostnet.NewResolver(eng.VMShell, cfg.OllamaPort).Resolve(ctx)
			if err != nil {
				return err
			}

			fmt.Print(ui.KeyValues("  ",
				ui.KV("Address", ep.Addr.String()),
				ui.KV("Port", fmt.Sprint(ep.Port)),
				ui.KV("URL", ep.URL("")),
				ui.KV("Method", string(ep.Method)),
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	return cmd
}
