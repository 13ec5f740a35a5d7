// Package cleancmd implements "llmstack clean": tear down the stack's
// containers and optionally its named volumes and networks. Without --yes
// it only lists what would be removed.
package cleancmd

import (
	"fmt"

	"llmstack/cmd/llmstack/cmdutil"
	"llmstack/cmd/llmstack/ui"
	"llmstack/internal/stack"

	"github.com/spf13/cobra"
)

// Cmd returns the "llmstack clean" command.
func Cmd() *cobra.Command {
	var (
		configPath string
		yes        bool
		volumes    bool
		networks   bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the stack's containers, and optionally volumes and networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := cmdutil.LoadConfig(configPath)
			if err != nil {
				return err
			}
			spec, err := cmdutil.LoadSpec(ctx, cfg)
			if err != nil {
				return err
			}
			opts := stack.CleanOptions{Volumes: volumes, Networks: networks}

			if !yes {
				printPlan(spec, opts)
				return nil
			}

			eng, err := cmdutil.DetectEngine(ctx)
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range stack.Clean(ctx, eng, spec, opts) {
				switch {
				case res.Err != nil:
					failed++
					fmt.Println(ui.ErrorMsg("%s %s: %v", res.Kind, res.Name, res.Err))
				case res.Skipped:
					fmt.Println(ui.InfoMsg("%s %s already absent", res.Kind, res.Name))
				default:
					fmt.Println(ui.SuccessMsg("removed %s %s", res.Kind, res.Name))
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d removals failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().BoolVar(&yes, "yes", false, "Actually remove; default is a dry run")
	cmd.Flags().BoolVar(&volumes, "volumes", false, "Also remove named volumes (data loss)")
	cmd.Flags().BoolVar(&networks, "networks", false, "Also remove stack networks")
	return cmd
}

func printPlan(spec *stack.Spec, opts stack.CleanOptions) {
	var rows [][]string
	for _, svc := range spec.Services {
		rows = append(rows, []string{"container", svc.Container})
	}
	if opts.Volumes {
		for _, vol := range spec.Volumes {
			rows = append(rows, []string{"volume", vol})
		}
	}
	if opts.Networks {
		for _, net := range spec.Networks {
			rows = append(rows, []string{"network", net})
		}
	}

	fmt.Println(ui.Table([]string{"Kind", "Name"}, rows))
	fmt.Println(ui.WarnMsg("dry run; pass --yes to remove"))
}
