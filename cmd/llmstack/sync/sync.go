// Package synccmd implements "llmstack sync": mirror the stack's upstream
// images into a local registry. Without --push it only reports what a push
// run would do.
package synccmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"llmstack/cmd/llmstack/cmdutil"
	"llmstack/cmd/llmstack/ui"
	"llmstack/internal/imagesync"

	"github.com/spf13/cobra"
)

// Cmd returns the "llmstack sync" command.
func Cmd() *cobra.Command {
	var (
		configPath string
		push       bool
		force      bool
		image      string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Check the local image mirror against upstream digests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := cmdutil.LoadConfig(configPath)
			if err != nil {
				return err
			}

			store, err := imagesync.LoadStore(cfg.StoreFile)
			if err != nil {
				return err
			}
			if store.Registry == "" {
				store.Registry = cfg.Registry
			}

			// Seed tracking from the compose file so a fresh store still
			// covers the whole stack. A missing compose file is only fatal
			// when the store is empty too.
			if spec, err := cmdutil.LoadSpec(ctx, cfg); err == nil {
				for _, svc := range spec.Services {
					store.Track(svc.Name, svc.Image)
				}
			} else if len(store.Images) == 0 {
				return err
			} else {
				slog.Debug("compose file unavailable, using tracked images only", "error", err)
			}

			if image != "" {
				if _, ok := store.Record(image); !ok {
					return fmt.Errorf("no tracked image named %q", image)
				}
			}

			var eng imagesync.Engine
			if push {
				e, err := cmdutil.DetectEngine(ctx)
				if err != nil {
					return err
				}
				eng = e
			}

			o := imagesync.New(eng, imagesync.RegistryFetcher{}, store)
			outcomes := o.Run(ctx, imagesync.Options{Filter: image, Force: force, Push: push})

			if jsonOut {
				if err := writeJSON(os.Stdout, outcomes); err != nil {
					return err
				}
			} else {
				printOutcomes(outcomes, push)
			}

			if failed := countFailed(outcomes); failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().BoolVar(&push, "push", false, "Pull, retag and push eligible images to the mirror")
	cmd.Flags().BoolVar(&force, "force", false, "Sync even when digests already match")
	cmd.Flags().StringVar(&image, "image", "", "Limit the run to one image name")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit outcomes as JSON on stdout")
	return cmd
}

func printOutcomes(outcomes []imagesync.Outcome, push bool) {
	for _, out := range outcomes {
		fmt.Println(outcomeLine(out, push))
	}
	if failed := countFailed(outcomes); failed > 0 {
		fmt.Printf("\n%s of %d images failed\n", ui.Bold(fmt.Sprint(failed)), len(outcomes))
	}
}

func outcomeLine(out imagesync.Outcome, push bool) string {
	if out.Err != nil {
		return ui.Tag("fail") + " " + out.Name + ": " + out.Err.Error()
	}

	switch out.Status {
	case imagesync.StatusNew:
		return ui.Tag("new") + " " + out.Name + ": not mirrored yet" + pushHint(push)
	case imagesync.StatusStale:
		return ui.Tag("update") + " " + out.Name + ": upstream digest moved" + pushHint(push)
	case imagesync.StatusSynced:
		return ui.Tag("pass") + " " + out.Name + ": synced to mirror"
	default:
		return ui.Tag("pass") + " " + out.Name + ": up to date"
	}
}

func pushHint(push bool) string {
	if push {
		return ""
	}
	return ui.Muted(" (run with --push)")
}

func countFailed(outcomes []imagesync.Outcome) int {
	n := 0
	for _, out := range outcomes {
		if out.Err != nil {
			n++
		}
	}
	return n
}

type outcomeDoc struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Synced bool   `json:"synced"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w *os.File, outcomes []imagesync.Outcome) error {
	docs := make([]outcomeDoc, 0, len(outcomes))
	failed := 0
	for _, out := range outcomes {
		doc := outcomeDoc{Name: out.Name, Status: string(out.Status), Reason: out.Reason, Synced: out.Synced}
		if out.Err != nil {
			doc.Error = out.Err.Error()
			failed++
		}
		docs = append(docs, doc)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Failed int          `json:"failed"`
		Images []outcomeDoc `json:"images"`
	}{Failed: failed, Images: docs})
}
