package imagesync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Engine is the subset of the container engine CLI used for pull/tag/push.
type Engine interface {
	Command(ctx context.Context, args ...string) ([]byte, error)
}

// Action is the outcome of classifying one image against its record.
type Action struct {
	Eligible bool
	Reason   string // "new", "update" or "force"
	Status   Status
}

// Classify derives an image's sync action from its stored record and the
// freshly fetched upstream digest.
func Classify(rec Record, upstreamDigest string, force bool) Action {
	switch {
	case force:
		return Action{Eligible: true, Reason: "force", Status: classifyStatus(rec, upstreamDigest)}
	case rec.LocalDigest == "":
		return Action{Eligible: true, Reason: "new", Status: StatusNew}
	case upstreamDigest != rec.UpstreamDigest || upstreamDigest != rec.LocalDigest:
		return Action{Eligible: true, Reason: "update", Status: StatusStale}
	default:
		return Action{Status: StatusCurrent}
	}
}

func classifyStatus(rec Record, upstreamDigest string) Status {
	if rec.LocalDigest == "" {
		return StatusNew
	}
	if upstreamDigest != rec.LocalDigest {
		return StatusStale
	}
	return StatusCurrent
}

// Outcome reports what happened to one image during a run.
type Outcome struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Synced bool   `json:"synced"`
	Err    error  `json:"-"`
}

// Options for one orchestrator run.
type Options struct {
	Filter string // limit to one logical image name; empty means all
	Force  bool   // sync regardless of digest state
	Push   bool   // actually pull/tag/push; otherwise check-only
}

// Orchestrator walks the record store, compares digests and performs the
// eligible syncs. One image's failure never aborts the others.
type Orchestrator struct {
	eng   Engine
	fetch Fetcher
	store *Store
	now   func() time.Time
}

func New(eng Engine, fetch Fetcher, store *Store) *Orchestrator {
	return &Orchestrator{eng: eng, fetch: fetch, store: store, now: time.Now}
}

// Run processes every tracked image in name order and returns one outcome
// per processed image. The store file is rewritten after each verified
// push, never on failure, so an interrupted run loses at most the images it
// had not reached.
func (o *Orchestrator) Run(ctx context.Context, opts Options) []Outcome {
	names := make([]string, 0, len(o.store.Images))
	for name := range o.store.Images {
		if opts.Filter != "" && name != opts.Filter {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	outcomes := make([]Outcome, 0, len(names))
	for _, name := range names {
		outcomes = append(outcomes, o.syncOne(ctx, name, opts))
	}
	return outcomes
}

func (o *Orchestrator) syncOne(ctx context.Context, name string, opts Options) Outcome {
	rec := o.store.Images[name]
	out := Outcome{Name: name, Status: rec.Status}

	digest, err := o.fetch.Digest(ctx, rec.Upstream)
	if err != nil {
		out.Err = err
		return out
	}

	act := Classify(rec, digest, opts.Force)
	out.Status = act.Status
	out.Reason = act.Reason
	if !act.Eligible || !opts.Push {
		return out
	}

	if err := o.push(ctx, name, rec, digest); err != nil {
		// The prior record stays untouched; this image is reported
		// failed and the run moves on.
		out.Err = err
		return out
	}

	o.store.SetSynced(name, rec.Upstream, digest, o.now())
	o.store.LastCheck = o.now()
	if err := o.store.Save(); err != nil {
		out.Err = err
		return out
	}

	out.Status = StatusSynced
	out.Synced = true
	return out
}

func (o *Orchestrator) push(ctx context.Context, name string, rec Record, digest string) error {
	local, err := LocalRef(o.store.Registry, name, rec.Upstream)
	if err != nil {
		return err
	}

	slog.Debug("syncing image", "image", name, "upstream", rec.Upstream, "local", local, "digest", digest)

	if _, err := o.eng.Command(ctx, "pull", rec.Upstream); err != nil {
		return fmt.Errorf("pull %s: %w", rec.Upstream, err)
	}
	if _, err := o.eng.Command(ctx, "tag", rec.Upstream, local); err != nil {
		return fmt.Errorf("tag %s as %s: %w", rec.Upstream, local, err)
	}
	if _, err := o.eng.Command(ctx, "push", local); err != nil {
		return fmt.Errorf("push %s: %w", local, err)
	}
	return nil
}
