package imagesync

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type fakeEngine struct {
	calls   [][]string
	pushErr error
}

func (f *fakeEngine) Command(ctx context.Context, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	if args[0] == "push" && f.pushErr != nil {
		return []byte("error pushing image"), f.pushErr
	}
	return nil, nil
}

type fakeFetcher map[string]string

func (f fakeFetcher) Digest(ctx context.Context, ref string) (string, error) {
	d, ok := f[ref]
	if !ok {
		return "", errors.New("manifest unknown")
	}
	return d, nil
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := LoadStore(filepath.Join(t.TempDir(), "images.json"))
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	s.Registry = "registry.local/mirror"
	return s
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		rec          Record
		upstream     string
		force        bool
		wantEligible bool
		wantReason   string
		wantStatus   Status
	}{
		{
			name:         "no local digest → new",
			rec:          Record{Upstream: "docker.io/ollama/ollama:latest"},
			upstream:     "sha256:aaa",
			wantEligible: true,
			wantReason:   "new",
			wantStatus:   StatusNew,
		},
		{
			name: "digests agree → current",
			rec: Record{
				UpstreamDigest: "sha256:aaa",
				LocalDigest:    "sha256:aaa",
			},
			upstream:   "sha256:aaa",
			wantStatus: StatusCurrent,
		},
		{
			name: "upstream moved → stale",
			rec: Record{
				UpstreamDigest: "sha256:aaa",
				LocalDigest:    "sha256:aaa",
			},
			upstream:     "sha256:bbb",
			wantEligible: true,
			wantReason:   "update",
			wantStatus:   StatusStale,
		},
		{
			name: "force overrides current",
			rec: Record{
				UpstreamDigest: "sha256:aaa",
				LocalDigest:    "sha256:aaa",
			},
			upstream:     "sha256:aaa",
			force:        true,
			wantEligible: true,
			wantReason:   "force",
			wantStatus:   StatusCurrent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.rec, tt.upstream, tt.force)
			if got.Eligible != tt.wantEligible || got.Reason != tt.wantReason || got.Status != tt.wantStatus {
				t.Fatalf("Classify = %+v, want eligible=%v reason=%q status=%q",
					got, tt.wantEligible, tt.wantReason, tt.wantStatus)
			}
		})
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store := testStore(t)
	store.Track("ollama", "docker.io/ollama/ollama:latest")
	fetch := fakeFetcher{"docker.io/ollama/ollama:latest": "sha256:aaa"}

	first := &fakeEngine{}
	outs := New(first, fetch, store).Run(context.Background(), Options{Push: true})
	if len(outs) != 1 || outs[0].Err != nil || !outs[0].Synced {
		t.Fatalf("first run: %+v", outs)
	}
	if len(first.calls) != 3 {
		t.Fatalf("first run engine calls = %v, want pull/tag/push", first.calls)
	}

	second := &fakeEngine{}
	outs = New(second, fetch, store).Run(context.Background(), Options{Push: true})
	if len(outs) != 1 || outs[0].Status != StatusCurrent || outs[0].Synced {
		t.Fatalf("second run: %+v", outs)
	}
	if len(second.calls) != 0 {
		t.Fatalf("second run performed engine operations: %v", second.calls)
	}
}

func TestFailedPushLeavesRecordUntouched(t *testing.T) {
	store := testStore(t)
	store.Images["ollama"] = Record{
		Upstream:       "docker.io/ollama/ollama:latest",
		UpstreamDigest: "sha256:aaa",
		LocalDigest:    "sha256:aaa",
		Status:         StatusSynced,
	}
	before := store.Images["ollama"]

	fetch := fakeFetcher{"docker.io/ollama/ollama:latest": "sha256:bbb"}
	eng := &fakeEngine{pushErr: errors.New("connection reset by registry")}

	outs := New(eng, fetch, store).Run(context.Background(), Options{Push: true})
	if len(outs) != 1 || outs[0].Err == nil {
		t.Fatalf("outcomes = %+v, want push failure", outs)
	}

	after := store.Images["ollama"]
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("record changed after failed push:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestStaleImageSyncsToNewDigest(t *testing.T) {
	store := testStore(t)
	store.Images["ollama"] = Record{
		Upstream:       "docker.io/ollama/ollama:latest",
		UpstreamDigest: "sha256:aaa",
		LocalDigest:    "sha256:aaa",
		Status:         StatusSynced,
	}

	fetch := fakeFetcher{"docker.io/ollama/ollama:latest": "sha256:bbb"}
	eng := &fakeEngine{}
	orch := New(eng, fetch, store)
	orch.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }

	// Check-only first: classified stale, nothing executed.
	outs := orch.Run(context.Background(), Options{})
	if outs[0].Status != StatusStale || outs[0].Reason != "update" {
		t.Fatalf("check-only outcome = %+v, want stale/update", outs[0])
	}
	if len(eng.calls) != 0 {
		t.Fatalf("check-only run touched the engine: %v", eng.calls)
	}

	outs = orch.Run(context.Background(), Options{Push: true})
	if outs[0].Err != nil || !outs[0].Synced {
		t.Fatalf("push outcome = %+v", outs[0])
	}

	rec := store.Images["ollama"]
	if rec.LocalDigest != "sha256:bbb" || rec.UpstreamDigest != "sha256:bbb" {
		t.Fatalf("record digests = %+v, want both sha256:bbb", rec)
	}
	if rec.Status != StatusSynced || rec.SyncedAt.IsZero() {
		t.Fatalf("record = %+v, want synced with timestamp", rec)
	}
}

func TestFetchFailureDoesNotAbortOtherImages(t *testing.T) {
	store := testStore(t)
	store.Track("ollama", "docker.io/ollama/ollama:latest")
	store.Track("webui", "ghcr.io/open-webui/open-webui:main")

	fetch := fakeFetcher{"ghcr.io/open-webui/open-webui:main": "sha256:ccc"}
	eng := &fakeEngine{}

	outs := New(eng, fetch, store).Run(context.Background(), Options{Push: true})
	if len(outs) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outs))
	}
	if outs[0].Name != "ollama" || outs[0].Err == nil {
		t.Fatalf("ollama outcome = %+v, want fetch error", outs[0])
	}
	if outs[1].Name != "webui" || outs[1].Err != nil || !outs[1].Synced {
		t.Fatalf("webui outcome = %+v, want synced", outs[1])
	}
}

func TestFilterLimitsRun(t *testing.T) {
	store := testStore(t)
	store.Track("ollama", "docker.io/ollama/ollama:latest")
	store.Track("webui", "ghcr.io/open-webui/open-webui:main")

	fetch := fakeFetcher{
		"docker.io/ollama/ollama:latest":     "sha256:aaa",
		"ghcr.io/open-webui/open-webui:main": "sha256:ccc",
	}

	outs := New(&fakeEngine{}, fetch, store).Run(context.Background(), Options{Filter: "webui"})
	if len(outs) != 1 || outs[0].Name != "webui" {
		t.Fatalf("outcomes = %+v, want webui only", outs)
	}
}

func TestLocalRef(t *testing.T) {
	tests := []struct {
		upstream string
		want     string
	}{
		{"docker.io/ollama/ollama:latest", "registry.local/mirror/ollama:latest"},
		{"ghcr.io/open-webui/open-webui:v0.5.4", "registry.local/mirror/webui:v0.5.4"},
		{"docker.io/library/busybox", "registry.local/mirror/busybox:latest"},
	}
	logical := map[string]string{
		"docker.io/ollama/ollama:latest":      "ollama",
		"ghcr.io/open-webui/open-webui:v0.5.4": "webui",
		"docker.io/library/busybox":           "busybox",
	}

	for _, tt := range tests {
		got, err := LocalRef("registry.local/mirror", logical[tt.upstream], tt.upstream)
		if err != nil {
			t.Fatalf("LocalRef(%s): %v", tt.upstream, err)
		}
		if got != tt.want {
			t.Errorf("LocalRef(%s) = %q, want %q", tt.upstream, got, tt.want)
		}
	}
}
