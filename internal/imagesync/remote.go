package imagesync

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Fetcher resolves an image reference to its current content digest.
type Fetcher interface {
	Digest(ctx context.Context, ref string) (string, error)
}

// RegistryFetcher asks the upstream registry directly via a manifest HEAD
// request; no engine or pull is involved in the check path.
type RegistryFetcher struct{}

func (RegistryFetcher) Digest(ctx context.Context, ref string) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("parse image reference %q: %w", ref, err)
	}

	desc, err := remote.Head(parsed,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		return "", fmt.Errorf("fetch digest for %s: %w", ref, err)
	}
	return desc.Digest.String(), nil
}

// LocalRef places an upstream reference in the mirror registry namespace,
// keeping the upstream tag.
func LocalRef(registry, logical, upstream string) (string, error) {
	parsed, err := name.NewTag(upstream, name.WithDefaultTag("latest"))
	if err != nil {
		// Digest-pinned upstreams have no tag to carry over.
		if _, derr := name.NewDigest(upstream); derr == nil {
			return registry + "/" + logical + ":latest", nil
		}
		return "", fmt.Errorf("parse upstream reference %q: %w", upstream, err)
	}
	return registry + "/" + logical + ":" + parsed.TagStr(), nil
}
