// Package resolver turns a manifest-relative reference (a segment or key
// URI as written in a playlist) into an absolute remote URL and a relative
// local path, and computes (and guarantees the existence of) the on-disk
// path that work item should be written to. Grounded on the teacher's
// internal/cache path-construction style and internal/safeurl's scheme
// allowlist, generalised from a single fixed cache root to an arbitrary
// manifest base URL plus a kind-scoped subtree.
package resolver

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/snapetech/hlsfetch/internal/safeurl"
)

// Kind distinguishes the two kinds of referenced file, which land under
// different subdirectories of the output root.
type Kind int

const (
	KindSegment Kind = iota
	KindKey
)

func (k Kind) String() string {
	if k == KindKey {
		return "key"
	}
	return "segment"
}

func (k Kind) subdir() string {
	if k == KindKey {
		return "keys"
	}
	return "segments"
}

// WorkItem is a fully resolved download unit: where to fetch it from, and
// the kind-scoped relative path it should be written to. LocalPath is the
// remote URL's path with its leading slash stripped; it is NOT yet rooted
// under an output directory or kind subdirectory — call OutputPath for that.
type WorkItem struct {
	RemoteURL string
	LocalPath string
	Kind      Kind
}

// Resolve computes the absolute remote URL for ref (as seen in a manifest
// line) against manifestURL. It mirrors the reference implementation: an
// absolute URL in ref passes through unchanged; anything else is resolved
// relative to manifestURL.
func Resolve(manifestURL, ref string, kind Kind) (WorkItem, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return WorkItem{}, fmt.Errorf("resolver: parse manifest url %q: %w", manifestURL, err)
	}

	remote, err := url.Parse(ref)
	if err != nil {
		return WorkItem{}, fmt.Errorf("resolver: parse reference %q: %w", ref, err)
	}
	if !remote.IsAbs() {
		remote = base.ResolveReference(remote)
	}
	if !safeurl.IsHTTPOrHTTPS(remote.String()) {
		return WorkItem{}, fmt.Errorf("resolver: unsupported scheme in %q", remote.String())
	}

	return WorkItem{
		RemoteURL: remote.String(),
		LocalPath: strings.TrimPrefix(remote.Path, "/"),
		Kind:      kind,
	}, nil
}

// OutputPath computes the absolute on-disk path for item under outputRoot:
// outputRoot/<segments|keys>/item.LocalPath. It defends against path
// traversal: the resolved path must stay rooted under outputRoot even if a
// server-controlled URI tries to reference "../../etc/passwd".
func OutputPath(outputRoot string, item WorkItem) (string, error) {
	joined := filepath.Join(outputRoot, item.Kind.subdir(), filepath.FromSlash(item.LocalPath))

	rootAbs, err := filepath.Abs(outputRoot)
	if err != nil {
		return "", fmt.Errorf("resolver: abs(%q): %w", outputRoot, err)
	}
	joinedAbs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolver: abs(%q): %w", joined, err)
	}
	if joinedAbs != rootAbs && !strings.HasPrefix(joinedAbs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("resolver: resolved path %q escapes output root %q", joinedAbs, rootAbs)
	}
	return joinedAbs, nil
}

// MkdirCache is a process-wide, mutex-protected set of directories already
// created, so concurrent dispatcher workers writing into the same segment
// directory don't each pay a redundant MkdirAll syscall. Constructed
// explicitly and passed to callers rather than used as a package-level
// global, so tests and multiple independent dispatch runs don't share state.
type MkdirCache struct {
	mu      sync.Mutex
	created map[string]struct{}
}

func NewMkdirCache() *MkdirCache {
	return &MkdirCache{created: make(map[string]struct{})}
}

// EnsureDir creates dir (and its parents) if it has not already been
// created by this cache, returning any MkdirAll error.
func (c *MkdirCache) EnsureDir(dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.created[dir]; ok {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("resolver: mkdir %s: %w", dir, err)
	}

	c.created[dir] = struct{}{}
	return nil
}

// EnsureParent is EnsureDir for the parent directory of path.
func (c *MkdirCache) EnsureParent(path string) error {
	return c.EnsureDir(filepath.Dir(path))
}
