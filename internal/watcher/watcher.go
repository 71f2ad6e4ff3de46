// Package watcher implements the additive manifest differ: given a freshly
// decoded manifest, it reports which segments and keys are new since the
// last call. It never re-reads the manifest itself and never touches the
// network or filesystem; it is a pure, single-owner, in-process state
// machine, deliberately not safe for concurrent use from multiple
// goroutines (a watcher belongs to exactly one polling loop).
package watcher

import "github.com/snapetech/hlsfetch/internal/m3u8"

// FileAddKind distinguishes the two kinds of "new file" event the watcher
// can report.
type FileAddKind int

const (
	FileAddSegment FileAddKind = iota
	FileAddKey
)

func (k FileAddKind) String() string {
	if k == FileAddKey {
		return "Key"
	}
	return "Segment"
}

// FileAdd is one newly observed reference to a remote file.
type FileAdd struct {
	Kind FileAddKind
	URI  string
}

// Watcher tracks how much of a manifest's segment list has already been
// seen. Segment emission is at-most-once per position: a segment already
// seen (even if the server has since rewritten or trimmed playlist
// history) is never re-emitted. Key tags are different: every occurrence
// of an EXT-X-KEY is emitted, without coalescing, because a repeated KEY
// tag can legitimately signal key rotation rather than a duplicate.
type Watcher struct {
	segmentCount int
}

// New returns a Watcher with no segments seen yet.
func New() *Watcher {
	return &Watcher{}
}

// NewAt returns a Watcher resuming from a previously persisted segment
// count, for the live-poll driver restarting against a watcher.Store.
func NewAt(segmentCount int) *Watcher {
	return &Watcher{segmentCount: segmentCount}
}

// SegmentCount returns the number of segment positions already emitted.
func (w *Watcher) SegmentCount() int { return w.segmentCount }

// Update walks a freshly decoded manifest's lines and returns the FileAdd
// events for anything new: segments at a position beyond what has already
// been seen, and every EXT-X-KEY tag (a key tag without a URI attribute
// emits with an empty URI).
func (w *Watcher) Update(lines []m3u8.DecodedLine) []FileAdd {
	var events []FileAdd
	pos := 0
	for _, line := range lines {
		if line.IsURI {
			pos++
			if pos > w.segmentCount {
				w.segmentCount = pos
				events = append(events, FileAdd{Kind: FileAddSegment, URI: line.URI})
			}
			continue
		}
		if line.Tag.Kind == m3u8.TagKey {
			events = append(events, FileAdd{Kind: FileAddKey, URI: line.Tag.Key.URI})
		}
	}
	return events
}
