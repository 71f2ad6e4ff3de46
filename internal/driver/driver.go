// Package driver wires the lexer, decoder, watcher, resolver and
// dispatcher together into the end-to-end fetch loop cmd/hlsfetch drives.
// It is factored out of main() so the full pipeline is testable without a
// process boundary.
package driver

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/snapetech/hlsfetch/internal/dispatch"
	"github.com/snapetech/hlsfetch/internal/httpclient"
	"github.com/snapetech/hlsfetch/internal/m3u8"
	"github.com/snapetech/hlsfetch/internal/m3u8/decode"
	"github.com/snapetech/hlsfetch/internal/m3u8/lex"
	"github.com/snapetech/hlsfetch/internal/m3u8/token"
	"github.com/snapetech/hlsfetch/internal/resolver"
	"github.com/snapetech/hlsfetch/internal/watcher"
)

// ManifestSource reads a manifest's current text. The driver doesn't care
// whether that means reading a local file or fetching a URL.
type ManifestSource interface {
	Read(ctx context.Context) (string, error)
}

// FileSource reads a manifest from a local path.
type FileSource struct{ Path string }

func (f FileSource) Read(ctx context.Context) (string, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("driver: read manifest file %s: %w", f.Path, err)
	}
	return string(b), nil
}

// HTTPSource fetches a manifest over HTTP on each Read call.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (h HTTPSource) Read(ctx context.Context) (string, error) {
	client := h.Client
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return "", fmt.Errorf("driver: build manifest request: %w", err)
	}
	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return "", fmt.Errorf("driver: fetch manifest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("driver: fetch manifest %s: status %d", h.URL, resp.StatusCode)
	}
	body := httpclient.DecodeBody(resp)
	defer body.Close()
	b, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("driver: read manifest body: %w", err)
	}
	return string(b), nil
}

// Pipeline runs lex -> token -> decode against a manifest's current text
// and returns the decoded lines.
func Pipeline(text string) ([]m3u8.DecodedLine, error) {
	lines, err := lex.Lex(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("driver: lex: %w", err)
	}
	m, err := decode.Decode(token.Tokenize(lines))
	if err != nil {
		return nil, fmt.Errorf("driver: decode: %w", err)
	}
	return m.Lines, nil
}

// HasEndList reports whether decoded lines contain EXT-X-ENDLIST.
func HasEndList(lines []m3u8.DecodedLine) bool {
	for _, l := range lines {
		if !l.IsURI && l.Tag.Kind == m3u8.TagEndList {
			return true
		}
	}
	return false
}

// Session ties a Watcher to a manifest identity and, optionally, a
// persistence Store, and a dispatcher to feed discovered work into. The
// dispatcher owns where downloads land on disk (dispatch.Config.OutputDir);
// Session only resolves remote URLs and routes WorkItems to it.
type Session struct {
	BaseURL          string
	ManifestIdentity string

	Watcher    *watcher.Watcher
	Store      *watcher.Store
	Dispatcher *dispatch.Dispatcher
}

// NewSession builds a Session, resuming the watcher's segment count from
// store if one is supplied. d's own Config carries the output directory it
// writes downloads into; Session only needs baseURL to resolve references.
func NewSession(ctx context.Context, baseURL, manifestIdentity string, store *watcher.Store, d *dispatch.Dispatcher) (*Session, error) {
	count := 0
	if store != nil {
		n, err := store.LoadSegmentCount(ctx, manifestIdentity)
		if err != nil {
			return nil, fmt.Errorf("driver: load watcher state: %w", err)
		}
		count = n
	}
	return &Session{
		BaseURL:          baseURL,
		ManifestIdentity: manifestIdentity,
		Watcher:          watcher.NewAt(count),
		Store:            store,
		Dispatcher:       d,
	}, nil
}

// RunOnce reads src once, feeds any new segments/keys to the dispatcher,
// persists watcher state if a store is configured, and reports whether
// EXT-X-ENDLIST was seen.
func (s *Session) RunOnce(ctx context.Context, src ManifestSource) (endlist bool, err error) {
	text, err := src.Read(ctx)
	if err != nil {
		return false, err
	}
	lines, err := Pipeline(text)
	if err != nil {
		return false, err
	}

	for _, ev := range s.Watcher.Update(lines) {
		kind := resolver.KindSegment
		if ev.Kind == watcher.FileAddKey {
			kind = resolver.KindKey
		}
		item, rerr := resolver.Resolve(s.BaseURL, ev.URI, kind)
		if rerr != nil {
			log.Printf("driver: resolve %s: %v, skipping", ev.URI, rerr)
			continue
		}
		s.Dispatcher.Enqueue(item)
		if s.Store != nil && ev.Kind == watcher.FileAddKey {
			_ = s.Store.RecordKeyEmission(ctx, s.ManifestIdentity, ev.URI)
		}
	}
	if s.Store != nil {
		if err := s.Store.SaveSegmentCount(ctx, s.ManifestIdentity, s.Watcher.SegmentCount()); err != nil {
			return false, fmt.Errorf("driver: save watcher state: %w", err)
		}
	}

	return HasEndList(lines), nil
}
