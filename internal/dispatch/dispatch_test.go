package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/hlsfetch/internal/resolver"
)

func TestDispatcher_fetchesAndWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("segment-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(Config{Workers: 2, OutputDir: dir, RetryWait: 10 * time.Millisecond}, resolver.NewMkdirCache(), nil)

	item, err := resolver.Resolve(srv.URL+"/playlist.m3u8", "seg0.ts", resolver.KindSegment)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	d.Enqueue(item)
	d.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results := d.Run(ctx)

	var got []Result
	for r := range results {
		got = append(got, r)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Err != nil {
		t.Fatalf("result err = %v", got[0].Err)
	}

	wantPath := filepath.Join(dir, "segments", "seg0.ts")
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", wantPath, err)
	}
	if string(data) != "segment-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestDispatcher_keysLandUnderKeysSubdir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("key-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(Config{Workers: 1, OutputDir: dir, RetryWait: 10 * time.Millisecond}, resolver.NewMkdirCache(), nil)

	item, err := resolver.Resolve(srv.URL+"/playlist.m3u8", "k1", resolver.KindKey)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	d.Enqueue(item)
	d.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got Result
	for r := range d.Run(ctx) {
		got = r
	}
	if got.Err != nil {
		t.Fatalf("result err = %v", got.Err)
	}
	if _, err := os.Stat(filepath.Join(dir, "keys", "k1")); err != nil {
		t.Fatalf("key not written under keys/: %v", err)
	}
}

func TestDispatcher_nonTwoXXBecomesRecoverableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(Config{Workers: 1, OutputDir: dir, RetryWait: 10 * time.Millisecond}, resolver.NewMkdirCache(), nil)
	item, err := resolver.Resolve(srv.URL+"/playlist.m3u8", "missing.ts", resolver.KindSegment)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	d.Enqueue(item)
	d.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got Result
	for r := range d.Run(ctx) {
		got = r
	}
	if got.Err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	status, ok := IsHTTPStatusError(got.Err)
	if !ok || status != http.StatusNotFound {
		t.Errorf("err = %v, want HTTPStatusError(404)", got.Err)
	}
	// The worker must keep running rather than crash the process.
}

func TestWorkQueue_fifoOrder(t *testing.T) {
	q := NewWorkQueue()
	q.Add(resolver.WorkItem{RemoteURL: "a"})
	q.Add(resolver.WorkItem{RemoteURL: "b"})
	first, ok := q.Take()
	if !ok || first.RemoteURL != "a" {
		t.Errorf("first = %+v", first)
	}
	second, ok := q.Take()
	if !ok || second.RemoteURL != "b" {
		t.Errorf("second = %+v", second)
	}
	if _, ok := q.Take(); ok {
		t.Error("expected empty queue")
	}
}
