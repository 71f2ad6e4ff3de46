// Command hlsfetch parses an HLS manifest, watches it for new segments and
// keys, and downloads whatever it finds into an output directory. Given a
// static VOD playlist it runs once and exits; given --poll-interval and
// --manifest-url it polls the manifest on an interval (a plain GET on each
// tick, without If-None-Match or If-Modified-Since) and
// keeps dispatching until the stream ends or it is interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/snapetech/hlsfetch/internal/config"
	"github.com/snapetech/hlsfetch/internal/dispatch"
	"github.com/snapetech/hlsfetch/internal/driver"
	"github.com/snapetech/hlsfetch/internal/health"
	"github.com/snapetech/hlsfetch/internal/resolver"
	"github.com/snapetech/hlsfetch/internal/watcher"
)

func main() {
	envCfg := config.Load()

	baseURL := flag.String("base-url", "", "base URL the manifest was served from (required)")
	flag.StringVar(baseURL, "b", "", "shorthand for --base-url")
	manifestPath := flag.String("manifest-path", "", "local path to the manifest file")
	flag.StringVar(manifestPath, "m", "", "shorthand for --manifest-path")
	outputDir := flag.String("output-dir", "", "directory to write downloaded files under (required)")
	flag.StringVar(outputDir, "o", "", "shorthand for --output-dir")

	manifestURL := flag.String("manifest-url", "", "fetch the manifest itself over HTTP instead of --manifest-path")
	workers := flag.Int("workers", envCfg.Workers, "download worker pool size")
	retryWait := flag.Duration("retry-wait", envCfg.RetryWait, "idle worker poll interval")
	rateLimit := flag.Float64("rate-limit", envCfg.RateLimit, "max requests/sec across the dispatcher; 0 = unlimited")
	metricsAddr := flag.String("metrics-addr", envCfg.MetricsAddr, "if set, serve Prometheus metrics on this address")
	stateDB := flag.String("state-db", envCfg.StateDBPath, "if set, persist watcher state in this SQLite database")
	pollInterval := flag.Duration("poll-interval", envCfg.PollInterval, "if > 0, re-fetch the manifest on this interval instead of running once")
	flag.Parse()

	if *baseURL == "" || *outputDir == "" || (*manifestPath == "" && *manifestURL == "") {
		fmt.Fprintln(os.Stderr, "usage: hlsfetch --base-url URL --output-dir DIR (--manifest-path PATH | --manifest-url URL)")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *pollInterval > 0 && *manifestURL == "" {
		log.Fatal("hlsfetch: --poll-interval requires --manifest-url")
	}
	if *pollInterval > 0 {
		checkCtx, checkCancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := health.CheckManifest(checkCtx, *manifestURL); err != nil {
			log.Printf("hlsfetch: manifest reachability check failed, polling anyway: %v", err)
		}
		checkCancel()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	metrics := dispatch.NewMetrics(reg)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", dispatch.Handler(reg))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("hlsfetch: metrics server: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			srv.Shutdown(shutCtx)
		}()
	}

	var store *watcher.Store
	if *stateDB != "" {
		s, err := watcher.OpenStore(*stateDB)
		if err != nil {
			log.Fatalf("hlsfetch: open state db: %v", err)
		}
		defer s.Close()
		store = s
	}

	mkdir := resolver.NewMkdirCache()
	d := dispatch.New(dispatch.Config{
		Workers:   *workers,
		OutputDir: *outputDir,
		RetryWait: *retryWait,
		RateLimit: *rateLimit,
	}, mkdir, metrics)

	var failures atomic.Int64
	results := d.Run(ctx)
	resultsDone := make(chan struct{})
	go func() {
		defer close(resultsDone)
		for r := range results {
			if r.Err != nil {
				failures.Add(1)
				log.Printf("hlsfetch: download failed: %s: %v", r.Item.RemoteURL, r.Err)
				continue
			}
			log.Printf("hlsfetch: wrote %s (%d bytes)", r.Item.LocalPath, r.Bytes)
		}
	}()

	manifestIdentity := *manifestURL
	if manifestIdentity == "" {
		manifestIdentity = *manifestPath
	}

	session, err := driver.NewSession(ctx, *baseURL, manifestIdentity, store, d)
	if err != nil {
		log.Fatalf("hlsfetch: %v", err)
	}

	var src driver.ManifestSource
	if *manifestURL != "" {
		src = driver.HTTPSource{URL: *manifestURL}
	} else {
		src = driver.FileSource{Path: *manifestPath}
	}

	if *pollInterval <= 0 {
		if _, err := session.RunOnce(ctx, src); err != nil {
			log.Fatalf("hlsfetch: %v", err)
		}
		d.Stop()
		<-resultsDone
		reportAndExit(failures.Load())
		return
	}

	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()
pollLoop:
	for {
		endlist, err := session.RunOnce(ctx, src)
		if err != nil {
			log.Printf("hlsfetch: poll: %v", err)
		}
		if endlist {
			log.Print("hlsfetch: EXT-X-ENDLIST seen, stopping poll loop")
			break
		}
		select {
		case <-ctx.Done():
			break pollLoop
		case <-ticker.C:
		}
	}
	d.Stop()
	<-resultsDone
	reportAndExit(failures.Load())
}

// reportAndExit prints the shutdown summary required by the dispatcher's
// error-handling policy and exits non-zero if any download failed, distinct
// from the os.Exit(2) used above for argument errors.
func reportAndExit(failed int64) {
	if failed > 0 {
		log.Printf("hlsfetch: summary: %d download(s) failed", failed)
		os.Exit(1)
	}
	log.Print("hlsfetch: summary: all downloads succeeded")
}
