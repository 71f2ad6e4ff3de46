// Package health provides a simple reachability check for a manifest URL,
// used by cmd/hlsfetch before starting a poll loop against a live source.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CheckManifest fetches manifestURL (GET, body discarded) and returns nil if
// it responded 200, or an error describing why it didn't.
func CheckManifest(ctx context.Context, manifestURL string) error {
	if manifestURL == "" {
		return fmt.Errorf("no manifest URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("manifest unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("manifest returned HTTP %d", resp.StatusCode)
	}
	return nil
}
