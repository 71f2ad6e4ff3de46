package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckManifest_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	if err := CheckManifest(context.Background(), srv.URL); err != nil {
		t.Fatalf("CheckManifest: %v", err)
	}
}

func TestCheckManifest_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	if err := CheckManifest(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 401")
	}
}

func TestCheckManifest_emptyURL(t *testing.T) {
	if err := CheckManifest(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
