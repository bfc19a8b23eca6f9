package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"billscan/pkg/extract"
)

func storedUpload(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "1_123.png")
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestDeletesFileOnExtractionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"no text found"}`))
	}))
	defer srv.Close()

	path := storedUpload(t, 100)
	p := &Pipeline{Extractor: extract.NewClient(srv.URL, time.Second)}
	_, _, err := p.Ingest(context.Background(), 1, path)
	var ee *extract.Error
	if !errors.As(err, &ee) {
		t.Fatalf("expected extraction error got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("stored upload must be deleted after a failed extraction")
	}
}

func TestIngestDeletesFileWhenServiceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	path := storedUpload(t, 100)
	p := &Pipeline{Extractor: extract.NewClient(srv.URL, time.Second)}
	_, _, err := p.Ingest(context.Background(), 1, path)
	if !errors.Is(err, extract.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("stored upload must be deleted when the service is down")
	}
}

func TestIngestRejectsOversizedStoredFile(t *testing.T) {
	// the extractor must never be called for an oversized file
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("extractor called for oversized file")
	}))
	defer srv.Close()

	path := storedUpload(t, MaxFileBytes+1)
	p := &Pipeline{Extractor: extract.NewClient(srv.URL, time.Second)}
	_, _, err := p.Ingest(context.Background(), 1, path)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("oversized upload must be deleted")
	}
}

func TestIngestMissingFile(t *testing.T) {
	p := &Pipeline{Extractor: extract.NewClient("http://127.0.0.1:0", time.Second)}
	_, _, err := p.Ingest(context.Background(), 1, filepath.Join(t.TempDir(), "gone.png"))
	if err == nil {
		t.Fatal("expected error for missing stored file")
	}
}
