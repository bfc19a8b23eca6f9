// scan-worker watches a drop directory and ingests receipt files placed
// there out-of-band (scanner share, manual copy) for a configured user,
// through the same pipeline the upload endpoint uses.
//
// Env: DB_DSN, SCAN_DIR (default "dropbox"), SCAN_USER_ID, OCR_URL.
package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"billscan/pkg/extract"
	"billscan/pkg/ingest"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	userID, err := strconv.ParseUint(os.Getenv("SCAN_USER_ID"), 10, 64)
	if err != nil || userID == 0 {
		log.Fatal("SCAN_USER_ID must be set to the owning user's id")
	}

	dir := os.Getenv("SCAN_DIR")
	if dir == "" {
		dir = "dropbox"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("failed to create scan dir %s: %v", dir, err)
	}

	ocrURL := os.Getenv("OCR_URL")
	if ocrURL == "" {
		ocrURL = "http://127.0.0.1:8000"
	}

	pipeline := &ingest.Pipeline{
		Extractor: extract.NewClient(ocrURL, extract.DefaultTimeout),
		DB:        db,
	}

	if err := watch(context.Background(), dir, uint(userID), pipeline); err != nil {
		log.Fatal(err)
	}
}

// watch runs the fsnotify event loop and the ingest loop under one group;
// either failing stops the worker.
func watch(ctx context.Context, dir string, userID uint, pipeline *ingest.Pipeline) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// debounce map of files still being written
		defer close(fileCh)
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if ev.Op&fsnotify.Create == fsnotify.Create && supportedExt(ev.Name) {
					pending[ev.Name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for path, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- path
						delete(pending, path)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				log.Printf("watch error: %v", err)
			}
		}
	})

	g.Go(func() error {
		for path := range fileCh {
			bill, _, err := pipeline.Ingest(ctx, userID, path)
			if err != nil {
				log.Printf("ingest %s failed: %v", filepath.Base(path), err)
				continue
			}
			log.Printf("ingested %s: bill id=%d place=%q price=%.2f", filepath.Base(path), bill.ID, bill.Place, bill.Price)
		}
		return nil
	})

	return g.Wait()
}

func supportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".pdf":
		return true
	}
	return false
}
