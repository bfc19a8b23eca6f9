// Package ingest runs an uploaded receipt through extraction, sanitization
// and persistence. Its contract: a failed extraction never leaves an
// orphaned file behind, and a failed persist never deletes one.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"

	"billscan/models"
	"billscan/pkg/bills"
	"billscan/pkg/extract"
	"billscan/pkg/sanitize"
)

// MaxFileBytes is the upload size cap, enforced at the transport edge and
// re-checked here against the stored file (the two can disagree when the
// edge saw a streamed size).
const MaxFileBytes = 10 << 20

// ErrFileTooLarge is returned when the stored file exceeds MaxFileBytes.
var ErrFileTooLarge = fmt.Errorf("file too large, maximum size is 10MB")

// PersistError wraps a store-write failure after a successful extraction.
// The uploaded file is intentionally kept in this case.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "failed to save bill: " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }

// Pipeline wires the extraction client to the bill store.
type Pipeline struct {
	Extractor *extract.Client
	DB        *gorm.DB
}

// Ingest extracts fields from the stored upload at path, sanitizes them and
// persists a bill owned by userID. On any failure before a successful
// persist the stored file is removed (best effort); the sanitized field
// view used to build the record is returned alongside it.
func (p *Pipeline) Ingest(ctx context.Context, userID uint, path string) (*models.Bill, sanitize.Fields, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, sanitize.Fields{}, fmt.Errorf("stored upload missing: %w", err)
	}
	if info.Size() > MaxFileBytes {
		p.cleanup(path)
		return nil, sanitize.Fields{}, ErrFileTooLarge
	}

	raw, err := p.Extractor.Extract(ctx, path)
	if err != nil {
		p.cleanup(path)
		return nil, sanitize.Fields{}, err
	}

	fields := sanitize.Bill(raw, time.Now().UTC())

	b := &models.Bill{
		UserID:    userID,
		Place:     fields.Place,
		Mode:      fields.Mode,
		Date:      fields.Date,
		Price:     fields.Price,
		RawText:   fields.RawText,
		ImagePath: path,
	}
	if err := bills.Insert(p.DB, b); err != nil {
		// keep the file: extraction succeeded, the record can be retried
		return nil, fields, &PersistError{Err: err}
	}
	return b, fields, nil
}

// cleanup removes a stored upload. Best effort only; a leftover file does
// not affect persisted state.
func (p *Pipeline) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: failed to delete upload %s: %v", path, err)
	}
}
