package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultTimeout bounds a single extraction round-trip.
const DefaultTimeout = 30 * time.Second

// RawFields is the unverified field bundle returned by the extraction
// service. Everything is loosely typed; pkg/sanitize turns it into a
// persistable record.
type RawFields struct {
	Place   any `json:"place"`
	Mode    any `json:"mode"`
	Price   any `json:"price"`
	Date    any `json:"date"`
	RawText any `json:"rawText"`
}

// envelope is the newer response shape {success, data: {...}}. Older
// deployments return the fields at the top level.
type envelope struct {
	Data *RawFields `json:"data"`
}

// Client talks to the external OCR extraction service.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient builds a client for the service at baseURL. A zero timeout
// falls back to DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

// Extract posts the file at path to the service and decodes the extracted
// field bundle. Transport-level failures (service down, timeout) wrap
// ErrUnavailable; a non-2xx reply becomes *Error carrying the service's
// detail message when it sent one.
func (c *Client) Extract(ctx context.Context, path string) (RawFields, error) {
	f, err := os.Open(path)
	if err != nil {
		return RawFields{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return RawFields{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return RawFields{}, err
	}
	if err := mw.Close(); err != nil {
		return RawFields{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", buf)
	if err != nil {
		return RawFields{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return RawFields{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RawFields{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{StatusCode: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &detail); err == nil {
			e.Detail = detail.Detail
		}
		return RawFields{}, e
	}

	return decodeFields(body)
}

// decodeFields tries the nested {data:{...}} shape first and falls back to
// flat top-level fields.
func decodeFields(body []byte) (RawFields, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Data != nil {
		return *env.Data, nil
	}
	var flat RawFields
	if err := json.Unmarshal(body, &flat); err != nil {
		return RawFields{}, fmt.Errorf("malformed extraction response: %w", err)
	}
	return flat, nil
}
