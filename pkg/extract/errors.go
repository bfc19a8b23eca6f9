package extract

import "errors"

// ErrUnavailable is returned when the extraction service cannot be reached
// (connection refused, timeout).
var ErrUnavailable = errors.New("extraction service unreachable")

// Error is a non-2xx reply from the extraction service.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "extraction failed"
}
