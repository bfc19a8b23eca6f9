package bills

import (
	"errors"
	"fmt"
)

// ErrNotFound means no bill with that id exists under the requesting owner.
// Another owner's bill answers the same way so ids cannot be probed.
var ErrNotFound = errors.New("bill not found")

// ErrInvalidID means the supplied bill id is not a well-formed identifier.
var ErrInvalidID = errors.New("invalid bill id")

// ValidationError names the first field that failed its invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
