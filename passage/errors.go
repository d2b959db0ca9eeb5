package passage

import (
	"fmt"

	"github.com/ngmks/LEANN"
)

// ErrDuplicateID builds the error Append returns when id already exists.
func ErrDuplicateID(id string) error {
	return leann.NewError(leann.KindDuplicateID, fmt.Sprintf("passage id %q already exists", id), nil)
}

// ErrOutOfRange builds the error GetByNode returns when n is outside [0, n).
func ErrOutOfRange(node uint32, n int) error {
	return leann.NewError(leann.KindInvalidInput, fmt.Sprintf("node %d out of range [0, %d)", node, n), nil)
}

// ErrNotFound builds the error GetByID returns when id is unknown.
func ErrNotFound(id string) error {
	return leann.NewError(leann.KindInvalidInput, fmt.Sprintf("passage id %q not found", id), nil)
}

// ErrCorrupt builds the error returned when a stored file fails validation.
func ErrCorrupt(path, reason string) error {
	return leann.NewError(leann.KindCorrupt, fmt.Sprintf("%s: %s", path, reason), nil)
}
