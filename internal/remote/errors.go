package remote

import (
	"fmt"

	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

// Error is returned for any failed backend call: an unexpected status, or a
// transport failure (Status == 0). It unwraps to a remote-coded domain error,
// so errors.Is(err, errors.ErrRemote) holds for every Error.
type Error struct {
	Err     error
	Op      string
	URL     string
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote %s %s: %s", e.Op, e.URL, e.Message)
	}
	return fmt.Sprintf("remote %s %s: status %d: %s", e.Op, e.URL, e.Status, e.Message)
}

// Unwrap exposes the remote-coded domain error carrying the cause.
func (e *Error) Unwrap() error {
	de := domainerrors.Remote(e.Status, e.Message)
	if e.Err != nil {
		return de.WithCause(e.Err)
	}
	return de
}

// IsNetwork reports whether the request never produced a response.
func (e *Error) IsNetwork() bool {
	return e.Status == 0
}
