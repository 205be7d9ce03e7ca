package filtergroup

import (
	"github.com/pkg/errors"
)

// ErrInvalidRequest matches, via errors.Is, every search error caused by the
// request itself rather than by the backend: bad limits, malformed cursors
// and filters over the complexity limits.
var ErrInvalidRequest = errors.New("invalid search request")

type requestError struct {
	cause error
}

func (e *requestError) Error() string { return e.cause.Error() }

func (e *requestError) Unwrap() []error { return []error{e.cause, ErrInvalidRequest} }

// InvalidRequest marks err as caused by the request. It returns nil for a
// nil err.
func InvalidRequest(err error) error {
	if err == nil {
		return nil
	}
	return &requestError{cause: err}
}
