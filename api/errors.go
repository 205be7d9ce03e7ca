package api

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/filter"
)

// handleError writes err as a 400 when the request caused it and as a 500
// otherwise.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var br *badRequest
	if errors.As(err, &br) {
		s.writeError(w, http.StatusBadRequest, br.messages...)
		return
	}

	var verr *filter.ValidationError
	if errors.As(err, &verr) {
		s.writeError(w, http.StatusBadRequest, verr.Messages()...)
		return
	}

	if errors.Is(err, filtergroup.ErrInvalidRequest) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.internalServerError(w, r, err)
}
