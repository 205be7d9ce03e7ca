package api

import (
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const maxBodyBytes = 1_048_576

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var strictJSON = jsoniter.Config{
	EscapeHTML:            true,
	SortMapKeys:           true,
	DisallowUnknownFields: true,
}.Froze()

type apiResponse struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Total   *int     `json:"total,omitempty"`
	Module  string   `json:"module,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// badRequest is an error whose messages are returned to the client as is.
type badRequest struct {
	messages []string
}

func (e *badRequest) Error() string {
	return fmt.Sprintf("bad request: %v", e.messages)
}

func newBadRequest(messages ...string) error {
	return &badRequest{messages: messages}
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			return newBadRequest(fmt.Sprintf("Body must not be larger than %d bytes.", maxBytesError.Limit))
		}
		return errors.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return newBadRequest("Body cannot be empty.")
	}
	if err := strictJSON.Unmarshal(data, dst); err != nil {
		return newBadRequest(fmt.Sprintf("Body contains badly-formed JSON: %s", err))
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	js, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("cannot encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	js = append(js, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js) //nolint:errcheck
}

func (s *Server) writeError(w http.ResponseWriter, status int, messages ...string) {
	s.writeJSON(w, status, apiResponse{Success: false, Errors: messages})
}

func (s *Server) logError(r *http.Request, err error) {
	s.logger.Error("internal server error", "method", r.Method, "path", r.RequestURI, "remote-addr", r.RemoteAddr, "error", err)
}

func (s *Server) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(r, err)
	s.writeError(w, http.StatusInternalServerError, "Internal server error.")
}

func (s *Server) notFound(w http.ResponseWriter, message string) {
	s.writeError(w, http.StatusNotFound, message)
}
