package api

import (
	"net/http"
	"slices"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/document"
	"github.com/theplant/filtergroup/filter"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	res := healthResponse{
		Status:    "operational",
		Timestamp: time.Now().UTC(),
		Services:  map[string]string{"database": "connected"},
	}
	status := http.StatusOK
	if err := s.backend.Ping(r.Context()); err != nil {
		s.logger.Warn("backend ping failed", "error", err)
		res.Status = "degraded"
		res.Services["database"] = "disconnected"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, res)
}

func (s *Server) listModulesHandler(w http.ResponseWriter, _ *http.Request) {
	modules := s.modules()
	s.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: modules, Total: lo.ToPtr(len(modules))})
}

// searcher returns the searcher of the module named in the path, writing a
// 404 when there is none.
func (s *Server) searcher(w http.ResponseWriter, r *http.Request) (string, filtergroup.Searcher[*document.Document], bool) {
	module := r.PathValue("module")
	searcher, ok := s.searchers[module]
	if !ok {
		s.notFound(w, "Unknown module "+module+".")
		return module, nil, false
	}
	return module, searcher, true
}

func (s *Server) moduleHealthHandler(w http.ResponseWriter, r *http.Request) {
	module, _, ok := s.searcher(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"module":  module,
		"status":  "operational",
		"version": Version,
	})
}

// listDocumentsHandler returns the first page of a module, unfiltered.
func (s *Server) listDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	module, searcher, ok := s.searcher(w, r)
	if !ok {
		return
	}
	ctx := filtergroup.WithSkip(r.Context(), filtergroup.Skip{Edges: true, PageInfo: true})
	conn, err := searcher.Search(ctx, &filtergroup.SearchRequest{})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	nodes := conn.Nodes
	if nodes == nil {
		nodes = []*document.Document{}
	}
	s.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: nodes, Total: conn.TotalCount, Module: module})
}

type searchRequest struct {
	Filter jsoniter.RawMessage `json:"filter"`
	First  *int                `json:"first"`
	After  *string             `json:"after"`
	Last   *int                `json:"last"`
	Before *string             `json:"before"`
}

// parseFilter decodes the filter of a search body. A missing or null filter
// matches every document.
func parseFilter(raw jsoniter.RawMessage) (*filter.FilterGroup, error) {
	if len(raw) == 0 || slices.Equal(raw, jsoniter.RawMessage("null")) {
		return nil, nil
	}
	g, err := filter.Parse(raw)
	if err != nil {
		var verr *filter.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, newBadRequest("Filter must be a filter group object.")
	}
	return g, nil
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	module, searcher, ok := s.searcher(w, r)
	if !ok {
		return
	}

	var body searchRequest
	if err := s.readJSON(w, r, &body); err != nil {
		s.handleError(w, r, err)
		return
	}

	g, err := parseFilter(body.Filter)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	ctx := filtergroup.WithSkip(r.Context(), filtergroup.Skip{Nodes: true})
	conn, err := searcher.Search(ctx, &filtergroup.SearchRequest{
		Filter: g,
		First:  body.First,
		After:  body.After,
		Last:   body.Last,
		Before: body.Before,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: conn, Module: module})
}
