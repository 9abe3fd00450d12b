package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/streamres/internal/errors"
	"github.com/vango-dev/streamres/pkg/resource"
)

// maxRequestBody bounds PUT /feeds/{name}/request bodies.
const maxRequestBody = 64 << 10

type feedSummary struct {
	Name   string          `json:"name"`
	Kind   string          `json:"kind"`
	Status resource.Status `json:"status"`
}

type pushBody struct {
	Request *string `json:"request"`
}

type reloadResult struct {
	Scheduled bool `json:"scheduled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "feeds": s.feeds.Len()})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	feeds := s.feeds.List()
	out := make([]feedSummary, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, feedSummary{Name: f.Name(), Kind: f.Kind(), Status: f.Resource().Status().Get()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.Snapshot())
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}

	var body pushBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.CodeRequestRejected, err).
			WithSuggestion(`send {"request":"..."}`))
		return
	}
	if body.Request == nil {
		writeError(w, http.StatusBadRequest, errors.New(errors.CodeRequestRejected).
			WithDetail("missing \"request\" field").
			WithSuggestion("use DELETE to clear the request"))
		return
	}

	s.logger.Debug("request pushed", "feed", f.Name(), "request", *body.Request)
	f.Push(*body.Request)
	writeJSON(w, http.StatusAccepted, f.Snapshot())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}
	s.logger.Debug("request cleared", "feed", f.Name())
	f.Clear()
	writeJSON(w, http.StatusAccepted, f.Snapshot())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}
	if !f.Reload() {
		writeJSON(w, http.StatusConflict, reloadResult{Scheduled: false})
		return
	}
	s.logger.Info("reload scheduled", "feed", f.Name())
	writeJSON(w, http.StatusAccepted, reloadResult{Scheduled: true})
}

// feed resolves the {name} parameter, writing a 404 if it is unknown.
func (s *Server) feed(w http.ResponseWriter, r *http.Request) (*Feed, bool) {
	name := chi.URLParam(r, "name")
	f, ok := s.feeds.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New(errors.CodeUnknownResource).WithDetail("no feed named %q", name))
		return nil, false
	}
	return f, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err *errors.StreamError) {
	writeJSON(w, status, map[string]any{"error": err})
}
