// Package api serves stored evaluation runs over HTTP and gRPC.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/perception-eval/internal/httputil"
	"github.com/banshee-data/perception-eval/internal/security"
	"github.com/banshee-data/perception-eval/internal/storage/sqlite"
	"github.com/banshee-data/perception-eval/internal/version"
)

// RunReader is the subset of the run store the API reads from.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*sqlite.Run, error)
	ListRuns(ctx context.Context, scenario string, limit int) ([]*sqlite.Run, error)
	ModeScores(ctx context.Context, runID string) ([]sqlite.ModeScore, error)
	LabelScores(ctx context.Context, runID, mode, threshold string) ([]sqlite.LabelScore, error)
	FrameVerdicts(ctx context.Context, runID string, failedOnly bool) ([]sqlite.FrameVerdict, error)
	DeleteRun(ctx context.Context, runID string) error
}

var _ RunReader = (*sqlite.RunStore)(nil)

const defaultListLimit = 50

// RunDetail is a run together with its per-combination means.
type RunDetail struct {
	*sqlite.Run
	Modes []sqlite.ModeScore `json:"modes"`
}

type Server struct {
	runs RunReader
	// artifactDir holds one directory per run id with the files the CLI
	// wrote for it (report.json, report.html, PNG plots).
	artifactDir string
}

// NewServer serves runs from store. artifactDir may be empty, in which case
// run files are not served.
func NewServer(store RunReader, artifactDir string) *Server {
	return &Server{runs: store, artifactDir: artifactDir}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", s.showVersion)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)
	mux.HandleFunc("GET /api/runs/{id}/labels", s.listLabelScores)
	mux.HandleFunc("GET /api/runs/{id}/frames", s.listFrames)
	mux.HandleFunc("GET /api/runs/{id}/files/{name}", s.serveRunFile)
	return mux
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Info())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), r.URL.Query().Get("scenario"), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*sqlite.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	modes, err := s.runs.ModeScores(r.Context(), run.RunID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load scores: %v", err))
		return
	}
	httputil.WriteJSONOK(w, RunDetail{Run: run, Modes: modes})
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	err := s.runs.DeleteRun(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		httputil.NotFound(w, "run not found")
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("Failed to delete run: %v", err))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) listLabelScores(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	scores, err := s.runs.LabelScores(r.Context(), run.RunID, q.Get("mode"), q.Get("threshold"))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load label scores: %v", err))
		return
	}
	if q.Get("curves") != "true" {
		for i := range scores {
			scores[i].Curve = nil
		}
	}
	if scores == nil {
		scores = []sqlite.LabelScore{}
	}
	httputil.WriteJSONOK(w, scores)
}

func (s *Server) listFrames(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	failedOnly := false
	if f := r.URL.Query().Get("failed"); f != "" {
		b, err := strconv.ParseBool(f)
		if err != nil {
			httputil.BadRequest(w, "Invalid 'failed' parameter")
			return
		}
		failedOnly = b
	}
	frames, err := s.runs.FrameVerdicts(r.Context(), run.RunID, failedOnly)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load frames: %v", err))
		return
	}
	if frames == nil {
		frames = []sqlite.FrameVerdict{}
	}
	httputil.WriteJSONOK(w, frames)
}

func (s *Server) serveRunFile(w http.ResponseWriter, r *http.Request) {
	if s.artifactDir == "" {
		httputil.NotFound(w, "run files are not served")
		return
	}
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	runDir, err := security.ResolveWithin(s.artifactDir, security.SanitizeFilename(run.RunID))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	path, err := security.ResolveWithin(runDir, r.PathValue("name"))
	if err != nil {
		httputil.BadRequest(w, "invalid file name")
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		httputil.NotFound(w, "file not found")
		return
	}
	if filepath.Ext(path) == ".html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	http.ServeFile(w, r, path)
}

// lookupRun writes the error response itself when it returns false.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*sqlite.Run, bool) {
	run, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(w, "run not found")
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load run: %v", err))
		return nil, false
	}
	return run, true
}
