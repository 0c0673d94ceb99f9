package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cartridge/dinosweep/internal/middleware"
	"github.com/cartridge/dinosweep/internal/report"
	"github.com/cartridge/dinosweep/internal/storage"
	"github.com/cartridge/dinosweep/internal/sweep"
	"github.com/cartridge/dinosweep/internal/types"
)

// Server serves stored sweeps and their reports.
type Server struct {
	store    storage.ResultStore
	recorder middleware.RequestRecorder
	logger   zerolog.Logger
}

// NewServer constructs a Server instance. recorder may be nil.
func NewServer(store storage.ResultStore, recorder middleware.RequestRecorder, logger zerolog.Logger) *Server {
	return &Server{store: store, recorder: recorder, logger: logger}
}

type summaryResponse struct {
	Sweep types.Sweep          `json:"sweep"`
	Cells []report.CellSummary `json:"cells"`
	Best  *report.CellSummary  `json:"best,omitempty"`
}

// Routes builds the HTTP router for the report service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	if s.recorder != nil {
		r.Use(middleware.Metrics(s.recorder))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sweeps", s.handleListSweeps)
		r.Get("/sweeps/{sweepID}", s.handleGetSweep)
		r.Get("/sweeps/{sweepID}/episodes", s.handleListEpisodes)
		r.Get("/sweeps/{sweepID}/summary", s.handleSummary)
		r.Get("/sweeps/{sweepID}/heatmap", s.handleHeatmap)
	})
	return r
}

func (s *Server) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	sweeps, err := s.store.ListSweeps(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if sweeps == nil {
		sweeps = []types.Sweep{}
	}
	s.writeJSON(w, http.StatusOK, sweeps)
}

func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) {
	sw, err := s.store.GetSweep(r.Context(), chi.URLParam(r, "sweepID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sw)
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListEpisodes(r.Context(), chi.URLParam(r, "sweepID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if records == nil {
		records = []types.EpisodeRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sw, stats, err := s.loadStats(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	resp := summaryResponse{Sweep: sw, Cells: report.Summarize(stats)}
	if best, ok := report.Best(resp.Cells); ok {
		resp.Best = &best
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	_, stats, err := s.loadStats(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if stats.Len() == 0 {
		s.writeError(w, http.StatusConflict, "sweep has no recorded episodes")
		return
	}
	var buf bytes.Buffer
	if err := report.RenderHeatMap(&buf, stats); err != nil {
		s.logger.Error().Err(err).Str("sweep_id", stats.SweepID).Msg("failed to render heatmap")
		s.writeError(w, http.StatusInternalServerError, "failed to render heatmap")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) loadStats(r *http.Request) (types.Sweep, sweep.AggregateStats, error) {
	id := chi.URLParam(r, "sweepID")
	sw, err := s.store.GetSweep(r.Context(), id)
	if err != nil {
		return types.Sweep{}, sweep.AggregateStats{}, err
	}
	records, err := s.store.ListEpisodes(r.Context(), id)
	if err != nil {
		return types.Sweep{}, sweep.AggregateStats{}, err
	}
	return sw, sweep.FromRecords(id, records), nil
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
