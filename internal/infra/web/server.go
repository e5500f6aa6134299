package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"market-chat-gateway/internal/domain"
	"market-chat-gateway/internal/domain/model"
	"market-chat-gateway/internal/realtime"
	"market-chat-gateway/internal/series"
	"market-chat-gateway/internal/usecase"
)

// RealtimeStatus is the read side of the subscription controller the
// HTTP surface exposes: the greeting snapshot for reconnecting stream
// clients and the per-message state map.
type RealtimeStatus interface {
	Current(sessionID string) (ticker string, state realtime.State, series *model.IntradaySeries, ok bool)
	States(sessionID string) map[int]realtime.State
}

type Server struct {
	uc  usecase.ConversationUseCase
	hub *Hub
	rt  RealtimeStatus
	log *zerolog.Logger

	srv *http.Server
}

func NewServer(port int, uc usecase.ConversationUseCase, hub *Hub, rt RealtimeStatus, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{uc: uc, hub: hub, rt: rt, log: &l}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleEndSession)
			r.Get("/messages", s.handleTranscript)
			r.Post("/messages", s.handleSubmit)
			r.Get("/messages/{index}/plot", s.handlePlot)
			r.Get("/realtime", s.handleRealtimeStates)
			r.Get("/stream", s.handleStream)
		})
	})
	return r
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routed mux for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.uc.StartSession(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, err := s.uc.Transcript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed body", domain.ErrInvalidArgument))
		return
	}
	sess, err := s.uc.Submit(r.Context(), chi.URLParam(r, "sessionID"), body.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handlePlot renders a chart-bearing message as index-aligned datasets.
func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: message index", domain.ErrInvalidArgument))
		return
	}
	ps, err := s.uc.Plot(r.Context(), chi.URLParam(r, "sessionID"), idx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plotResponse{Labels: ps.Labels, Datasets: ps.Datasets()})
}

type plotResponse struct {
	Labels   []string         `json:"labels"`
	Datasets []series.Dataset `json:"datasets"`
}

func (s *Server) handleRealtimeStates(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.uc.Transcript(r.Context(), sessionID); err != nil {
		s.writeError(w, err)
		return
	}
	states := s.rt.States(sessionID)
	out := make(map[string]realtime.State, len(states))
	for idx, st := range states {
		out[strconv.Itoa(idx)] = st
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": out})
}

// handleStream upgrades to a WebSocket delivering realtime updates for
// the session. The active subscription's latest snapshot is replayed on
// connect so the client does not wait out a polling interval.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.uc.Transcript(r.Context(), sessionID); err != nil {
		s.writeError(w, err)
		return
	}

	var greet []any
	if ticker, state, snap, ok := s.rt.Current(sessionID); ok {
		greet = append(greet, realtime.Update{
			SessionID: sessionID,
			Ticker:    ticker,
			State:     state,
			Status:    fmt.Sprintf("Dados para %s atualizados", ticker),
			Series:    snap,
		})
	}
	s.hub.ServeSession(w, r, sessionID, greet)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// writeError maps domain sentinels onto the {"detail": ...} envelope
// the front end expects.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionBusy):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrEmptyQuestion),
		errors.Is(err, domain.ErrNoChart):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
