package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
	"jobscout/internal/snapshot"
	"jobscout/internal/stage"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

// searchResponse acknowledges a started session.
type searchResponse struct {
	SessionID string `json:"sessionId"`
}

type actionResponse struct {
	OK bool `json:"ok"`
}

// SessionSummary is the listing row for one persisted session.
type SessionSummary struct {
	SessionID       string          `json:"sessionId"`
	Status          pipeline.Status `json:"status"`
	CurrentStage    pipeline.Stage  `json:"currentStage"`
	OverallProgress float64         `json:"overallProgress"`
	CanResume       bool            `json:"canResume"`
	SnapshotVersion int             `json:"snapshotVersion"`
	Items           int             `json:"items"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type sessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  cfg.Paths.APIToken,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", authMiddleware(srv.token, srv.handleSearch))
	mux.HandleFunc("/api/search/", authMiddleware(srv.token, srv.handleSearchAction))
	mux.HandleFunc("/api/sessions", authMiddleware(srv.token, srv.handleSessions))
	mux.HandleFunc("/api/sessions/", authMiddleware(srv.token, srv.handleSessionItem))
	mux.HandleFunc("/api/status", authMiddleware(srv.token, srv.handleStatus))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, useful when the bind port is 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req pipeline.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sessionID, err := s.daemon.StartSearch(req)
	if err != nil {
		s.writeStageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, searchResponse{SessionID: sessionID})
}

// handleSearchAction serves /api/search/{id}/progress|stop|pause|resume.
func (s *apiServer) handleSearchAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/search/")
	sessionID, action, ok := strings.Cut(rest, "/")
	if !ok || sessionID == "" || strings.Contains(action, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch action {
	case "progress":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		progress, err := s.daemon.Progress(sessionID)
		if err != nil {
			s.writeStageError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, progress)
	case "stop", "pause", "resume":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var err error
		switch action {
		case "stop":
			err = s.daemon.StopSearch(sessionID)
		case "pause":
			err = s.daemon.PauseSearch(sessionID)
		case "resume":
			err = s.daemon.ResumeSearch(sessionID)
		}
		if err != nil {
			s.writeStageError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, actionResponse{OK: true})
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snaps, err := s.daemon.Sessions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summaries := make([]SessionSummary, 0, len(snaps))
	for _, snap := range snaps {
		summaries = append(summaries, summarize(snap))
	}
	s.writeJSON(w, http.StatusOK, sessionListResponse{Sessions: summaries})
}

func (s *apiServer) handleSessionItem(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.daemon.DeleteSession(r.Context(), sessionID); err != nil {
		s.writeStageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, actionResponse{OK: true})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func summarize(snap *snapshot.Snapshot) SessionSummary {
	summary := SessionSummary{
		SessionID:       snap.SessionID,
		CanResume:       snap.CanResume,
		SnapshotVersion: snap.SnapshotVersion,
		Items:           len(snap.Items),
		CreatedAt:       snap.CreatedAt,
		UpdatedAt:       snap.UpdatedAt,
	}
	if snap.Progress != nil {
		summary.Status = snap.Progress.Status
		summary.CurrentStage = snap.Progress.CurrentStage
		summary.OverallProgress = snap.Progress.OverallProgress
	}
	return summary
}

// writeStageError maps the error taxonomy onto HTTP statuses.
func (s *apiServer) writeStageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, stage.ErrValidation):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, stage.ErrConfiguration):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
