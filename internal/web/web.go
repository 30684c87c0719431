package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"moodcal/internal/config"
	"moodcal/internal/ics"
	appLog "moodcal/internal/log"
	"moodcal/internal/model"
	"moodcal/internal/notice"
	"moodcal/internal/session"
)

const infoText = "This is a simple mood tracker app. Track your mood and share it!"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 16

// Server exposes one mood session over a small JSON API. The session is
// owned by the caller and lives as long as the server does.
type Server struct {
	cfg     *config.Config
	session *session.Session
	notices *notice.Board
	history *ics.History
	mux     *http.ServeMux
}

// NewServer constructs a Server. history may be nil to disable
// /api/history.
func NewServer(cfg *config.Config, sess *session.Session, notices *notice.Board, history *ics.History) *Server {
	s := &Server{
		cfg:     cfg,
		session: sess,
		notices: notices,
		history: history,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Serve runs the HTTP server on cfg.Listen until ctx is cancelled, then
// shuts it down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		appLog.Info("HTTP server stopped")
		return nil
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials are treated as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="moodcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/info", s.handleInfo)

	s.mux.HandleFunc("GET /api/moods", s.handleListMoods)
	s.mux.HandleFunc("POST /api/moods", s.handleRecordMood)
	s.mux.HandleFunc("POST /api/images", s.handleRecordImage)
	s.mux.HandleFunc("POST /api/images/pick", s.handlePickImage)

	s.mux.HandleFunc("GET /api/logs", s.handleLogs)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("POST /api/share", s.handleShare)
	s.mux.HandleFunc("GET /api/notices", s.handleNotices)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Title:     "App Information",
		Text:      infoText,
		ShareMode: s.session.ShareMode(),
	})
}

func (s *Server) handleListMoods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, moodsResponse{Moods: model.Moods})
}

func (s *Server) handleRecordMood(w http.ResponseWriter, r *http.Request) {
	var req recordMoodRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := s.session.RecordMood(r.Context(), req.Mood)
	s.writeRecordResult(w, entry, err)
}

func (s *Server) handleRecordImage(w http.ResponseWriter, r *http.Request) {
	var req recordImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := s.session.RecordImageMood(r.Context(), req.URI)
	s.writeRecordResult(w, entry, err)
}

// handlePickImage runs the configured picker. A cancelled pick answers 204.
func (s *Server) handlePickImage(w http.ResponseWriter, r *http.Request) {
	entry, recorded, err := s.session.PickImage(r.Context())
	if !recorded {
		if err != nil {
			appLog.Error("image pick failed", err)
			writeError(w, http.StatusInternalServerError, "image pick failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeRecordResult(w, entry, err)
}

// writeRecordResult maps a record outcome to a response. Calendar errors
// leave the entry in the log, so they still answer 201 with a warning.
func (s *Server) writeRecordResult(w http.ResponseWriter, entry model.Entry, err error) {
	switch {
	case errors.Is(err, session.ErrUnknownMood), errors.Is(err, session.ErrEmptyImageURI):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case !session.Recorded(err):
		appLog.Error("record failed", err)
		writeError(w, http.StatusInternalServerError, "record failed")
		return
	}

	resp := recordResponse{Entry: toEntryDTO(entry)}
	if err != nil {
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleLogs(w http.ResponseWriter, _ *http.Request) {
	entries := s.session.Snapshot()
	dtos := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, logsResponse{Entries: dtos, Count: len(dtos)})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.session.Summarize()))
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	err := s.session.Share(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, shareResponse{Status: "shared", Mode: s.session.ShareMode()})
	case errors.Is(err, session.ErrShareUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, session.ErrEmptyShareTarget):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "share failed")
	}
}

func (s *Server) handleNotices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, noticesResponse{Notices: s.notices.Drain()})
}

// handleHistory returns moods read back from the calendars.
//
// GET /api/history?days=30&ahead=0
//   - days:  how many past days to include (default 30)
//   - ahead: how many future days to include (default 0)
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history not configured")
		return
	}

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 30)
	if days <= 0 {
		days = 30
	}
	ahead := parseIntDefault(q.Get("ahead"), 0)
	if ahead < 0 {
		ahead = 0
	}

	loc := s.cfg.Location()
	now := time.Now().In(loc)
	rangeStart := now.AddDate(0, 0, -days)
	rangeEnd := now.AddDate(0, 0, ahead)

	moods, errs := s.history.Moods(r.Context(), rangeStart, rangeEnd)
	if len(errs) > 0 {
		appLog.Error("api history: some calendars failed", errors.Join(errs...), "error_count", len(errs))
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Moods:           moods,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
		FailedSources:   len(errs),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
