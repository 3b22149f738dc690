// Package server exposes the engine over HTTP: a JSON API for tank sessions
// and mutations, a websocket feed of committed document changes, and the
// Prometheus metrics endpoint.
package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aquacore/internal/core"
	blobcore "aquacore/internal/infra/blob/core"
	"aquacore/pkg/domain"
)

// Server holds the HTTP surface over a core.Service.
type Server struct {
	svc      *core.Service
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// New builds a Server. A nil logger falls back to slog.Default.
func New(svc *core.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc: svc,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logging)
	r.Use(s.recoverer)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.withUser)

	api.HandleFunc("/catalog", s.handleCatalog).Methods(http.MethodGet)

	api.HandleFunc("/tanks", s.handleTankList).Methods(http.MethodGet)
	api.HandleFunc("/tanks", s.handleTankCreate).Methods(http.MethodPost)
	api.HandleFunc("/tanks/{tank}", s.handleTankGet).Methods(http.MethodGet)
	api.HandleFunc("/tanks/{tank}", s.handleTankDelete).Methods(http.MethodDelete)
	api.HandleFunc("/tanks/{tank}/settings", s.handleSettings).Methods(http.MethodPut)
	api.HandleFunc("/tanks/{tank}/save", s.handleSave).Methods(http.MethodPost)

	api.HandleFunc("/tanks/{tank}/occupants", s.handlePlace).Methods(http.MethodPost)
	api.HandleFunc("/tanks/{tank}/occupants/confirm", s.handleConfirm).Methods(http.MethodPost)
	api.HandleFunc("/tanks/{tank}/occupants/{instance}/position", s.handleMove).Methods(http.MethodPatch)
	api.HandleFunc("/tanks/{tank}/occupants/{instance}/nickname", s.handleRename).Methods(http.MethodPatch)
	api.HandleFunc("/tanks/{tank}/occupants/{instance}", s.handleRemove).Methods(http.MethodDelete)

	api.HandleFunc("/tanks/{tank}/catalog", s.handleTankCatalog).Methods(http.MethodGet)
	api.HandleFunc("/tanks/{tank}/compat", s.handleCompat).Methods(http.MethodGet)
	api.HandleFunc("/tanks/{tank}/recommendations", s.handleRecommendations).Methods(http.MethodGet)
	api.HandleFunc("/tanks/{tank}/snapshot", s.handleSnapshot).Methods(http.MethodGet)

	api.HandleFunc("/tanks/{tank}/preview", s.handlePreviewPut).Methods(http.MethodPut)
	api.HandleFunc("/tanks/{tank}/preview", s.handlePreviewGet).Methods(http.MethodGet)

	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)

	api.HandleFunc("/tanks/{tank}/watch", s.handleWatch).Methods(http.MethodGet)

	return r
}

type ctxKey int

const userKey ctxKey = 0

// withUser requires the X-User-ID header; the engine is agnostic to how the
// caller authenticated and only needs a stable user identity.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get("X-User-ID")
		if uid == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", domain.ErrUnauthenticated.Error())
			return
		}
		ctx := contextWithUser(r.Context(), uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Duration("duration", time.Since(start)))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panic", slog.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter records the status code for the request log. Hijack is
// forwarded so the websocket upgrade works through the middleware chain.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	var eb errorBody
	eb.Error.Code = code
	eb.Error.Message = message
	_ = json.NewEncoder(w).Encode(eb)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps engine errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var nf domain.ErrNotFound
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, blobcore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
