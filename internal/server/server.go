// Package server exposes the JSON control API consumed by the render
// collaborator. The surface is deliberately small: replace the screen, start
// and stop scanning, activate the highlighted item, submit announcements, and
// resolve symbol thumbnails. Health probes and Prometheus metrics are served
// on the same listener.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxboard/voxboard/internal/board"
	"github.com/voxboard/voxboard/internal/health"
	"github.com/voxboard/voxboard/internal/observe"
	"github.com/voxboard/voxboard/pkg/provider/speech"
	"github.com/voxboard/voxboard/pkg/symbolcache"
)

// Option configures a [Server] during construction.
type Option func(*Server)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server routes control-API requests to one [board.Session].
type Server struct {
	session  *board.Session
	resolver *symbolcache.Resolver // nil disables /v1/symbols/resolve
	health   *health.Handler
	metrics  *observe.Metrics
	log      *slog.Logger
}

// New creates a Server for session. resolver may be nil when no symbol
// service is configured.
func New(session *board.Session, resolver *symbolcache.Resolver, h *health.Handler, opts ...Option) *Server {
	s := &Server{
		session:  session,
		resolver: resolver,
		health:   h,
		metrics:  observe.DefaultMetrics(),
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("PUT /v1/screen", s.putScreen)
	mux.HandleFunc("GET /v1/screen", s.getScreen)
	mux.HandleFunc("POST /v1/announce", s.postAnnounce)
	mux.HandleFunc("POST /v1/scan/start", s.postScanStart)
	mux.HandleFunc("POST /v1/scan/stop", s.postScanStop)
	mux.HandleFunc("POST /v1/activate", s.postActivate)
	mux.HandleFunc("GET /v1/symbols/resolve", s.getSymbol)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// putScreen replaces the current screen wholesale and reports the resulting
// session state.
func (s *Server) putScreen(w http.ResponseWriter, r *http.Request) {
	var screen board.Screen
	if err := decodeJSON(r, &screen); err != nil {
		s.log.Warn("rejected screen payload", "err", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(screen.Items) == 0 {
		writeError(w, http.StatusBadRequest, "screen has no items")
		return
	}

	s.session.SetScreen(screen)
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) getScreen(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

// announceRequest is the body of POST /v1/announce.
type announceRequest struct {
	Text          string `json:"text"`
	RoutingTarget string `json:"routing_target"`
	ShowVisualCue bool   `json:"show_visual_cue"`

	// Wait makes the call block until the announcement settles instead of
	// returning as soon as it is queued.
	Wait bool `json:"wait"`
}

// announceResponse reports the queued announcement. Error is only set for a
// waited request that settled failed.
type announceResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) postAnnounce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}
	target := speech.RoutingTarget(req.RoutingTarget)
	if target == "" {
		target = speech.TargetUser
	}

	ar := s.session.Announce(req.Text, target, req.ShowVisualCue)
	resp := announceResponse{ID: ar.ID(), Status: "queued"}

	if req.Wait {
		if err := ar.Wait(r.Context()); err != nil {
			if r.Context().Err() != nil {
				writeError(w, http.StatusRequestTimeout, "wait cancelled")
				return
			}
			resp.Status = "failed"
			resp.Error = err.Error()
		} else {
			resp.Status = "done"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) postScanStart(w http.ResponseWriter, _ *http.Request) {
	s.session.StartScan()
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) postScanStop(w http.ResponseWriter, _ *http.Request) {
	s.session.StopScan()
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) postActivate(w http.ResponseWriter, _ *http.Request) {
	item, ok := s.session.Activate()
	if !ok {
		writeError(w, http.StatusConflict, "no item is highlighted")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// symbolResponse is the body of GET /v1/symbols/resolve. ImageURL is empty
// when no symbol was found or no symbol service is configured.
type symbolResponse struct {
	Label    string `json:"label"`
	ImageURL string `json:"image_url"`
}

func (s *Server) getSymbol(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	if strings.TrimSpace(label) == "" {
		writeError(w, http.StatusBadRequest, "label query parameter is required")
		return
	}
	var keywords []string
	if raw := r.URL.Query().Get("keywords"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keywords = append(keywords, k)
			}
		}
	}

	resp := symbolResponse{Label: label}
	if s.resolver != nil {
		resp.ImageURL = s.resolver.Resolve(r.Context(), label, keywords)
	}
	writeJSON(w, http.StatusOK, resp)
}

// maxBodyBytes caps control-API request bodies. Screens are small; anything
// larger is a client bug.
const maxBodyBytes = 1 << 20

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// errorResponse is the JSON error body shared by all endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeJSON encodes v as JSON with the given status code. On encoding failure
// it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
