package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/framecast"
	"github.com/aretw0/framecast/internal/logging"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/export"
	"github.com/aretw0/framecast/pkg/ports"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxUploadBytes bounds photo uploads (25 MiB).
const DefaultMaxUploadBytes = 25 << 20

//go:embed openapi.yaml
var rawSpec []byte

// GetSwagger parses and validates the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// Studio is the subset of the framecast Studio served over HTTP.
type Studio interface {
	ports.Studio
	OutputSize() int
}

// Server holds the HTTP handlers.
type Server struct {
	Studio   Studio
	Logger   *slog.Logger
	Metrics  http.Handler
	MaxBytes int64

	apiVersion string
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithMaxUploadBytes bounds request bodies for compositing endpoints.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.MaxBytes = n
	}
}

// NewHandler creates a new HTTP handler for the studio.
func NewHandler(studio Studio, opts ...Option) http.Handler {
	server := &Server{
		Studio:     studio,
		Logger:     logging.NewNop(),
		MaxBytes:   DefaultMaxUploadBytes,
		apiVersion: "unknown",
	}
	for _, opt := range opts {
		opt(server)
	}
	if doc, err := GetSwagger(); err == nil && doc.Info != nil {
		server.apiVersion = doc.Info.Version
	} else if err != nil {
		server.Logger.Error("Failed to load OpenAPI spec", "error", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(server.requestLogger)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)

	r.Post("/composite", server.Composite)
	r.Post("/download", server.Download)
	r.Post("/share", server.Share)

	r.Get("/stats", server.GetStats)
	r.Get("/events", server.SubscribeEvents)

	r.Get("/frames", server.ListFrames)
	r.Put("/frames/active", server.SetActiveFrame)

	if server.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.Metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Frame-Name")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Composite handles POST /composite and returns the framed PNG.
func (s *Server) Composite(w http.ResponseWriter, r *http.Request) {
	res, ok := s.compose(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", res.ContentType())
	w.Header().Set("X-Frame-Name", res.Frame)
	_, _ = w.Write(res.PNG)
}

// Download handles POST /download and returns the PNG as an attachment.
func (s *Server) Download(w http.ResponseWriter, r *http.Request) {
	res, ok := s.compose(w, r)
	if !ok {
		return
	}
	dl, err := s.Studio.Download(r.Context(), res)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.FileName}))
	w.Header().Set("X-Frame-Name", res.Frame)
	_, _ = w.Write(dl.PNG)
}

type shareResponse struct {
	*domain.SharePackage
	Image   []byte `json:"image"`
	Message string `json:"message,omitempty"`
}

// Share handles POST /share. When Native is false the client opens fallback_url.
func (s *Server) Share(w http.ResponseWriter, r *http.Request) {
	res, ok := s.compose(w, r)
	if !ok {
		return
	}
	pkg, err := s.Studio.Share(r.Context(), res)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := shareResponse{SharePackage: pkg, Image: pkg.PNG}
	if !pkg.Native {
		resp.Message = export.MsgShareFallback + " " + export.MsgShareFallbackTip
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// compose reads the photo and frame from the request and runs the studio.
// On failure the response is already written.
func (s *Server) compose(w http.ResponseWriter, r *http.Request) (*domain.CompositeResult, bool) {
	photo, frame, err := s.readPhoto(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	res, err := s.Studio.Compose(r.Context(), photo, frame)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return res, true
}

// errBadRequest marks request-shape errors.
var errBadRequest = errors.New("bad request")

// readPhoto accepts multipart/form-data (field "photo", optional "frame") or a
// raw image body. The frame may also come from the "frame" query parameter.
func (s *Server) readPhoto(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxBytes)
	frame := r.URL.Query().Get("frame")

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.MaxBytes); err != nil {
			return nil, "", bodyError(err)
		}
		if v := r.FormValue("frame"); v != "" {
			frame = v
		}
		f, _, err := r.FormFile("photo")
		if err != nil {
			return nil, "", fmt.Errorf("%w: missing photo field", errBadRequest)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", bodyError(err)
		}
		return data, frame, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", bodyError(err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty body", errBadRequest)
	}
	return data, frame, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

// GetStats handles GET /stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Studio.Counts())
}

// SubscribeEvents handles GET /events (SSE). Each "counts" event carries the
// latest totals; slow clients skip intermediate values.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	updates := s.Studio.Watch(ctx)

	s.Logger.Debug("SSE: Client connected")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			s.Logger.Debug("SSE: Client disconnected")
			return
		case counts, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(counts)
			if err != nil {
				s.Logger.Error("SSE: encode failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: counts\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// ListFrames handles GET /frames.
func (s *Server) ListFrames(w http.ResponseWriter, r *http.Request) {
	frames, err := s.Studio.Frames(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, frames)
}

// SetActiveFrame handles PUT /frames/active.
func (s *Server) SetActiveFrame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		s.writeError(w, r, fmt.Errorf("%w: expected {\"name\": \"...\"}", errBadRequest))
		return
	}
	if err := s.Studio.SetActiveFrame(r.Context(), body.Name); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":         "framecast-http",
		"version":     strings.TrimSpace(framecast.Version),
		"api_version": s.apiVersion,
		"output_size": s.Studio.OutputSize(),
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrFrameNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.Logger.Error("Request failed", "path", r.URL.Path, "error", err)
	} else {
		s.Logger.Warn("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Message: export.UserMessage(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "error", err)
	}
}

var _ Studio = (*framecast.Studio)(nil)
