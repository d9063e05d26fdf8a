// Package server exposes the ingestion pipeline over HTTP.
//
// Routes:
//
//	POST /ingest          multipart upload (field "file") -> batch result
//	GET  /schemas         schema history, ascending version
//	GET  /schemas/changes change log, newest first
//	GET  /records         recent records (?limit=N&version=V)
//	GET  /healthz         liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"dynetl/internal/pipeline"
	"dynetl/internal/storage"
)

const (
	defaultRecordLimit = 50
	maxRecordLimit     = 1000
)

// Config controls the listener, uploads and rate limiting.
type Config struct {
	Addr string

	// MaxUploadBytes bounds one multipart request; zero means 64 MiB.
	MaxUploadBytes int64

	// RatePerSec enables a token bucket on POST /ingest when positive.
	RatePerSec float64
	Burst      int
}

// Server routes HTTP requests to an Ingester and a Store.
type Server struct {
	cfg     Config
	mux     *http.ServeMux
	ing     *pipeline.Ingester
	store   storage.Store
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewServer constructs a Server with its routes registered. A nil logger
// means log.Default().
func NewServer(cfg Config, ing *pipeline.Ingester, store storage.Store, logger *log.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		ing:    ing,
		store:  store,
		logger: logger,
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	s.logger.Printf("server: listening on %s", s.cfg.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /ingest", s.handleIngest)
	s.mux.HandleFunc("GET /schemas", s.handleSchemas)
	s.mux.HandleFunc("GET /schemas/changes", s.handleChanges)
	s.mux.HandleFunc("GET /records", s.handleRecords)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// ingestResponse is the POST /ingest body: the batch result plus the two
// operator messages.
type ingestResponse struct {
	pipeline.Result
	Summary string `json:"summary"`
	Message string `json:"message"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "missing multipart field \"file\": "+err.Error())
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	res, err := s.ing.Ingest(r.Context(), hdr.Filename, data)
	if err != nil {
		s.logger.Printf("server: ingest %s: %v", hdr.Filename, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Result: res, Summary: res.Summary(), Message: res.SchemaMessage()})
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.Schemas(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.Changes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultRecordLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = storage.ClampLimit(n, defaultRecordLimit, maxRecordLimit)
	}

	var (
		out []storage.StoredRecord
		err error
	)
	if v := q.Get("version"); v != "" {
		version, perr := strconv.Atoi(v)
		if perr != nil || version <= 0 {
			writeError(w, http.StatusBadRequest, "version must be a positive integer")
			return
		}
		out, err = s.store.ListByVersion(r.Context(), version, limit)
	} else {
		out, err = s.store.ListRecent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
