// Package server exposes a fitted QSAR model over HTTP.
package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
	"github.com/YuminosukeSato/qsarkit/qsar"
)

const (
	// DefaultMaxBatch caps the number of SMILES in one request.
	DefaultMaxBatch = 1000
	maxBodyBytes    = 1 << 20
)

// Server serves predictions of one fitted model. The model is only read
// after construction, so requests are handled concurrently.
type Server struct {
	model    *qsar.Model
	limiter  *rate.Limiter
	maxBatch int
	logger   log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit allows r requests per second with bursts of burst. r <= 0
// disables limiting.
func WithRateLimit(r float64, burst int) Option {
	return func(s *Server) {
		if r <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
	}
}

// WithMaxBatch sets the per-request SMILES limit.
func WithMaxBatch(n int) Option {
	return func(s *Server) { s.maxBatch = n }
}

// WithLogger sets the request logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server for m, which must be fitted.
func New(m *qsar.Model, opts ...Option) (*Server, error) {
	if m == nil || m.State() != qsar.Fitted {
		name, state := "model", qsar.Unconfigured.String()
		if m != nil {
			name, state = m.Name, m.State().String()
		}
		return nil, errors.NewStateError(name, state, "serve")
	}
	s := &Server{
		model:    m,
		maxBatch: DefaultMaxBatch,
		logger:   log.GetLogger().With(log.ComponentKey, "server", log.ModelNameKey, m.Algorithm),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxBatch <= 0 {
		return nil, errors.NewConfigError("server.max_batch", "must be positive", s.maxBatch)
	}
	return s, nil
}

// Handler returns the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.limiter != nil {
		r.Use(s.rateLimit)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/model", appHandler(s.describe).with(s.logger))
	r.Method(http.MethodPost, "/predict", appHandler(s.predict).with(s.logger))
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then drains open
// requests for up to five seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Serving predictions", "addr", addr, log.PropertyKey, s.model.Property)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return <-done
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ModelInfo is the body of GET /model.
type ModelInfo struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Algorithm  string                 `json:"algorithm"`
	Property   string                 `json:"target_property"`
	Radius     int                    `json:"fingerprint_radius"`
	NBits      int                    `json:"fingerprint_nbits"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Evaluation *qsar.Evaluation       `json:"evaluation,omitempty"`
}

func (s *Server) describe(w http.ResponseWriter, _ *http.Request) *appError {
	m := s.model
	writeJSON(w, http.StatusOK, ModelInfo{
		ID:         m.ID,
		Name:       m.Name,
		Algorithm:  m.Algorithm,
		Property:   m.Property,
		Radius:     m.Fingerprint.Radius,
		NBits:      m.Fingerprint.NBits,
		Params:     m.Params,
		Evaluation: m.Eval,
	})
	return nil
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	SMILES []string `json:"smiles"`
}

// PredictItem is one prediction. Value is null when the structure could
// not be processed, and Error says why.
type PredictItem struct {
	SMILES       string   `json:"smiles"`
	Standardized string   `json:"standardized,omitempty"`
	Value        *float64 `json:"value"`
	Error        string   `json:"error,omitempty"`
}

// PredictResponse is the body returned by POST /predict. Predictions are
// in request order.
type PredictResponse struct {
	Model       string        `json:"model"`
	Property    string        `json:"target_property"`
	Predictions []PredictItem `json:"predictions"`
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) *appError {
	var req PredictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return &appError{Err: err, Message: "malformed request body", Code: http.StatusBadRequest}
	}
	if len(req.SMILES) == 0 {
		return &appError{Err: errors.ErrEmptyData, Message: "smiles must not be empty", Code: http.StatusBadRequest}
	}
	if len(req.SMILES) > s.maxBatch {
		return &appError{
			Err:     errors.NewDimensionError("predict", s.maxBatch, len(req.SMILES), 0),
			Message: "too many structures in one request",
			Code:    http.StatusRequestEntityTooLarge,
		}
	}

	preds, err := s.model.PredictSMILES(r.Context(), req.SMILES)
	if err != nil {
		return &appError{Err: err, Message: "prediction failed", Code: http.StatusInternalServerError}
	}
	resp := PredictResponse{
		Model:       s.model.Name,
		Property:    s.model.Property,
		Predictions: make([]PredictItem, len(preds)),
	}
	for i, p := range preds {
		item := PredictItem{SMILES: p.SMILES, Standardized: p.Standardized}
		if p.Err != nil {
			item.Error = p.Err.Error()
		} else if !math.IsNaN(p.Value) {
			v := p.Value
			item.Value = &v
		}
		resp.Predictions[i] = item
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}
