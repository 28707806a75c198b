package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kartoza/stats-workbench/internal/backend"
	"github.com/kartoza/stats-workbench/internal/chat"
	"github.com/kartoza/stats-workbench/internal/config"
	"github.com/kartoza/stats-workbench/internal/generator"
	"github.com/kartoza/stats-workbench/internal/httputil"
	"github.com/kartoza/stats-workbench/internal/inflight"
	"github.com/kartoza/stats-workbench/internal/metrics"
	"github.com/kartoza/stats-workbench/internal/models"
)

// ClientIDHeader identifies a browser tab so its superseded submissions
// can be cancelled
const ClientIDHeader = "X-Client-ID"

// Handler provides HTTP API endpoints
type Handler struct {
	services  *backend.Services
	chats     *chat.Store
	metrics   *metrics.Collector
	inflight  *inflight.Tracker
	logger    *zap.Logger
	cfg       config.Config
	newSource func() generator.Source
	maxUpload int64
}

// NewHandler creates a new API handler
func NewHandler(
	services *backend.Services,
	chats *chat.Store,
	collector *metrics.Collector,
	logger *zap.Logger,
	cfg config.Config,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		services: services,
		chats:    chats,
		metrics:  collector,
		inflight: inflight.NewTracker(),
		logger:   logger,
		cfg:      cfg,
		newSource: func() generator.Source {
			return generator.NewRandomSource()
		},
		maxUpload: maxUploadBytes,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")
	r.HandleFunc("/status", h.handleStatus).Methods("GET")

	// Local dataset generation
	r.HandleFunc("/generate", h.handleGenerate).Methods("POST")

	// Remote services
	r.HandleFunc("/calculate", h.handleCalculate).Methods("POST")
	r.HandleFunc("/stats", h.handleStats).Methods("POST")
	r.HandleFunc("/analyze", h.handleAnalyze).Methods("POST")
	r.HandleFunc("/datasets", h.handleListDatasets).Methods("GET")
	r.HandleFunc("/dataset-info", h.handleDatasetInfo).Methods("GET")
	r.HandleFunc("/upload-dataset", h.handleUploadDataset).Methods("POST")

	// Chat transcripts
	r.HandleFunc("/chat/sessions", h.handleCreateSession).Methods("POST")
	r.HandleFunc("/chat/sessions", h.handleListSessions).Methods("GET")
	r.HandleFunc("/chat/sessions/{id}", h.handleGetSession).Methods("GET")
	r.HandleFunc("/chat/sessions/{id}", h.handleDeleteSession).Methods("DELETE")
	r.HandleFunc("/chat/sessions/{id}/messages", h.handleSendMessage).Methods("POST")
}

// outbound derives the context for calls made on behalf of r. It is bounded
// by the request timeout and cancelled by a newer submission of the same
// operation from the same client.
func (h *Handler) outbound(r *http.Request, operation string) (context.Context, func()) {
	ctx := r.Context()
	var cancelTimeout context.CancelFunc = func() {}
	if h.cfg.RequestTimeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(ctx, h.cfg.RequestTimeout)
	}
	ctx, done := h.inflight.Begin(ctx, r.Header.Get(ClientIDHeader), operation)
	return ctx, func() {
		done()
		cancelTimeout()
	}
}

// respondErr maps adapter and store errors onto HTTP responses
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *backend.ValidationError
		apiErr        *backend.APIError
		connectErr    *backend.ConnectError
		tooLargeErr   *backend.TooLargeError
	)

	switch {
	case errors.As(err, &validationErr):
		httputil.RespondError(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &tooLargeErr):
		httputil.RespondError(w, http.StatusRequestEntityTooLarge, tooLargeErr.Error())
	case errors.As(err, &apiErr):
		h.logger.Info("Backend reported an error",
			zap.String("service", apiErr.Service),
			zap.Int("status", apiErr.Status),
			zap.String("message", apiErr.Message),
		)
		httputil.RespondError(w, http.StatusBadGateway, apiErr.Message)
	case errors.As(err, &connectErr):
		h.logger.Warn("Backend unreachable",
			zap.String("service", connectErr.Service),
			zap.Error(connectErr.Err),
		)
		httputil.RespondError(w, http.StatusServiceUnavailable, connectErr.Message)
	case errors.Is(err, chat.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrEmptyMessage):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httputil.RespondError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		if r.Context().Err() != nil {
			// the caller has gone away; nobody is left to answer
			h.logger.Debug("Request abandoned by client", zap.String("path", r.URL.Path))
			return
		}
		h.logger.Debug("Request superseded", zap.String("path", r.URL.Path))
		httputil.RespondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, models.InfoResponse{
		Version:          h.cfg.Version,
		CalculatorURL:    h.cfg.Backends.CalculatorBaseURL,
		StatsURL:         h.cfg.Backends.StatsBaseURL,
		AnalyticsURL:     h.cfg.Backends.AnalyticsBaseURL,
		ChatURL:          h.cfg.Backends.ChatBaseURL,
		ChatModel:        h.cfg.Chat.Model,
		ChatConfigured:   h.cfg.Chat.APIKey != "",
		RequestTimeoutMs: h.cfg.RequestTimeout.Milliseconds(),
	})
}

// handleStatus probes every remote service concurrently
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, done := h.outbound(r, "status")
	defer done()

	probes := []struct {
		name    string
		baseURL string
		check   func(context.Context) bool
	}{
		{"calculator", h.cfg.Backends.CalculatorBaseURL, h.services.Calculator.CheckStatus},
		{"stats", h.cfg.Backends.StatsBaseURL, h.services.Stats.CheckStatus},
		{"analytics", h.cfg.Backends.AnalyticsBaseURL, h.services.Analytics.CheckStatus},
		{"chat", h.cfg.Backends.ChatBaseURL, h.services.Chat.CheckStatus},
	}

	statuses := make([]models.ServiceStatus, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range probes {
		i, p := i, p
		g.Go(func() error {
			statuses[i] = models.ServiceStatus{Name: p.name, BaseURL: p.baseURL, Up: p.check(gctx)}
			return nil
		})
	}
	g.Wait()

	httputil.RespondJSON(w, http.StatusOK, models.StatusResponse{Services: statuses})
}
