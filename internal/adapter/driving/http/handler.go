package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iniwap/AIWriteX/internal/application"
	"github.com/iniwap/AIWriteX/internal/domain/model"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	maxPublishBodyBytes = 1 << 20
)

// Publisher is the part of the publish service exposed over HTTP.
type Publisher interface {
	PublishBatch(ctx context.Context, req application.BatchRequest) (application.BatchSummary, error)
	History(ctx context.Context, articlePath string, limit int) ([]model.PublishRecord, error)
	ArticleStatus(ctx context.Context, articlePath string) (model.ArticleStatus, error)
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	publisher Publisher
	metrics   http.Handler
	logger    *slog.Logger
}

// NewHandler creates a Handler. metrics may be nil, in which case /metrics
// is not registered.
func NewHandler(publisher Publisher, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/publish", h.Publish)
	mux.HandleFunc("GET /api/v1/history", h.ListHistory)
	mux.HandleFunc("GET /api/v1/articles/status", h.GetArticleStatus)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Publish runs one publish batch synchronously and returns its summary.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPublishBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	articles := make([]string, 0, len(req.Articles))
	for _, a := range req.Articles {
		if a = strings.TrimSpace(a); a != "" {
			articles = append(articles, a)
		}
	}
	if len(articles) == 0 {
		writeError(w, http.StatusBadRequest, "articles must not be empty")
		return
	}

	summary, err := h.publisher.PublishBatch(r.Context(), application.BatchRequest{
		ArticlePaths: articles,
		Accounts:     req.Accounts,
		CoverPath:    strings.TrimSpace(req.Cover),
	})
	if err != nil {
		if errors.Is(err, model.ErrConfiguration) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("publish batch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set(runIDHeader, summary.RunID)
	writeJSON(w, http.StatusOK, toBatchResponse(summary))
}

// ListHistory returns recent publish records, optionally for one article.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.publisher.History(r.Context(), r.URL.Query().Get("article"), limit)
	if err != nil {
		h.logger.Error("failed to list history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]PublishRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toPublishRecordResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetArticleStatus reports whether an article has been published.
func (h *Handler) GetArticleStatus(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	status, err := h.publisher.ArticleStatus(r.Context(), path)
	if err != nil {
		h.logger.Error("failed to get article status", "article", path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ArticleStatusResponse{Article: path, Status: string(status)})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
