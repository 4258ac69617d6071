package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social_autoposter/internal/domain"
	"social_autoposter/internal/scheduler"
	"social_autoposter/internal/service"
)

const (
	maxBodyBytes       = 64 << 10
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

type Controller interface {
	Status() scheduler.Status
	DispatchNow(ctx context.Context, platform domain.Platform, text string, hashtags []string) (string, error)
}

type PostLister interface {
	Recent(ctx context.Context, limit int) ([]domain.PostRecord, error)
}

type Handler struct {
	controller Controller
	posts      PostLister
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

func NewHandler(controller Controller, posts PostLister, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	return &Handler{
		controller: controller,
		posts:      posts,
		gatherer:   gatherer,
		logger:     logger.With("component", "api"),
	}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(bodyLimit(maxBodyBytes))

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", h.Status).Methods("GET")
	api.HandleFunc("/dispatch", h.Dispatch).Methods("POST")

	return r
}

// NewServer wraps the router in an http.Server with the usual timeouts.
func NewServer(addr string, h *Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	scheduler.Status
	RecentPosts []domain.PostRecord `json:"recent_posts"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRecentLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	resp := statusResponse{Status: h.controller.Status()}

	recent, err := h.posts.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list recent posts", "error", err)
		respondError(w, http.StatusInternalServerError, "could not load recent posts")
		return
	}
	resp.RecentPosts = recent
	if resp.RecentPosts == nil {
		resp.RecentPosts = []domain.PostRecord{}
	}

	respondJSON(w, http.StatusOK, resp)
}

type dispatchRequest struct {
	Platform domain.Platform `json:"platform"`
	Content  string          `json:"content"`
	Hashtags []string        `json:"hashtags"`
}

type dispatchResponse struct {
	Platform       domain.Platform `json:"platform"`
	PlatformPostID string          `json:"platform_post_id"`
}

func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if !req.Platform.Valid() {
		respondError(w, http.StatusBadRequest, "unknown platform")
		return
	}

	// A client that disconnects mid-publish must not abort the post.
	id, err := h.controller.DispatchNow(context.WithoutCancel(r.Context()), req.Platform, req.Content, req.Hashtags)
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, dispatchResponse{Platform: req.Platform, PlatformPostID: id})
	case errors.Is(err, service.ErrEmptyContent):
		respondError(w, http.StatusBadRequest, "content is required")
	case errors.Is(err, scheduler.ErrPlatformInactive), errors.Is(err, service.ErrPlatformUnavailable):
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("manual dispatch failed", "platform", req.Platform, "error", err)
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

func bodyLimit(maxBytes int64) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}
