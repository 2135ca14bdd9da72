// Package handlers exposes the guardian engine HTTP API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/elder-shield/guardian-engine/internal/analyzer"
	"github.com/elder-shield/guardian-engine/internal/config"
	"github.com/elder-shield/guardian-engine/internal/orchestrator"
)

// HTTPHandler handles HTTP requests for the guardian engine
type HTTPHandler struct {
	config       *config.Config
	logger       *slog.Logger
	orchestrator *orchestrator.Orchestrator
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(cfg *config.Config, logger *slog.Logger, orch *orchestrator.Orchestrator) *HTTPHandler {
	return &HTTPHandler{
		config:       cfg,
		logger:       logger,
		orchestrator: orch,
	}
}

// RegisterRoutes registers HTTP routes
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/analyze", h.handleAnalyze).Methods("POST")
	api.HandleFunc("/messages", h.handleMessage).Methods("POST")
	api.HandleFunc("/alerts", h.handleListAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id}/acknowledge", h.handleAcknowledgeAlert).Methods("POST")
	api.HandleFunc("/events/{id}", h.handleGetEvent).Methods("GET")
	api.HandleFunc("/users/{id}/profile", h.handleGetProfile).Methods("GET")
	api.HandleFunc("/stats", h.handleStats).Methods("GET")
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
		"service":   "guardian-engine",
	}
	h.writeJSON(w, http.StatusOK, health)
}

type analyzeRequest struct {
	URL     string `json:"url"`
	Options struct {
		SSLCheck   *bool `json:"ssl_check,omitempty"`
		Reputation *bool `json:"reputation,omitempty"`
		Malware    *bool `json:"malware,omitempty"`
		AI         *bool `json:"ai,omitempty"`
	} `json:"options"`
}

func (h *HTTPHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	opts := analyzer.DefaultOptions(h.config.Analysis)
	if req.Options.SSLCheck != nil {
		opts.SSLCheck = *req.Options.SSLCheck
	}
	if req.Options.Reputation != nil {
		opts.Reputation = *req.Options.Reputation
	}
	if req.Options.Malware != nil {
		opts.Malware = *req.Options.Malware
	}
	if req.Options.AI != nil {
		opts.AI = *req.Options.AI
	}

	result := h.orchestrator.AnalyzeURL(r.Context(), req.URL, opts)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Message == "" && req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "message or url is required")
		return
	}

	event, err := h.orchestrator.OnMessage(r.Context(), req)
	if err != nil {
		h.logger.Error("message processing failed", "user_id", req.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}
	h.writeJSON(w, http.StatusCreated, event)
}

func (h *HTTPHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	alerts := h.orchestrator.Alerts(userID)
	if alerts == nil {
		alerts = []*orchestrator.Alert{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (h *HTTPHandler) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	alert, err := h.orchestrator.Acknowledge(id)
	if errors.Is(err, orchestrator.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to acknowledge alert")
		return
	}
	h.writeJSON(w, http.StatusOK, alert)
}

func (h *HTTPHandler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	event, err := h.orchestrator.Event(id)
	if errors.Is(err, orchestrator.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load event")
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

func (h *HTTPHandler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	profile, err := h.orchestrator.UserProfile(r.Context(), id)
	if err != nil {
		h.logger.Error("profile lookup failed", "user_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	if profile == nil {
		h.writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.orchestrator.Stats())
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
