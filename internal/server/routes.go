package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulseloop/pulseloop/internal/conversation"
	"github.com/pulseloop/pulseloop/internal/platform"
)

// registerConversationRoutes mounts the conversation control endpoints.
// Authn/authz for these is owned by upstream middleware, which is outside
// this core.
func (s *Server) registerConversationRoutes(r chi.Router) {
	r.Post("/api/conversations", s.handleCreateConversation)
	r.Post("/api/conversations/{id}/viewer-token", s.handleViewerToken)
	r.Get("/api/conversations/{id}/live", s.handleLive)
}

type createConversationRequest struct {
	Type        string `json:"type"`
	Platform    string `json:"platform"`
	ChannelID   string `json:"channel_id"`
	ThreadID    string `json:"thread_id"`
	UserID      string `json:"user_id"`
	SubjectName string `json:"subject_name"`
}

// handleCreateConversation persists a scheduled conversation and
// immediately initiates it by sending the opening prompt.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Platform == "" || req.ChannelID == "" || req.UserID == "" {
		http.Error(w, "platform, channel_id, and user_id are required", http.StatusBadRequest)
		return
	}

	conv := &conversation.Conversation{
		ID:          uuid.NewString(),
		Type:        conversation.InteractionType(req.Type),
		Platform:    platform.Platform(req.Platform),
		ChannelID:   req.ChannelID,
		ThreadID:    req.ThreadID,
		UserID:      req.UserID,
		SubjectName: req.SubjectName,
		Status:      conversation.StatusScheduled,
		ScheduledAt: time.Now(),
	}
	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		http.Error(w, "failed to create conversation", http.StatusInternalServerError)
		return
	}

	if err := s.orchestrator.StartConversation(r.Context(), conv.ID); err != nil {
		http.Error(w, "failed to initiate conversation", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": conv.ID})
}

// handleViewerToken issues a 60-second token authorizing a live viewer to
// attach to the conversation.
func (s *Server) handleViewerToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetConversation(r.Context(), id); err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		OrgID  string `json:"org_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	token, err := s.tokens.Issue(req.UserID, req.OrgID, id)
	if err != nil {
		http.Error(w, "token issuance unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}
