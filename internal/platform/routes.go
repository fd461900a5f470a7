package platform

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Dispatcher hands a normalized inbound message off for orchestrator
// processing. A dispatch error makes the webhook answer 500 so the platform
// retries delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg InboundMessage) error
}

// RegisterRoutes mounts the per-platform webhook endpoints on the router.
func RegisterRoutes(r chi.Router, reg *Registry, dispatcher Dispatcher) {
	h := &webhookHandler{registry: reg, dispatcher: dispatcher}
	r.Post("/api/webhooks/{platform}", h.handle)
}

type webhookHandler struct {
	registry   *Registry
	dispatcher Dispatcher
}

// handle processes one webhook delivery: verify against the raw body bytes,
// echo handshake challenges, normalize, dispatch.
func (h *webhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	p := Platform(chi.URLParam(r, "platform"))
	if !h.registry.Has(p) {
		http.Error(w, "platform not configured", http.StatusServiceUnavailable)
		return
	}
	adapter, err := h.registry.Get(p)
	if err != nil {
		http.Error(w, "platform not configured", http.StatusServiceUnavailable)
		return
	}

	// Signature schemes run over the exact bytes received, so the body is
	// read once here and the raw slice travels alongside the parsed forms.
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	verification := adapter.VerifyWebhook(r.Header, rawBody)
	if !verification.IsValid {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	if verification.Challenge != "" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": verification.Challenge})
		return
	}

	msg, err := adapter.NormalizeInbound(rawBody)
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if msg == nil {
		// Event type irrelevant to conversations; acknowledge and drop.
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), *msg); err != nil {
		log.Printf("platform: dispatch failed for %s message %s: %v", p, msg.MessageID, err)
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
