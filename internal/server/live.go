package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pulseloop/pulseloop/internal/conversation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS layer; the token gates access.
	CheckOrigin: func(*http.Request) bool { return true },
}

// transcriptEvent is one message pushed to a live viewer.
type transcriptEvent struct {
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// handleLive upgrades to a websocket and streams the transcript of an
// in-progress conversation. The bearer token must have been issued for
// this conversation within the last 60 seconds.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	payload, err := s.tokens.Verify(token)
	if err != nil || payload.SessionID != id {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conv, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Push the current transcript, then poll for growth until the
	// conversation terminates or the viewer disconnects.
	sent := 0
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		msgs, err := s.store.ListMessages(r.Context(), id)
		if err != nil {
			log.Printf("server: live transcript read failed for %s: %v", id, err)
			return
		}
		conv, err = s.store.GetConversation(r.Context(), id)
		if err != nil {
			return
		}

		for ; sent < len(msgs); sent++ {
			m := msgs[sent]
			event := transcriptEvent{
				MessageID: m.ID,
				Sender:    string(m.Sender),
				Text:      m.Text,
				CreatedAt: m.CreatedAt,
				Status:    string(conv.Status),
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}

		if conv.Status == conversation.StatusClosed || conv.Status == conversation.StatusExpired {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(conv.Status)),
				time.Now().Add(5*time.Second))
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}
