package http

import (
	"net/http"
	"time"

	"grana/internal/dashboard"
	"grana/internal/whatsapp"
)

// handleWebhookVerify answers the Cloud API's subscription handshake by
// echoing hub.challenge when the verify token matches.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("hub.verify_token")
	if !whatsapp.VerifyToken(token, s.verifyToken) {
		http.Error(w, "Invalid verification token", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(r.URL.Query().Get("hub.challenge")))
}

// handleWebhookEvent routes one inbound message through the bot and sends
// the replies back. Events that carry no text message (delivery statuses,
// media) are acknowledged and ignored; the Cloud API retries on anything
// but a 200.
func (s *Server) handleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	var payload whatsapp.Payload
	if err := decodeBody(r, &payload); err != nil {
		s.logger.WarnContext(r.Context(), "Webhook payload decode failed", "error", err)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("EVENT_RECEIVED"))
		return
	}

	from, body, ok := whatsapp.ExtractMessage(payload)
	if !ok {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("EVENT_RECEIVED"))
		return
	}

	replies, err := s.router.Handle(r.Context(), from, body)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Message handling failed", "error", err, "from", from)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("EVENT_RECEIVED"))
		return
	}

	for _, reply := range replies {
		if err := s.sender.SendText(r.Context(), from, reply); err != nil {
			s.logger.ErrorContext(r.Context(), "Reply send failed", "error", err, "to", from)
			break
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("EVENT_RECEIVED"))
}

// handleDashboard returns the aggregate read model for one user as JSON.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	data, err := dashboard.Build(r.Context(), s.store, userID, time.Now())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Dashboard build failed", "error", err, "user_id", userID)
		http.Error(w, "failed to build dashboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// handleCheckReminders triggers one sweep pass, mirroring the scheduled
// ticker for manual runs.
func (s *Server) handleCheckReminders(w http.ResponseWriter, r *http.Request) {
	if err := s.sweeper.Run(r.Context(), time.Now()); err != nil {
		s.logger.ErrorContext(r.Context(), "Reminder sweep failed", "error", err)
		http.Error(w, "reminder sweep failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Verificação de lembretes concluída."))
}
