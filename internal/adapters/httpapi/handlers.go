package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"chat-gateway/backend/internal/contacts"
	"chat-gateway/backend/internal/protocol"
	"chat-gateway/backend/internal/session"

	"github.com/skip2/go-qrcode"
)

const maxBodyBytes = 64 * 1024

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodGet {
		s.notFound(w)
		return
	}
	snap := s.service.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        string(snap.State),
		"ready":         snap.Ready,
		"authenticated": snap.Authenticated,
		"hasQR":         snap.QR != "",
	})
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.notFound(w)
		return
	}
	qr, ok := s.qrPayload(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"qr": qr})
}

func (s *Server) handleQRImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.notFound(w)
		return
	}
	qr, ok := s.qrPayload(w)
	if !ok {
		return
	}
	png, err := qrcode.Encode(qr, qrcode.Medium, 512)
	if err != nil {
		s.logger.Error("qr png encoding failed", "error", err)
		writeError(w, http.StatusInternalServerError, "qr_encode_failed", "could not render QR image")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// qrPayload applies the shared /qr guards: 204 once the session is ready
// (payload superseded), 404 while no QR has been emitted yet.
func (s *Server) qrPayload(w http.ResponseWriter) (string, bool) {
	if s.service.Status().Ready {
		w.WriteHeader(http.StatusNoContent)
		return "", false
	}
	qr, ok := s.service.QR()
	if !ok {
		writeError(w, http.StatusNotFound, "qr_not_available", "no QR code has been emitted yet")
		return "", false
	}
	return qr, true
}

type sendRequest struct {
	Number  string `json:"number"`
	JID     string `json:"jid"`
	Message string `json:"message"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.notFound(w)
		return
	}
	if !s.allowSend(r) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many send requests")
		return
	}
	var req sendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "message is required")
		return
	}

	var jid string
	switch {
	case req.JID != "":
		if err := protocol.ValidateJID(req.JID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_jid", "jid is malformed")
			return
		}
		jid = req.JID
	case req.Number != "":
		number, err := protocol.NormalizeNumber(req.Number)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_number", "number contains no digits")
			return
		}
		jid = protocol.NumberToJID(number)
	default:
		writeError(w, http.StatusBadRequest, "missing_fields", "number or jid is required")
		return
	}

	if !s.dispatch(w, r, jid, req.Message) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "to": jid})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.notFound(w)
		return
	}
	list, ok := s.fetchContacts(w, r)
	if !ok {
		return
	}
	candidates := contacts.Filter(r.URL.Query().Get("query"), list)
	results := make([]map[string]any, 0, len(candidates))
	for _, cand := range candidates {
		results = append(results, contactResult(cand))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

type sendByNameRequest struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (s *Server) handleSendByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.notFound(w)
		return
	}
	if !s.allowSend(r) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many send requests")
		return
	}
	var req sendByNameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "name and message are required")
		return
	}

	list, ok := s.fetchContacts(w, r)
	if !ok {
		return
	}
	resolution := contacts.Resolve(req.Name, list)
	switch resolution.Outcome {
	case contacts.OutcomeNoMatch:
		writeError(w, http.StatusNotFound, "no_match", "no contact matches that name")
		return
	case contacts.OutcomeAmbiguous:
		candidates := make([]map[string]any, 0, len(resolution.Candidates))
		for _, cand := range resolution.Candidates {
			candidates = append(candidates, map[string]any{
				"jid":    cand.Contact.JID,
				"number": cand.Contact.Number,
				"name":   displayName(cand.Contact),
			})
		}
		writeJSON(w, http.StatusMultipleChoices, map[string]any{
			"error":      "ambiguous",
			"message":    "multiple contacts match equally well, disambiguate",
			"candidates": candidates,
		})
		return
	}

	target := resolution.Target
	if !s.dispatch(w, r, target.JID, req.Message) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"to":      target.JID,
		"name":    displayName(target),
	})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.notFound(w)
		return
	}
	if err := s.service.Restart(r.Context()); err != nil {
		s.logger.Error("session restart failed", "error", err)
		writeError(w, http.StatusInternalServerError, "restart_failed", "could not restart the session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// dispatch sends one message and writes the failure response if it cannot.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, jid, message string) bool {
	err := s.service.SendMessage(r.Context(), jid, message)
	if err == nil {
		return true
	}
	if errors.Is(err, session.ErrNotReady) || errors.Is(err, session.ErrNoClient) {
		writeError(w, http.StatusServiceUnavailable, "client_not_ready", "session is not ready to send")
		return false
	}
	s.logger.Error("message dispatch failed", "to", jid, "error", err)
	writeError(w, http.StatusInternalServerError, "send_failed", "the protocol client rejected the send")
	return false
}

func (s *Server) fetchContacts(w http.ResponseWriter, r *http.Request) ([]protocol.Contact, bool) {
	list, err := s.service.Contacts(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNotReady) || errors.Is(err, session.ErrNoClient) {
			writeError(w, http.StatusServiceUnavailable, "client_not_ready", "session is not ready")
			return nil, false
		}
		s.logger.Error("contact fetch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "contacts_failed", "could not fetch contacts")
		return nil, false
	}
	return list, true
}

func contactResult(cand contacts.Candidate) map[string]any {
	return map[string]any{
		"jid":       cand.Contact.JID,
		"number":    cand.Contact.Number,
		"name":      displayName(cand.Contact),
		"push_name": cand.Contact.PushName,
		"is_group":  cand.Contact.IsGroup,
		"score":     cand.Score,
	}
}

func displayName(c protocol.Contact) string {
	switch {
	case c.DisplayName != "":
		return c.DisplayName
	case c.PushName != "":
		return c.PushName
	case c.ShortName != "":
		return c.ShortName
	default:
		return c.Number
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return false
	}
	return true
}

func (s *Server) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not_found", "no such route")
}
