package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body
const SignatureHeader = "X-Webhook-Signature"

// Webhook events
const (
	EventFlagUpdated = "flag.updated"
	EventFlagDeleted = "flag.deleted"
	EventCacheFlush  = "cache.flush"
)

// WebhookPayload tells this replica that flags changed elsewhere
type WebhookPayload struct {
	Event     string   `json:"event"`
	FlagNames []string `json:"flag_names"`
	Timestamp string   `json:"timestamp,omitempty"`
}

type webhookResponse struct {
	Status      string   `json:"status"`
	Invalidated []string `json:"invalidated"`
	Failed      []string `json:"failed,omitempty"`
}

// Sign returns the signature for body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, domain.NewValidationErrorWithCause("failed to read body", err))
		return
	}

	if s.secret != "" && !s.verifySignature(r, body) {
		s.logger.Warn("Webhook rejected", zap.String("reason", "invalid signature"))
		s.writeMessage(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.writeError(w, r, domain.NewValidationErrorWithCause("malformed webhook payload", err))
		return
	}

	switch payload.Event {
	case EventFlagUpdated, EventFlagDeleted:
		resp := webhookResponse{Status: "ok", Invalidated: []string{}}
		for _, name := range payload.FlagNames {
			// one bad entry does not stop the rest
			if err := s.admin.Invalidate(r.Context(), name); err != nil {
				s.logger.Warn("Webhook invalidation failed", zap.String("flag", name), zap.Error(err))
				resp.Failed = append(resp.Failed, name)
				continue
			}
			resp.Invalidated = append(resp.Invalidated, name)
		}
		if len(resp.Failed) > 0 {
			resp.Status = "partial"
		}
		s.logger.Info("Webhook processed",
			zap.String("event", payload.Event),
			zap.Strings("flags", resp.Invalidated),
		)
		writeJSON(w, http.StatusOK, resp)

	case EventCacheFlush:
		if err := s.admin.InvalidateAll(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.Info("Webhook processed", zap.String("event", payload.Event))
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ok", Invalidated: []string{}})

	default:
		s.writeError(w, r, domain.NewValidationErrorWithFields("unknown webhook event", map[string]string{
			"event": payload.Event,
		}))
	}
}

func (s *Server) verifySignature(r *http.Request, body []byte) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(s.secret, body)))
}
