package server

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"

	siteerrors "github.com/conneroisu/shopfront/internal/errors"
	"github.com/conneroisu/shopfront/internal/form"
	"github.com/conneroisu/shopfront/internal/inbox"
	"github.com/conneroisu/shopfront/internal/logging"
)

// relayResponse mirrors the body shape of the hosted form relay.
type relayResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// handleRelay accepts a relay payload, the same JSON the browser form posts
// to the hosted relay.
func (s *DevServer) handleRelay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.inbox == nil {
		writeJSON(w, http.StatusServiceUnavailable, relayResponse{Message: "local relay has no inbox"})
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, relayResponse{Message: "request body too large"})
		return
	}

	payload, err := form.DecodePayload(data, s.config.Form.HoneypotField)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, relayResponse{Message: "invalid JSON body"})
		return
	}

	if key := s.config.Form.AccessKey; key != "" &&
		subtle.ConstantTimeCompare([]byte(key), []byte(payload.AccessKey)) != 1 {
		s.logger.Warn(r.Context(), nil, "Relay rejected access key",
			"access_key", logging.MaskSecret(payload.AccessKey))
		writeJSON(w, http.StatusUnauthorized, relayResponse{Message: "invalid access key"})
		return
	}

	sub, err := s.accept(r.Context(), payload)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, relayResponse{Message: "failed to store submission"})
		return
	}
	writeJSON(w, http.StatusOK, relayResponse{Success: true, Message: "Email sent successfully", ID: sub.ID})
}

// deliverLocal is the contact form submitter used when no hosted relay is
// configured.
func (s *DevServer) deliverLocal(ctx context.Context, payload form.Payload) error {
	if s.inbox == nil {
		return siteerrors.NewSubmissionError("ERR_INBOX_UNAVAILABLE", "local relay has no inbox", nil)
	}
	if _, err := s.accept(ctx, payload); err != nil {
		return siteerrors.NewSubmissionError("ERR_INBOX_SAVE", "failed to store submission", err)
	}
	return nil
}

// accept stores payload unless the honeypot was filled. Spam is acknowledged
// like a real submission so bots get no signal.
func (s *DevServer) accept(ctx context.Context, payload form.Payload) (inbox.Submission, error) {
	sub := inbox.FromPayload(payload, clientAddr(ctx))
	if sub.Spam {
		s.logger.Info(ctx, "Dropped honeypot submission", "client", sub.RemoteAddr)
		return sub, nil
	}

	saved, err := s.inbox.Save(ctx, sub)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to store submission")
		return saved, err
	}
	s.logger.Info(ctx, "Submission stored", "id", saved.ID, "service", saved.Service)
	return saved, nil
}

// handleSubmissions lists inbox contents, newest first.
func (s *DevServer) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.inbox == nil {
		writeError(w, http.StatusServiceUnavailable, "local relay has no inbox")
		return
	}

	opts := inbox.ListOptions{}
	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}
	opts.IncludeSpam, _ = strconv.ParseBool(query.Get("spam"))

	subs, err := s.inbox.List(r.Context(), opts)
	if err != nil {
		s.logger.Error(r.Context(), err, "Failed to list submissions")
		writeError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	if subs == nil {
		subs = []inbox.Submission{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": subs,
		"count":       len(subs),
	})
}
