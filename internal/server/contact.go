package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"

	siteerrors "github.com/conneroisu/shopfront/internal/errors"
	"github.com/conneroisu/shopfront/internal/form"
	"github.com/conneroisu/shopfront/internal/validation"
)

// ContactResponse is the body returned by /api/contact.
type ContactResponse struct {
	Status       string            `json:"status"`
	Message      string            `json:"message,omitempty"`
	Announcement string            `json:"announcement,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
	Redirect     string            `json:"redirect,omitempty"`
	RequestID    string            `json:"request_id,omitempty"`
}

// handleContact runs one contact form submission through a fresh controller.
func (s *DevServer) handleContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	client := clientAddr(ctx)
	if !s.limiter.Allow(client) {
		wait := s.limiter.RetryAfter(client)
		w.Header().Set("Retry-After", fmt.Sprint(int(math.Ceil(wait.Seconds()))))
		s.logger.Warn(ctx, nil, "Contact rate limit exceeded", "client", client)
		writeJSON(w, http.StatusTooManyRequests, ContactResponse{
			Status:    form.StatusError.String(),
			Message:   form.ErrRetryThrottled.Error(),
			RequestID: requestID(ctx),
		})
		return
	}

	fields, err := readContactFields(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if stderrors.Is(err, errUnsupportedMedia) {
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, status, err.Error())
		return
	}

	referrer := fields["referrer"]
	if referrer == "" {
		referrer = r.Referer()
	}

	controller := form.NewController(form.Options{
		Submitter:     s.submitter,
		Referrer:      referrer,
		AccessKey:     s.config.Form.AccessKey,
		HoneypotField: s.config.Form.HoneypotField,
		SuccessPath:   s.config.Form.SuccessPath,
	})
	defer controller.Close()

	for _, field := range []form.Field{form.FieldName, form.FieldEmail, form.FieldService, form.FieldMessage} {
		controller.Change(field, fields[string(field)])
	}
	controller.SetHoneypot(fields[s.config.Form.HoneypotField])

	outcome, err := controller.Submit(ctx)
	resp := ContactResponse{
		Status:       outcome.Status.String(),
		Message:      outcome.Message,
		Announcement: outcome.Announcement,
		Redirect:     outcome.RedirectTo,
		RequestID:    requestID(ctx),
	}

	var fieldErrs siteerrors.FieldErrors
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case stderrors.As(err, &fieldErrs):
		resp.Errors = fieldErrs
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case siteerrors.IsSubmission(err):
		s.logger.Warn(ctx, err, "Contact submission failed", "request_id", resp.RequestID)
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		s.logger.Error(ctx, err, "Contact submission error", "request_id", resp.RequestID)
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

var errUnsupportedMedia = stderrors.New("content type must be application/json or a form encoding")

// readContactFields reads a JSON object or an HTML form post into a flat map
// of sanitized strings.
func readContactFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, errUnsupportedMedia
	}

	fields := make(map[string]string)
	switch mediaType {
	case "application/json":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		var raw map[string]interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		for key, value := range raw {
			switch v := value.(type) {
			case string:
				fields[key] = v
			case bool:
				if v {
					fields[key] = "true"
				}
			case nil:
			default:
				fields[key] = fmt.Sprint(v)
			}
		}

	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !stderrors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		for key := range r.PostForm {
			fields[key] = r.PostForm.Get(key)
		}

	default:
		return nil, errUnsupportedMedia
	}

	for key, value := range fields {
		fields[key] = validation.SanitizeInput(value)
	}
	return fields, nil
}
