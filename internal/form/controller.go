package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	siteerrors "github.com/conneroisu/shopfront/internal/errors"
)

// Submitter delivers a validated payload to the form relay.
type Submitter interface {
	Submit(ctx context.Context, payload Payload) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, payload Payload) error

// Submit calls f.
func (f SubmitterFunc) Submit(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}

// RetryLimiter gates a submit that follows a failed attempt.
type RetryLimiter interface {
	IsAllowed() bool
}

// Scheduler runs fn once after d. time.AfterFunc satisfies it.
type Scheduler func(d time.Duration, fn func()) *time.Timer

var (
	// ErrSubmitInFlight is returned while a previous submit is still waiting on the relay.
	ErrSubmitInFlight = errors.New("form: submission already in progress")
	// ErrAlreadySubmitted is returned once the form has been delivered.
	ErrAlreadySubmitted = errors.New("form: already submitted")
	// ErrRetryThrottled is returned when retries after a failure come too quickly.
	ErrRetryThrottled = errors.New("form: too many attempts, please wait before retrying")
)

const (
	SuccessMessage = "Thank you! Your message has been sent. We'll be in touch soon."
	FailureMessage = "Something went wrong sending your message. Please try again."
)

// Options configures a Controller. Only Submitter is required.
type Options struct {
	Submitter     Submitter
	Referrer      string
	AccessKey     string
	HoneypotField string
	SuccessPath   string
	RedirectDelay time.Duration
	Redirect      func(path string)
	Schedule      Scheduler
	RetryLimiter  RetryLimiter
}

// Outcome describes what a call to Submit did.
type Outcome struct {
	Status Status
	// Blocked is true when validation stopped the submit before any request.
	Blocked bool
	// ErrorCount is the number of invalid required fields on a blocked submit.
	ErrorCount int
	// Announcement is the text for a screen-reader live region.
	Announcement string
	// Message is the confirmation or banner text to display.
	Message string
	// RedirectTo is the success destination, empty unless Status is success.
	RedirectTo string
}

// Controller drives one form instance through idle, submitting, success and error.
type Controller struct {
	opts        Options
	attribution Attribution

	mu       sync.Mutex
	state    *State
	honeypot string
	banner   string
	redirect *time.Timer
}

// NewController creates a controller for a fresh form. Attribution is captured
// from opts.Referrer once, at creation.
func NewController(opts Options) *Controller {
	if opts.Schedule == nil {
		opts.Schedule = time.AfterFunc
	}
	if opts.HoneypotField == "" {
		opts.HoneypotField = "botcheck"
	}
	return &Controller{
		opts:        opts,
		attribution: CaptureAttribution(opts.Referrer),
		state:       NewState(),
	}
}

// Attribution returns the campaign parameters captured at creation.
func (c *Controller) Attribution() Attribution {
	return c.attribution
}

// Change forwards an input change to the form state.
func (c *Controller) Change(field Field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Change(field, value)
}

// Blur forwards a blur event to the form state.
func (c *Controller) Blur(field Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Blur(field)
}

// SetHoneypot records the concealed field value.
func (c *Controller) SetHoneypot(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.honeypot = value
}

// VisibleError returns the inline error for field.
func (c *Controller) VisibleError(field Field) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.VisibleError(field)
}

// Touched reports whether field is marked touched.
func (c *Controller) Touched(field Field) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Touched(field)
}

// FieldErrors returns the current validation errors.
func (c *Controller) FieldErrors() siteerrors.FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.FieldErrors()
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.status
}

// SubmitDisabled reports whether the submit control should be disabled.
func (c *Controller) SubmitDisabled() bool {
	return c.Status() == StatusSubmitting
}

// Banner returns the current error banner, if any.
func (c *Controller) Banner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

// Submit validates the form and, when every required field passes, sends one
// request through the Submitter. A blocked submit returns the field errors.
func (c *Controller) Submit(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	switch c.state.status {
	case StatusSubmitting:
		c.mu.Unlock()
		return Outcome{Status: StatusSubmitting}, ErrSubmitInFlight
	case StatusSuccess:
		c.mu.Unlock()
		return Outcome{Status: StatusSuccess}, ErrAlreadySubmitted
	}

	if n := c.state.ValidateAll(); n > 0 {
		outcome := Outcome{
			Status:       c.state.status,
			Blocked:      true,
			ErrorCount:   n,
			Announcement: errorAnnouncement(n),
		}
		fieldErrs := c.state.FieldErrors()
		c.mu.Unlock()
		return outcome, fieldErrs
	}

	if c.state.status == StatusError && c.opts.RetryLimiter != nil && !c.opts.RetryLimiter.IsAllowed() {
		status := c.state.status
		c.mu.Unlock()
		return Outcome{Status: status, Message: ErrRetryThrottled.Error()}, ErrRetryThrottled
	}

	payload := c.payloadLocked()
	c.state.status = StatusSubmitting
	c.banner = ""
	c.mu.Unlock()

	err := c.opts.Submitter.Submit(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state.status = StatusError
		c.banner = FailureMessage
		if !siteerrors.IsSubmission(err) {
			err = siteerrors.NewSubmissionError("ERR_SUBMIT_FAILED", "submission failed", err)
		}
		return Outcome{Status: StatusError, Message: FailureMessage, Announcement: FailureMessage}, err
	}

	c.state.status = StatusSuccess
	outcome := Outcome{
		Status:       StatusSuccess,
		Message:      SuccessMessage,
		Announcement: SuccessMessage,
		RedirectTo:   c.opts.SuccessPath,
	}
	if c.opts.Redirect != nil && c.opts.SuccessPath != "" {
		path := c.opts.SuccessPath
		redirect := c.opts.Redirect
		c.redirect = c.opts.Schedule(c.opts.RedirectDelay, func() { redirect(path) })
	}
	return outcome, nil
}

// Close cancels a pending success redirect.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.redirect != nil {
		c.redirect.Stop()
		c.redirect = nil
	}
}

func (c *Controller) payloadLocked() Payload {
	return Payload{
		Name:          c.state.trimmed(FieldName),
		Email:         c.state.trimmed(FieldEmail),
		Service:       c.state.trimmed(FieldService),
		Message:       c.state.trimmed(FieldMessage),
		Attribution:   c.attribution,
		AccessKey:     c.opts.AccessKey,
		Honeypot:      c.honeypot,
		HoneypotField: c.opts.HoneypotField,
	}
}

func errorAnnouncement(n int) string {
	if n == 1 {
		return "Please fix 1 error in the form"
	}
	return fmt.Sprintf("Please fix %d errors in the form", n)
}
