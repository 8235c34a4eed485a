package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/shopfront/internal/config"
	siteerrors "github.com/conneroisu/shopfront/internal/errors"
	"github.com/conneroisu/shopfront/internal/form"
	"github.com/conneroisu/shopfront/internal/logging"
	"github.com/conneroisu/shopfront/internal/ratelimit"
	"github.com/conneroisu/shopfront/internal/relay"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send a test contact form submission",
	Long: `Fill in the contact form from flags and submit it to the form relay, going
through the same validation and retry rules as the website.

Without --endpoint the configured relay is used, or the local relay of a
running "shopfront serve" when none is configured.

Examples:
  shopfront submit --name "Jane Doe" --email jane@example.com \
    --message "Testing the contact form"
  shopfront submit --attempts 3 --endpoint https://relay.example/submit`,
	RunE: runSubmit,
}

type submitOptions struct {
	Name     string
	Email    string
	Service  string
	Message  string
	Referrer string
	Endpoint string
	Attempts int
}

var submitOpts submitOptions

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitOpts.Name, "name", "", "Visitor name")
	submitCmd.Flags().StringVar(&submitOpts.Email, "email", "", "Visitor email")
	submitCmd.Flags().StringVar(&submitOpts.Service, "service", "", "Requested service")
	submitCmd.Flags().StringVar(&submitOpts.Message, "message", "", "Message body")
	submitCmd.Flags().StringVar(&submitOpts.Referrer, "referrer", "", "Referring URL, utm_* parameters are attached")
	submitCmd.Flags().StringVar(&submitOpts.Endpoint, "endpoint", "", "Relay endpoint (overrides form.endpoint)")
	submitCmd.Flags().IntVar(&submitOpts.Attempts, "attempts", 1, "Submit attempts before giving up")
	AddFlagValidation(submitCmd, "attempts", ValidatePositive)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return submitMessage(cmd.Context(), cmd.OutOrStdout(), cfg, logger, submitOpts)
}

// relayEndpoint picks the endpoint a test submission goes to.
func relayEndpoint(cfg *config.Config, override string) string {
	switch {
	case override != "":
		return override
	case cfg.Form.Endpoint != "":
		return cfg.Form.Endpoint
	default:
		return fmt.Sprintf("http://%s:%d/relay", cfg.Server.Host, cfg.Server.Port)
	}
}

func submitMessage(ctx context.Context, out io.Writer, cfg *config.Config, logger logging.Logger, opts submitOptions) error {
	endpoint := relayEndpoint(cfg, opts.Endpoint)

	formOpts := form.Options{
		Submitter:     relay.NewClient(endpoint, cfg.Form.Timeout, logger),
		Referrer:      opts.Referrer,
		AccessKey:     cfg.Form.AccessKey,
		HoneypotField: cfg.Form.HoneypotField,
		SuccessPath:   cfg.Form.SuccessPath,
	}
	var limiter *ratelimit.SlidingWindow
	if cfg.Form.RetryLimit > 0 {
		limiter = ratelimit.NewSlidingWindow(cfg.Form.RetryLimit, cfg.Form.RetryWindow)
		formOpts.RetryLimiter = limiter
	}

	controller := form.NewController(formOpts)
	defer controller.Close()

	controller.Change(form.FieldName, opts.Name)
	controller.Change(form.FieldEmail, opts.Email)
	controller.Change(form.FieldService, opts.Service)
	controller.Change(form.FieldMessage, opts.Message)

	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; {
		outcome, err := controller.Submit(ctx)

		var fieldErrs siteerrors.FieldErrors
		switch {
		case err == nil:
			fmt.Fprintf(out, "✓ %s\n", outcome.Message)
			if outcome.RedirectTo != "" {
				fmt.Fprintf(out, "  visitors are redirected to %s\n", outcome.RedirectTo)
			}
			return nil

		case errors.As(err, &fieldErrs):
			fmt.Fprintf(out, "✗ %s\n", outcome.Announcement)
			fields := make([]string, 0, len(fieldErrs))
			for field := range fieldErrs {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				fmt.Fprintf(out, "  - %s: %s\n", field, fieldErrs[field])
			}
			return errInvalid

		case errors.Is(err, form.ErrRetryThrottled):
			wait := limiter.RetryAfter()
			fmt.Fprintf(out, "  throttled, retrying in %s\n", wait.Round(time.Millisecond))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}

		case attempt >= attempts:
			fmt.Fprintf(out, "✗ %s\n", outcome.Message)
			return fmt.Errorf("submission to %s failed: %w", endpoint, err)

		default:
			fmt.Fprintf(out, "  attempt %d failed: %v\n", attempt, err)
			attempt++
		}
	}
}
