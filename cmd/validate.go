package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/shopfront/internal/config"
	"github.com/conneroisu/shopfront/internal/content"
	"github.com/conneroisu/shopfront/internal/form"
)

// errInvalid is returned after a report has been printed so the process
// exits non-zero without printing the problem twice.
var errInvalid = errors.New("validation failed")

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the blog collection",
	Long: `Validate the configuration file and every post in the blog collection:

- Site URL, brand colours, port and paths in the configuration
- Front matter of every post (title, date, slug collisions)

Use "validate field" to check a single contact form value the way the form
does.

Examples:
  shopfront validate                           # Check config and posts
  shopfront validate --format json             # Output results as JSON
  shopfront validate field email jane@example  # Check one form value`,
	RunE: runValidateCommand,
}

var validateFieldCmd = &cobra.Command{
	Use:   "field <name|email|service|message> <value>",
	Short: "Validate one contact form value",
	Args:  cobra.ExactArgs(2),
	RunE:  runValidateField,
}

var validateOutput *OutputFlags

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.AddCommand(validateFieldCmd)
	validateOutput = AddOutputFlags(validateCmd)
}

// ValidationReport summarizes a validate run.
type ValidationReport struct {
	Valid     bool     `json:"valid"`
	Pages     int      `json:"pages"`
	Posts     int      `json:"posts"`
	Published int      `json:"published"`
	Drafts    int      `json:"drafts"`
	Errors    []string `json:"errors,omitempty"`
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	report := buildValidationReport(config.Load)

	err := validateOutput.Print(cmd.OutOrStdout(), report, func(w io.Writer) {
		printValidationReport(w, report)
	})
	if err != nil {
		return err
	}
	if !report.Valid {
		return errInvalid
	}
	return nil
}

func buildValidationReport(load func() (*config.Config, error)) ValidationReport {
	report := ValidationReport{Valid: true}

	cfg, err := load()
	if err != nil {
		report.Valid = false
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.Pages = len(cfg.Site.Pages)

	posts, err := content.LoadPosts(cfg.Content.PostsDir)
	if err != nil {
		report.Valid = false
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	report.Posts = len(posts)
	report.Published = len(content.Published(posts, true))
	report.Drafts = report.Posts - report.Published
	return report
}

func printValidationReport(w io.Writer, report ValidationReport) {
	if !report.Valid {
		fmt.Fprintln(w, "✗ Validation failed")
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		return
	}
	fmt.Fprintln(w, "✓ Configuration is valid")
	fmt.Fprintf(w, "  pages: %d\n", report.Pages)
	fmt.Fprintf(w, "  posts: %d (%d published, %d drafts)\n", report.Posts, report.Published, report.Drafts)
}

func runValidateField(cmd *cobra.Command, args []string) error {
	field, err := parseField(args[0])
	if err != nil {
		return err
	}

	if msg := form.Validate(field, args[1]); msg != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %s\n", field, msg)
		return errInvalid
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", field)
	return nil
}

func parseField(name string) (form.Field, error) {
	fields := []form.Field{form.FieldName, form.FieldEmail, form.FieldService, form.FieldMessage}
	for _, f := range fields {
		if strings.EqualFold(name, string(f)) {
			return f, nil
		}
	}

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown field %q, must be one of: %s", name, strings.Join(names, ", "))
}
