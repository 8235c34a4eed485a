package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/shopfront/internal/config"
)

// OutputFlags are the formatting flags shared by commands that print results.
type OutputFlags struct {
	Format string
	Quiet  bool
}

var outputFormats = []string{"text", "json"}

// AddOutputFlags adds --format and --quiet to cmd.
func AddOutputFlags(cmd *cobra.Command) *OutputFlags {
	flags := &OutputFlags{}
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "text", "Output format (text|json)")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress text output")
	AddFlagValidation(cmd, "format", ValidateOutputFormat)
	return flags
}

// JSON reports whether results should be printed as JSON.
func (f *OutputFlags) JSON() bool {
	return f.Format == "json"
}

// Print writes v as indented JSON, or calls text for text output.
func (f *OutputFlags) Print(w io.Writer, v interface{}, text func(io.Writer)) error {
	if f.JSON() {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if !f.Quiet {
		text(w)
	}
	return nil
}

// AddBuildModeFlags adds --production, on by default, and its --drafts opt-out
// to a command that writes site output.
func AddBuildModeFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("production", true, "Production build: leave drafts out")
	cmd.Flags().Bool("drafts", false, "Include draft posts (development build)")
	cmd.MarkFlagsMutuallyExclusive("production", "drafts")
}

// applyBuildMode turns a --drafts run into a development build.
func applyBuildMode(cmd *cobra.Command, cfg *config.Config) {
	if drafts, _ := cmd.Flags().GetBool("drafts"); drafts {
		cfg.Build.Production = false
	}
}

// SetViperBindings binds flags to viper configuration keys. Commands call it
// from PreRunE so that several commands can bind the same key.
func SetViperBindings(cmd *cobra.Command, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", flagName)
		}
		if err := viper.BindPFlag(configKey, flag); err != nil {
			return err
		}
	}
	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateOutputFormat accepts the formats understood by OutputFlags.
func ValidateOutputFormat(format string) error {
	for _, valid := range outputFormats {
		if format == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s",
		format, strings.Join(outputFormats, ", "))
}

// ValidatePort accepts 1-65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}

// ValidatePositive accepts integers greater than zero.
func ValidatePositive(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid number: %s", value)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}
