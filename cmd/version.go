package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/shopfront/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for shopfront including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version used for compilation
- Target platform (OS/architecture)

Examples:
  shopfront version                # Show version
  shopfront version --short        # Version only
  shopfront version --detailed     # One line per build attribute
  shopfront version --format json  # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	detailed, _ := cmd.Flags().GetBool("detailed")
	return writeVersion(cmd.OutOrStdout(), version.Info(), versionFormat, versionShort, detailed)
}

func writeVersion(w io.Writer, info version.BuildInfo, format string, short, detailed bool) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "text":
		switch {
		case short:
			fmt.Fprintln(w, version.Short())
		case detailed:
			fmt.Fprintln(w, info.Detailed())
		default:
			fmt.Fprintf(w, "shopfront %s", info.Version)
			if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
				fmt.Fprintf(w, " (%s)", info.GitCommit[:7])
			}
			if info.Dirty {
				fmt.Fprint(w, " (dirty)")
			}
			fmt.Fprintf(w, " %s %s\n", info.GoVersion, info.Platform)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}
}
