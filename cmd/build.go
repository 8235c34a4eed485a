package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/shopfront/internal/config"
	"github.com/conneroisu/shopfront/internal/logging"
	"github.com/conneroisu/shopfront/internal/site"
	"github.com/conneroisu/shopfront/internal/validation"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Write the RSS feed and preview images",
	Long: `Load the blog collection, write the RSS feed and render a preview image for
every configured page and visible post.

Builds are production builds by default: drafts are left out of the feed and
get no preview image. Pass --drafts to include them.

Examples:
  shopfront build                   # Production build
  shopfront build --drafts          # Development build, drafts included
  shopfront build --output public   # Build to a different directory
  shopfront build --format json     # Print the build summary as JSON`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd, map[string]string{
			"production": "build.production",
			"output":     "build.output_dir",
		})
	},
	RunE: runBuild,
}

var (
	buildClean  bool
	buildOutput *OutputFlags
)

func init() {
	rootCmd.AddCommand(buildCmd)

	AddBuildModeFlags(buildCmd)
	buildCmd.Flags().StringP("output", "o", "", "Output directory")
	buildCmd.Flags().BoolVar(&buildClean, "clean", false, "Remove generated images before building")
	buildOutput = AddOutputFlags(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyBuildMode(cmd, cfg)

	if buildClean {
		if err := cleanImages(cfg); err != nil {
			return err
		}
	}

	return buildSite(cmd, cfg, logger, buildOutput)
}

// BuildSummary is the JSON form of a build result.
type BuildSummary struct {
	Production      bool     `json:"production"`
	Posts           int      `json:"posts"`
	FeedItems       int      `json:"feed_items"`
	FeedPath        string   `json:"feed_path"`
	ImagesWritten   int      `json:"images_written"`
	ImagesUnchanged int      `json:"images_unchanged"`
	Images          []string `json:"images"`
	DurationMS      int64    `json:"duration_ms"`
}

func buildSite(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, out *OutputFlags) error {
	builder, err := site.NewBuilder(cfg, logger)
	if err != nil {
		return err
	}

	result, err := builder.Build(cmd.Context())
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	summary := BuildSummary{
		Production:      cfg.Build.Production,
		Posts:           result.Posts,
		FeedItems:       result.FeedItems,
		FeedPath:        result.FeedPath,
		ImagesWritten:   result.ImagesWritten,
		ImagesUnchanged: result.ImagesUnchanged,
		Images:          result.Images,
		DurationMS:      result.Duration.Milliseconds(),
	}

	return out.Print(cmd.OutOrStdout(), summary, func(w io.Writer) {
		mode := "development"
		if summary.Production {
			mode = "production"
		}
		fmt.Fprintf(w, "Built %s site in %dms\n", mode, summary.DurationMS)
		fmt.Fprintf(w, "  posts:  %d (%d in feed)\n", summary.Posts, summary.FeedItems)
		fmt.Fprintf(w, "  feed:   %s\n", summary.FeedPath)
		fmt.Fprintf(w, "  images: %d written, %d unchanged\n", summary.ImagesWritten, summary.ImagesUnchanged)
	})
}

// cleanImages removes the generated image directory. Only the image directory
// is removed, never the whole output directory.
func cleanImages(cfg *config.Config) error {
	dir := filepath.Join(cfg.Build.OutputDir, cfg.Build.ImageDir)
	if err := validation.ValidatePath(dir); err != nil {
		return fmt.Errorf("refusing to clean %s: %w", dir, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clean %s: %w", dir, err)
	}
	return nil
}
