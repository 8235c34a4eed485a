package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/conneroisu/shopfront/internal/content"
	"github.com/conneroisu/shopfront/internal/ogimage"
	"github.com/conneroisu/shopfront/internal/site"
)

var ogCmd = &cobra.Command{
	Use:   "og",
	Short: "Render social preview images",
	Long: `Render the 1200x630 preview image for every configured page and visible
post, or a single image for an arbitrary title.

Examples:
  shopfront og                                        # Render every image
  shopfront og --list                                 # Show what would be rendered
  shopfront og --title "Spring offers" --category News --out spring.png`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd, map[string]string{
			"production": "build.production",
			"output":     "build.output_dir",
		})
	},
	RunE: runOG,
}

var (
	ogTitle    string
	ogCategory string
	ogOut      string
	ogList     bool
	ogOutput   *OutputFlags
)

func init() {
	rootCmd.AddCommand(ogCmd)

	AddBuildModeFlags(ogCmd)
	ogCmd.Flags().StringP("output", "o", "", "Output directory")
	ogCmd.Flags().StringVar(&ogTitle, "title", "", "Render a single image with this title")
	ogCmd.Flags().StringVar(&ogCategory, "category", "", "Badge text for --title")
	ogCmd.Flags().StringVar(&ogOut, "out", "og.png", "File written by --title, - for stdout")
	ogCmd.Flags().BoolVar(&ogList, "list", false, "List the images without rendering them")
	ogOutput = AddOutputFlags(ogCmd)
}

func runOG(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyBuildMode(cmd, cfg)

	if ogTitle != "" {
		brand, err := ogimage.BrandFromHex(cfg.Brand.Name, cfg.Brand.Background, cfg.Brand.Accent, cfg.Brand.Foreground)
		if err != nil {
			return err
		}
		return renderSingle(cmd.OutOrStdout(), ogimage.NewRenderer(brand, cfg.Site.URL), ogTitle, ogCategory, ogOut)
	}

	builder, err := site.NewBuilder(cfg, logger)
	if err != nil {
		return err
	}

	if ogList {
		posts, err := content.LoadPosts(cfg.Content.PostsDir)
		if err != nil {
			return err
		}
		targets := builder.ImageTargets(posts)
		return ogOutput.Print(cmd.OutOrStdout(), targets, func(w io.Writer) {
			for _, target := range targets {
				fmt.Fprintf(w, "%s\t%s\t%s\n", target.Path, target.Category, target.Title)
			}
		})
	}

	result, err := builder.RenderImages(cmd.Context())
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return ogOutput.Print(cmd.OutOrStdout(), result.Images, func(w io.Writer) {
		fmt.Fprintf(w, "Rendered %d images (%d unchanged) into %s\n",
			result.ImagesWritten, result.ImagesUnchanged, filepath.Join(cfg.Build.OutputDir, cfg.Build.ImageDir))
	})
}

func renderSingle(stdout io.Writer, renderer *ogimage.Renderer, title, category, out string) error {
	data, err := renderer.Render(title, category)
	if err != nil {
		return err
	}

	if out == "-" {
		_, err := stdout.Write(data)
		return err
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := atomic.WriteFile(out, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(stdout, "Wrote %s\n", out)
	return nil
}
