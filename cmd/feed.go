package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/shopfront/internal/content"
	"github.com/conneroisu/shopfront/internal/site"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Write only the RSS feed",
	Long: `Build the RSS feed from the blog collection without rendering images.

Examples:
  shopfront feed                  # Write rss.xml into the output directory
  shopfront feed --drafts         # Include draft posts
  shopfront feed --stdout         # Print the feed instead of writing it`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd, map[string]string{
			"production": "build.production",
			"output":     "build.output_dir",
		})
	},
	RunE: runFeed,
}

var feedStdout bool

func init() {
	rootCmd.AddCommand(feedCmd)

	AddBuildModeFlags(feedCmd)
	feedCmd.Flags().StringP("output", "o", "", "Output directory")
	feedCmd.Flags().BoolVar(&feedStdout, "stdout", false, "Print the feed to stdout")
}

func runFeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyBuildMode(cmd, cfg)

	builder, err := site.NewBuilder(cfg, logger)
	if err != nil {
		return err
	}

	if feedStdout {
		posts, err := content.LoadPosts(cfg.Content.PostsDir)
		if err != nil {
			return err
		}
		_, data, err := builder.Feed(posts)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	path, n, err := builder.WriteFeed()
	if err != nil {
		return fmt.Errorf("feed failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d items to %s\n", n, path)
	return nil
}
