package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/shopfront/internal/inbox"
	"github.com/conneroisu/shopfront/internal/server"
	"github.com/conneroisu/shopfront/internal/site"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server with live reload",
	Long: `Build the site, serve the output directory and rebuild whenever a post or
the config file changes. Connected browsers reload after every rebuild.

The server also exposes the contact form API at /api/contact and a local form
relay at /relay whose submissions are kept in the inbox database.

Examples:
  shopfront serve                  # Serve on localhost:4321
  shopfront serve --port 3000      # Serve on another port
  shopfront serve --open           # Open the browser once listening
  shopfront serve --no-watch       # Build once, no live reload`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd, map[string]string{
			"port": "server.port",
			"host": "server.host",
		})
	},
	RunE: runServe,
}

var serveOpen bool

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 4321, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "Open the browser once the server is listening")
	serveCmd.Flags().Bool("no-watch", false, "Disable file watching and live reload")
	AddFlagValidation(serveCmd, "port", ValidatePort)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		cfg.Server.Watch = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := inbox.Open(ctx, cfg.Inbox.Path)
	if err != nil {
		return fmt.Errorf("failed to open inbox: %w", err)
	}
	defer store.Close()

	builder, err := site.NewBuilder(cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(cfg, builder, store, logger, server.WithConfigFile(viper.ConfigFileUsed()))

	url := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(cmd.OutOrStdout(), "Starting shopfront dev server at %s\n", url)
	if serveOpen {
		go func() {
			select {
			case <-ctx.Done():
			case <-time.After(300 * time.Millisecond):
				srv.OpenBrowser(url)
			}
		}()
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Server stopped")
	}
	return nil
}
