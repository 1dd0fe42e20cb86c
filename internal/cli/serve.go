package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"artscope/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scan API",
	Long: `Start the HTTP API.

Endpoints:
  POST /scan/          multipart upload (field "file"), returns the best match
  GET  /artworks       list the catalog
  GET  /artworks/{id}  one artwork
  GET  /healthz        liveness and catalog size

Examples:
  artscope serve
  artscope serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if n, err := a.catalog.Count(ctx); err == nil {
		GetLogger().Info("catalog loaded", "artworks", n, "store", cfg.Store.Driver)
	} else {
		GetLogger().Warn("artwork store not reachable at startup", "error", err)
	}

	srv := server.New(cfg.Server, server.Deps{
		Scan:      a.scan,
		Catalog:   a.catalog,
		Precision: cfg.Match.Precision,
		Model:     a.extractor.ModelName(),
		Logger:    GetLogger(),
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
