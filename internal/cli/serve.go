package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/batch-sub-translator/internal/config"
	"github.com/MimeLyc/batch-sub-translator/internal/httpapi"
	"github.com/MimeLyc/batch-sub-translator/internal/jobs"
	"github.com/MimeLyc/batch-sub-translator/internal/service"
	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(c *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP control surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(config.WithListenAddr(addr))
			if err != nil {
				return err
			}
			gw, err := c.gateway(cfg)
			if err != nil {
				return err
			}

			orch := service.NewOrchestrator(gw, serviceOptions(cfg))
			queue := jobs.NewQueue(1)
			srv := httpapi.NewServer(orch, queue, httpapi.WithAllowedOrigins(cfg.Server.AllowedOrigins))
			queue.Start(srv.Execute)

			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", cfg.Server.Addr)
			return serve(cmd.Context(), srv, cfg.Server.Addr, func() {
				orch.Cancel()
				queue.Stop()
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

// serve blocks until ctx is done or the listener fails, then shuts srv
// down and calls stop.
func serve(ctx context.Context, srv httpServer, addr string, stop func()) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown: %v", err)
	}
	stop()
	return serveErr
}
