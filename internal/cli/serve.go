package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github-commit-monitor/internal/api"
	"github-commit-monitor/internal/report"
)

const shutdownTimeout = 10 * time.Second

func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.HTTPAddr
			}
			return c.serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	return cmd
}

func (c *CLI) serve(ctx context.Context, addr string) error {
	hist, closeHist, err := c.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeHist()

	deps := api.Deps{
		GitHub:       c.gh,
		Reporter:     report.NewReporter(c.gh, c.Logger, c.cfg.ReportConcurrency),
		Logger:       c.Logger,
		Timeout:      c.cfg.RequestTimeout * 2,
		TickInterval: c.cfg.TickInterval,
		HistoryLimit: c.cfg.HistoryLimit,
	}
	if hist != nil {
		deps.History = hist
		deps.Recorder = hist
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with the server's, which closes open streams.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Logger.Info("API server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c.Logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	c.Logger.Info("API server stopped")
	return nil
}
