package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/server"
)

func newServeCmd(o *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history API, reports and live run feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				o.cfg.ListenAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := o.newApp(o.cfg, o.logger)
			defer func() {
				if err := a.Shutdown(context.Background()); err != nil {
					o.logger.Warn("shutdown", logging.Err(err))
				}
			}()
			store, err := a.Store()
			if err != nil {
				return err
			}

			srv, err := server.NewServer(server.Config{
				ListenAddr:   o.cfg.ListenAddr,
				Store:        store,
				Orchestrator: a.Orch,
				Registry:     a.Registry,
				ReportsDir:   o.cfg.Reports.A11yDir,
				ResultsDir:   o.cfg.Reports.ResultsDir,
				Logger:       o.logger,
			})
			if err != nil {
				return err
			}
			httpSrv := srv.HTTPServer()

			errCh := make(chan error, 1)
			go func() {
				o.logger.Info("listening", logging.Field{Key: "addr", Value: httpSrv.Addr})
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			o.logger.Info("shutting down")
			return httpSrv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
