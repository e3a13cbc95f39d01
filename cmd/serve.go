package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/api"
	"github.com/sells-group/waste-risk/internal/config"
	"github.com/sells-group/waste-risk/internal/inference"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		port := cfg.Server.Port
		if servePort > 0 {
			port = servePort
		}
		srv, err := newHTTPServer(cfg, port)
		if err != nil {
			return err
		}
		return runServer(ctx, srv)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default server.port)")
	rootCmd.AddCommand(serveCmd)
}

func newHTTPServer(c *config.Config, port int) (*http.Server, error) {
	provider, name, err := newProvider(c, c.Data.ModelPath)
	if err != nil {
		return nil, err
	}
	s := api.New(inference.NewService(provider), api.Options{
		RiskDataPath: c.Data.RiskDataPath,
		CacheTTL:     time.Duration(c.Data.RiskDataCacheSecs) * time.Second,
		CORSOrigins:  c.Server.CORSOrigins,
		ModelName:    name,
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(c.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout:      time.Duration(c.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:       60 * time.Second,
	}, nil
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "serve")
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutdown")
	}
	return nil
}
