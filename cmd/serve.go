package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/longkey1/chatline/internal/chatline/panel"
	"github.com/longkey1/chatline/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var listenAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversation over HTTP",
	Long: `Serve one conversation over HTTP so that a browser or another client can drive it.

State changes are pushed to websocket clients connected to /events.
The listen address defaults to listen_addr from the configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg, os.Stderr)

		panels, err := panel.LoadAll(cfg.PanelDirs)
		if err != nil {
			return fmt.Errorf("loading panels: %w", err)
		}
		timeout, _ := cfg.Timeout()

		addr := cfg.ListenAddr
		if listenAddr != "" {
			addr = listenAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		coord := newCoordinator(cfg, logger)
		defer coord.StopVoice()

		srv := &http.Server{
			Addr: addr,
			Handler: server.NewServer(coord, panels,
				server.WithLogger(logger.With().Str("component", "http").Logger()),
				server.WithRequestTimeout(timeout),
			),
			ReadHeaderTimeout: 10 * time.Second,
			// Hijacked /events connections only see shutdown through this context.
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info().Str("addr", addr).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			logger.Info().Msg("shutting down")
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&listenAddr, "addr", "a", "", "Listen address (overrides listen_addr)")
}
