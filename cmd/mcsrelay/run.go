package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Wyydra/mcsrelay/internal/adapter/driven/emitter/memory"
	"github.com/Wyydra/mcsrelay/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/mcsrelay/internal/adapter/driven/media/mcs"
	handler "github.com/Wyydra/mcsrelay/internal/adapter/driving/http"
	"github.com/Wyydra/mcsrelay/internal/config"
	"github.com/Wyydra/mcsrelay/internal/core/port"
	"github.com/Wyydra/mcsrelay/internal/core/service"
	"github.com/Wyydra/mcsrelay/internal/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd() *cobra.Command {
	v := viper.New()
	var configDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configDir)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	addRunFlags(cmd, v, &configDir)
	return cmd
}

// addRunFlags declares the run flags on cmd and binds each to its config
// key in v.
func addRunFlags(cmd *cobra.Command, v *viper.Viper, configDir *string) {
	d := config.Default()
	f := cmd.Flags()
	f.StringVar(configDir, "config-dir", "", "Directory holding mcsrelay.{yaml,toml,json}")
	f.Int("port", d.Server.Port, "Port to accept client connections on")
	f.String("path", d.Server.Path, "WebSocket endpoint path")
	f.Duration("connection-timeout", d.Server.ConnectionTimeout, "Client handshake timeout")
	f.Int64("max-message-bytes", d.Server.MaxMessageBytes, "Largest client frame accepted (0 disables)")
	f.Int("max-messages-per-second", d.Server.MaxMessagesPerSecond, "Per-connection message rate (0 disables)")
	f.String("upstream-address", d.Upstream.Address, "Media control server address")
	f.Int("upstream-port", d.Upstream.Port, "Media control server port")
	f.Bool("upstream-secure", d.Upstream.Secure, "Use wss:// for the media control server")
	f.Duration("upstream-connect-timeout", d.Upstream.ConnectTimeout, "Deadline for connecting to the media control server")
	f.Duration("response-timeout", d.Upstream.ResponseTimeout, "Deadline for each relayed operation (0 disables)")
	f.Duration("exit-timeout", d.ExitTimeout, "Grace period for shutdown")
	f.String("log-level", d.Log.Level, "debug, info, warn, error")
	f.String("log-format", d.Log.Format, "console or json")

	for key, name := range map[string]string{
		config.KeyServerPort:                 "port",
		config.KeyServerPath:                 "path",
		config.KeyServerConnectionTimeout:    "connection-timeout",
		config.KeyServerMaxMessageBytes:      "max-message-bytes",
		config.KeyServerMaxMessagesPerSecond: "max-messages-per-second",
		config.KeyUpstreamAddress:            "upstream-address",
		config.KeyUpstreamPort:               "upstream-port",
		config.KeyUpstreamSecure:             "upstream-secure",
		config.KeyUpstreamConnectTimeout:     "upstream-connect-timeout",
		config.KeyUpstreamResponseTimeout:    "response-timeout",
		config.KeyExitTimeout:                "exit-timeout",
		config.KeyLogLevel:                   "log-level",
		config.KeyLogFormat:                  "log-format",
	} {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func run(ctx context.Context, cfg config.Config) error {
	l, err := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	log.Logger = l

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	upstreamEvents := memory.NewEmitter()
	hub := ws.NewHub()

	media := mcs.NewClient(mcs.Config{
		Address:        cfg.Upstream.Address,
		Port:           cfg.Upstream.Port,
		Secure:         cfg.Upstream.Secure,
		ConnectTimeout: cfg.Upstream.ConnectTimeout,
	}, upstreamEvents)

	startCtx, cancel := context.WithTimeout(ctx, cfg.Upstream.ConnectTimeout)
	err = media.Start(startCtx)
	cancel()
	if err != nil {
		return err
	}
	defer media.Close()

	relay := service.NewRelay(media, cfg.Upstream.ResponseTimeout)
	sessionService := service.NewSessionService(relay, upstreamEvents, func() port.EventEmitter {
		return memory.NewEmitter()
	}, hub)

	h := handler.NewHandler(sessionService, hub, media, handler.Options{
		Path:                 cfg.Server.Path,
		ConnectionTimeout:    cfg.Server.ConnectionTimeout,
		MaxMessageBytes:      cfg.Server.MaxMessageBytes,
		MaxMessagesPerSecond: cfg.Server.MaxMessagesPerSecond,
	})

	addr := net.JoinHostPort("", strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:    addr,
		Handler: h.NewRouter(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("path", cfg.Server.Path).Msg("Relay is ready to receive connections")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Dur("exit_timeout", cfg.ExitTimeout).Msg("Shutting down relay...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ExitTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Stop()

	log.Info().Msg("Relay exited")
	return nil
}
