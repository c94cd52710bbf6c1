package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/slack-relay/internal/config"
	"github.com/ziadkadry99/slack-relay/internal/poster"
	"github.com/ziadkadry99/slack-relay/internal/relay"
	"github.com/ziadkadry99/slack-relay/internal/server"
	"github.com/ziadkadry99/slack-relay/internal/upstream"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if servePort != 0 {
			cfg.Port = servePort
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger := newLogger(cfg)
		slog.SetDefault(logger)

		// Missing secrets are not fatal: the relay still acks Slack and
		// logs, it just cannot relay until they are provided.
		missing := cfg.Missing()
		if len(missing) > 0 {
			logger.Warn("required configuration missing, events will be acknowledged but dropped", "missing", missing)
		}

		answerer := upstream.New(upstream.Options{
			URL:           cfg.Upstream.URL,
			AuthToken:     cfg.Upstream.AuthToken,
			AuthInHeader:  cfg.Upstream.AuthInHeader,
			Product:       cfg.Upstream.Product,
			RequestSource: cfg.Upstream.RequestSource,
			Timeout:       time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			ReplyFields:   cfg.Upstream.ReplyFields,
		}, logger)

		replyPoster := poster.New(cfg.Slack.BotToken, cfg.Slack.APIURL, logger)
		verifier := relay.NewVerifier(cfg.Slack.SigningSecret)
		dispatcher := relay.NewDispatcher(verifier, answerer, replyPoster, cfg.Upstream.Fallback, missing, logger)

		srv := server.New(server.Config{Port: cfg.Port}, logger)
		relay.RegisterRoutes(srv.Router(), dispatcher)

		// Graceful shutdown: stop accepting requests, then drain detached
		// relay work so in-flight replies still get posted.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown error", "error", err)
			}
		}()

		err = srv.Start()
		dispatcher.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the configured port")
	rootCmd.AddCommand(serveCmd)
}
