package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/slack-relay/internal/config"
	"github.com/ziadkadry99/slack-relay/internal/upstream"
)

var checkQuery string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Send a test query to the answer service and report the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger := newLogger(cfg)
		slog.SetDefault(logger)

		if cfg.Upstream.URL == "" {
			return fmt.Errorf("upstream.url is not configured")
		}

		client := upstream.New(upstream.Options{
			URL:           cfg.Upstream.URL,
			AuthToken:     cfg.Upstream.AuthToken,
			AuthInHeader:  cfg.Upstream.AuthInHeader,
			Product:       cfg.Upstream.Product,
			RequestSource: cfg.Upstream.RequestSource,
			Timeout:       time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			ReplyFields:   cfg.Upstream.ReplyFields,
		}, logger)

		fmt.Printf("Probing %s\n", cfg.Upstream.URL)
		res, err := client.Probe(context.Background(), checkQuery)
		if err != nil {
			return fmt.Errorf("probe failed: %w", err)
		}

		fmt.Printf("Status:  %d\n", res.Status)
		fmt.Printf("Elapsed: %s\n", res.Elapsed.Round(time.Millisecond))
		fmt.Printf("Body:    %s\n", res.Body)

		if text, err := upstream.ExtractMessage([]byte(res.Body), cfg.Upstream.ReplyFields); err == nil {
			fmt.Printf("Reply:   %s\n", text)
		} else {
			fmt.Println("Reply:   (no displayable message found)")
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkQuery, "query", "ping", "query to send")
	rootCmd.AddCommand(checkCmd)
}
