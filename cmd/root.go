package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/slack-relay/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "slack-relay",
	Short: "Relay Slack events to an answer service and reply in-thread",
	Long: `slack-relay verifies inbound Slack webhooks, answers the URL
verification handshake, and relays mentions and direct messages to a
downstream answer service. Replies (or a fallback message when the
service is unavailable) are posted back to the originating thread.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Local development keeps secrets in .env; absence is fine.
		_ = godotenv.Load()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".slack-relay.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// newLogger builds the process logger from config, honoring --verbose.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Log.Level == "debug" || verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == config.LogJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
