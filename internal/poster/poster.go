// Package poster sends replies back to Slack threads via chat.postMessage.
package poster

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// Poster posts messages with the bot credential. Posting is fire-and-forget
// from the relay's perspective: Slack already received its acknowledgment,
// so a failure here is logged by the caller and goes no further.
type Poster struct {
	client *slack.Client
	logger *slog.Logger
}

// New creates a Poster. apiURL overrides the Slack API base, which is how
// tests point the client at a local server.
func New(botToken, apiURL string, logger *slog.Logger) *Poster {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	opts := []slack.Option{slack.OptionHTTPClient(httpClient)}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(apiURL, "/")+"/"))
	}
	return &Poster{
		client: slack.New(botToken, opts...),
		logger: logger,
	}
}

// PostReply posts text to the given channel, threaded under threadTS.
func (p *Poster) PostReply(ctx context.Context, channel, threadTS, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := p.client.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return err
	}
	p.logger.Debug("message posted", "channel", channel, "ts", ts)
	return nil
}
