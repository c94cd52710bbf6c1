package relay

import (
	"regexp"
	"strings"
)

// Envelope is the top-level Slack event payload.
type Envelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	EventID   string `json:"event_id"`
	Event     *Event `json:"event"`
}

// Event is the inner event of an event_callback.
type Event struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	User        string `json:"user"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts"`
	BotID       string `json:"bot_id"`
}

const (
	typeURLVerification = "url_verification"
	typeAppMention      = "app_mention"
	typeMessage         = "message"
	subtypeBotMessage   = "bot_message"
	channelTypeIM       = "im"
)

// FromBot reports whether the event was authored by a bot identity. Slack
// re-delivers the relay's own outgoing messages as events; acting on them
// would answer our own answers forever.
func (e *Event) FromBot() bool {
	return e.BotID != "" || e.Subtype == subtypeBotMessage
}

// WantsReply reports whether the event should be relayed downstream: a
// direct mention of the bot, or any message in a direct-message channel.
// Everything else is acknowledged and dropped.
func (e *Event) WantsReply() bool {
	if e.Type == typeAppMention {
		return true
	}
	return e.Type == typeMessage && e.ChannelType == channelTypeIM
}

var mentionPattern = regexp.MustCompile(`<@[^>]+>`)

// NormalizeText strips Slack mention markup and surrounding whitespace so
// the downstream service sees only the question.
func NormalizeText(s string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(s, ""))
}
