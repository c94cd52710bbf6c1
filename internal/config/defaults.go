package config

// DefaultReplyFields is the order in which top-level response fields are
// checked when extracting a displayable answer from the downstream service.
// The upstream contract is not fixed, so the order is configurable.
var DefaultReplyFields = []string{"message", "reply", "response"}

// DefaultFallback is posted to the originating thread when the downstream
// service times out, is unreachable, or returns nothing usable.
const DefaultFallback = "Sorry, I couldn't reach the answer service right now. Please try again shortly."

// DefaultConfig returns a Config with sensible defaults. Secrets have no
// defaults and must come from the config file or environment.
func DefaultConfig() *Config {
	return &Config{
		Port: 8080,
		Log: LogConfig{
			Format: LogText,
			Level:  "info",
		},
		Slack: SlackConfig{
			APIURL: "https://slack.com/api/",
		},
		Upstream: UpstreamConfig{
			Product:        "voice_assure",
			RequestSource:  "slack",
			TimeoutSeconds: 25,
			ReplyFields:    DefaultReplyFields,
			Fallback:       DefaultFallback,
		},
	}
}
