package config

// LogFormat selects the slog handler used for process logs.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// Config is the top-level relay configuration, corresponding to .slack-relay.yml.
type Config struct {
	Port     int            `yaml:"port" koanf:"port"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
	Slack    SlackConfig    `yaml:"slack" koanf:"slack"`
	Upstream UpstreamConfig `yaml:"upstream" koanf:"upstream"`
}

// LogConfig holds process logging settings.
type LogConfig struct {
	Format LogFormat `yaml:"format" koanf:"format"`
	Level  string    `yaml:"level" koanf:"level"`
}

// SlackConfig holds credentials for the inbound webhook and the outbound
// chat.postMessage surface.
type SlackConfig struct {
	SigningSecret string `yaml:"signing_secret" koanf:"signing_secret"`
	BotToken      string `yaml:"bot_token" koanf:"bot_token"`
	APIURL        string `yaml:"api_url" koanf:"api_url"`
}

// UpstreamConfig describes the downstream answer service.
type UpstreamConfig struct {
	URL           string `yaml:"url" koanf:"url"`
	AuthToken     string `yaml:"auth_token" koanf:"auth_token"`
	AuthInHeader  bool   `yaml:"auth_in_header" koanf:"auth_in_header"`
	Product       string `yaml:"product" koanf:"product"`
	RequestSource string `yaml:"request_source" koanf:"request_source"`
	// TimeoutSeconds bounds a single downstream call. Slack has already been
	// acked by the time the call starts, so this only caps how stale an
	// answer may be before the fallback is posted instead.
	TimeoutSeconds int      `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	ReplyFields    []string `yaml:"reply_fields" koanf:"reply_fields"`
	Fallback       string   `yaml:"fallback" koanf:"fallback"`
}
