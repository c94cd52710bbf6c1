package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// envPrefix is the prefix for environment variable overrides, e.g.
// SLACK_RELAY_UPSTREAM_URL -> upstream.url.
const envPrefix = "SLACK_RELAY_"

// configSections are the nested keys recognized when mapping environment
// variables onto config paths.
var configSections = []string{"log", "slack", "upstream"}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (SLACK_RELAY_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: SLACK_RELAY_SLACK_SIGNING_SECRET ->
	// slack.signing_secret, SLACK_RELAY_PORT -> port, etc.
	if err := k.Load(env.Provider(envPrefix, ".", envKeyToPath), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envKeyToPath maps an environment variable name onto a koanf config path.
func envKeyToPath(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range configSections {
		if strings.HasPrefix(s, section+"_") {
			return section + "." + strings.TrimPrefix(s, section+"_")
		}
	}
	return s
}

// Save writes the configuration to the given YAML file path. Secrets end up
// in the file, so it is written owner-only.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks for values that make the process unable to run at all.
// Missing secrets are not hard errors; see Missing.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Log.Format != LogText && c.Log.Format != LogJSON {
		return fmt.Errorf("invalid log format %q: must be text or json", c.Log.Format)
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		return fmt.Errorf("upstream timeout_seconds must be positive")
	}
	if len(c.Upstream.ReplyFields) == 0 {
		return fmt.Errorf("upstream reply_fields must not be empty")
	}
	return nil
}

// Missing returns the names of required values that are absent. The relay
// starts anyway and acknowledges Slack, but skips processing and logs until
// these are provided.
func (c *Config) Missing() []string {
	var missing []string
	if c.Slack.SigningSecret == "" {
		missing = append(missing, "slack.signing_secret")
	}
	if c.Slack.BotToken == "" {
		missing = append(missing, "slack.bot_token")
	}
	if c.Upstream.URL == "" {
		missing = append(missing, "upstream.url")
	}
	if c.Upstream.AuthToken == "" {
		missing = append(missing, "upstream.auth_token")
	}
	return missing
}
