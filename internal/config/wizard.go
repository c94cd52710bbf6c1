package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to slack-relay! Let's configure your relay.")
	fmt.Println()

	cfg := DefaultConfig()

	secretPrompt := promptui.Prompt{
		Label: "Slack signing secret",
		Mask:  '*',
	}
	secret, err := secretPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("signing secret: %w", err)
	}
	cfg.Slack.SigningSecret = secret

	tokenPrompt := promptui.Prompt{
		Label: "Slack bot token (xoxb-...)",
		Mask:  '*',
	}
	token, err := tokenPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("bot token: %w", err)
	}
	cfg.Slack.BotToken = token

	urlPrompt := promptui.Prompt{
		Label:   "Answer service URL",
		Default: cfg.Upstream.URL,
	}
	url, err := urlPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("answer service URL: %w", err)
	}
	cfg.Upstream.URL = url

	authPrompt := promptui.Prompt{
		Label: "Answer service auth token",
		Mask:  '*',
	}
	auth, err := authPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("auth token: %w", err)
	}
	cfg.Upstream.AuthToken = auth

	placementPrompt := promptui.Select{
		Label: "Where does the auth token go",
		Items: []string{"sessionAttributes (request body)", "Authorization header"},
	}
	placement, _, err := placementPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("auth placement: %w", err)
	}
	cfg.Upstream.AuthInHeader = placement == 1

	timeoutPrompt := promptui.Prompt{
		Label:   "Downstream timeout in seconds",
		Default: strconv.Itoa(cfg.Upstream.TimeoutSeconds),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	timeout, err := timeoutPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("timeout: %w", err)
	}
	cfg.Upstream.TimeoutSeconds, _ = strconv.Atoi(timeout)

	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
