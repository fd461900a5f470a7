package config

import (
	"fmt"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .pulseloop.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to pulseloop! Let's configure your workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"anthropic", "openai", "google"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	fmt.Printf("Set %s before starting the server.\n\n", APIKeyEnvVar(cfg.Provider))

	// 2. Platforms.
	platformPrompt := promptui.Select{
		Label: "Which chat platform should pulseloop connect to first?",
		Items: []string{"slack", "google_chat", "teams"},
	}
	_, platformStr, err := platformPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("platform selection: %w", err)
	}

	switch platformStr {
	case "slack":
		cfg.Slack.Enabled = true
		cfg.Slack.BotToken, err = promptSecret("Slack bot token (xoxb-...)")
		if err != nil {
			return nil, err
		}
		cfg.Slack.SigningSecret, err = promptSecret("Slack signing secret")
		if err != nil {
			return nil, err
		}
	case "google_chat":
		cfg.GoogleChat.Enabled = true
		cfg.GoogleChat.VerificationToken, err = promptSecret("Google Chat verification token")
		if err != nil {
			return nil, err
		}
	case "teams":
		cfg.Teams.Enabled = true
		cfg.Teams.SecurityToken, err = promptSecret("Teams outgoing-webhook security token")
		if err != nil {
			return nil, err
		}
		urlPrompt := promptui.Prompt{Label: "Teams incoming-webhook URL"}
		cfg.Teams.WebhookURL, err = urlPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("webhook url: %w", err)
		}
	}

	// 3. Session token secret.
	cfg.SessionSecret, err = promptSecret("Session token secret (any random string)")
	if err != nil {
		return nil, err
	}

	if err := cfg.Save(".pulseloop.yml"); err != nil {
		return nil, err
	}
	fmt.Println("\nSaved .pulseloop.yml")
	return cfg, nil
}

func promptSecret(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("value is required")
			}
			return nil
		},
	}
	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("%s: %w", label, err)
	}
	return value, nil
}
