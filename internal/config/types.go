package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderGoogle    ProviderType = "google"
)

// ModelOverrides pins concrete models per tier, overriding the provider's
// built-in defaults.
type ModelOverrides struct {
	Fast     string `yaml:"fast" koanf:"fast"`
	Standard string `yaml:"standard" koanf:"standard"`
	Advanced string `yaml:"advanced" koanf:"advanced"`
}

// SlackConfig holds Slack app credentials.
type SlackConfig struct {
	Enabled       bool   `yaml:"enabled" koanf:"enabled"`
	BotToken      string `yaml:"bot_token" koanf:"bot_token"`
	SigningSecret string `yaml:"signing_secret" koanf:"signing_secret"`
}

// GoogleChatConfig holds Google Chat app credentials.
type GoogleChatConfig struct {
	Enabled           bool   `yaml:"enabled" koanf:"enabled"`
	VerificationToken string `yaml:"verification_token" koanf:"verification_token"`
	AccessToken       string `yaml:"access_token" koanf:"access_token"`
}

// TeamsConfig holds Microsoft Teams webhook credentials.
type TeamsConfig struct {
	Enabled       bool   `yaml:"enabled" koanf:"enabled"`
	SecurityToken string `yaml:"security_token" koanf:"security_token"`
	WebhookURL    string `yaml:"webhook_url" koanf:"webhook_url"`
}

// Config is the top-level pulseloop configuration, corresponding to
// .pulseloop.yml.
type Config struct {
	Port    int    `yaml:"port" koanf:"port"`
	DataDir string `yaml:"data_dir" koanf:"data_dir"`

	Provider          ProviderType   `yaml:"provider" koanf:"provider"`
	Models            ModelOverrides `yaml:"models" koanf:"models"`
	EmbeddingProvider ProviderType   `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string         `yaml:"embedding_model" koanf:"embedding_model"`

	Slack      SlackConfig      `yaml:"slack" koanf:"slack"`
	GoogleChat GoogleChatConfig `yaml:"google_chat" koanf:"google_chat"`
	Teams      TeamsConfig      `yaml:"teams" koanf:"teams"`

	SessionSecret string `yaml:"session_secret" koanf:"session_secret"`

	// ConversationTTLMinutes is the idle deadline after which non-terminal
	// conversations are marked expired.
	ConversationTTLMinutes int `yaml:"conversation_ttl_minutes" koanf:"conversation_ttl_minutes"`

	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
