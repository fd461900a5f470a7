package config

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:                   8080,
		DataDir:                ".pulseloop",
		Provider:               ProviderAnthropic,
		EmbeddingProvider:      ProviderOpenAI,
		EmbeddingModel:         "text-embedding-3-small",
		ConversationTTLMinutes: 24 * 60,
	}
}
