package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// Tier is the cost/quality dial for model selection. The orchestrator picks
// the tier per turn; callers never name concrete models.
type Tier string

const (
	TierFast     Tier = "fast"
	TierStandard Tier = "standard"
	TierAdvanced Tier = "advanced"
)

// CompletionRequest contains the parameters for a completion call.
type CompletionRequest struct {
	Messages    []Message
	Tier        Tier
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// Usage reports token consumption for a completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CompletionResponse contains the result of a completion call.
type CompletionResponse struct {
	Content   string
	Usage     Usage
	Model     string // resolved concrete model name
	LatencyMS int64
}
