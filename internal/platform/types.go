package platform

import "encoding/json"

// Platform identifies the messaging platform.
type Platform string

const (
	PlatformSlack      Platform = "slack"
	PlatformGoogleChat Platform = "google_chat"
	PlatformTeams      Platform = "teams"
)

// InboundMessage is the canonical representation of a message received from
// any platform. It is produced once per webhook event and never mutated.
type InboundMessage struct {
	Platform  Platform
	MessageID string // platform-native message id
	ChannelID string
	UserID    string
	UserName  string
	Text      string
	ThreadID  string // for threaded replies
	Timestamp string
	Raw       json.RawMessage // original payload, kept opaque
}

// BlockType enumerates the generic rich-message block kinds. Each adapter
// owns the translation into its platform's native schema.
type BlockType string

const (
	BlockText    BlockType = "text"
	BlockSection BlockType = "section"
	BlockActions BlockType = "actions"
	BlockDivider BlockType = "divider"
)

// ButtonStyle is the generic styling hint for action buttons.
type ButtonStyle string

const (
	StyleDefault     ButtonStyle = ""
	StylePrimary     ButtonStyle = "primary"
	StyleDestructive ButtonStyle = "destructive"
)

// Button is a single action inside an actions block.
type Button struct {
	ActionID string
	Label    string
	Value    string
	Style    ButtonStyle
}

// Block is one element of an outbound rich message.
type Block struct {
	Type    BlockType
	Text    string
	Buttons []Button // actions blocks only
}

// OutboundMessage is the canonical representation of a message to send.
// It is constructed per orchestrator turn and consumed exactly once.
type OutboundMessage struct {
	Platform  Platform
	ChannelID string
	ThreadID  string
	Text      string
	Blocks    []Block
}

// Verification is the result of a webhook authenticity check. A non-empty
// Challenge means the platform is performing its registration handshake and
// expects the value echoed back with no further processing.
type Verification struct {
	IsValid   bool
	Challenge string
}

// User is the resolved identity behind a platform user id.
type User struct {
	ID    string
	Name  string
	Email string
}
