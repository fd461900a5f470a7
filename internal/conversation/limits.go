package conversation

// defaultMaxMessages applies to interaction types added to the product
// before this table learns about them.
const defaultMaxMessages = 4

// maxMessagesByType bounds the total transcript length per interaction
// type so conversations cannot run past their cost/abuse budget.
var maxMessagesByType = map[InteractionType]int{
	TypePeerReview:     5,
	TypeThreeSixty:     5,
	TypeSelfReflection: 4,
	TypePulseCheck:     3,
}

// MaxMessages returns the message-count ceiling for an interaction type.
func MaxMessages(t InteractionType) int {
	if max, ok := maxMessagesByType[t]; ok {
		return max
	}
	return defaultMaxMessages
}

// closingMessages holds the static text that ends each interaction type.
// Closing messages are never LLM-generated so termination stays
// deterministic and free.
var closingMessages = map[InteractionType]string{
	TypePeerReview:     "Thanks so much for sharing your feedback! Your input helps your teammate grow. This conversation is now complete.",
	TypeThreeSixty:     "That wraps up this 360 review — thank you for the thoughtful feedback. Your perspective makes a real difference.",
	TypeSelfReflection: "Great work reflecting on your recent experiences. Taking time for self-reflection like this is how growth happens. We're all done for today.",
	TypePulseCheck:     "Thanks for checking in! It's good to hear how you're doing. Talk to you at the next pulse check.",
}

// genericClosingMessage covers unrecognized interaction types.
const genericClosingMessage = "Thank you for taking the time to chat. This conversation is now complete."

// ClosingMessage returns the fixed closing text for an interaction type.
func ClosingMessage(t InteractionType) string {
	if msg, ok := closingMessages[t]; ok {
		return msg
	}
	return genericClosingMessage
}
