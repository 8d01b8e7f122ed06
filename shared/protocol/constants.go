package protocol

// Realtime topics
const (
	TopicMessages = "messages"
	TopicPresence = "presence"
)

// Tables exposed by the row store
const (
	TableMessages = "messages"
	TableProfiles = "profiles"
)

// Bot injection. A bot message is a normal messages row whose content starts
// with BotSentinel; readers strip it and show the reserved bot identity.
const (
	BotSentinel = "::bot::"
	BotUserID   = "spacebot"
	BotName     = "SpaceBot"
)

const (
	HistoryLimit = 50  // rows loaded on channel switch
	WindowLimit  = 100 // messages kept in memory per channel
	VIPCost      = 50  // coins charged for a highlighted message
)
