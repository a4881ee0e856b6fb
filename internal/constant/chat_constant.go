package constant

const (
	SystemPrompt = "You are ChatEdge, an intelligent AI assistant. Never claim that the user previously told you this or that it was discussed earlier."

	TitleMaxRunes = 50
	TitleSuffix   = "..."

	DefaultContextWindow = 8
)

// Realtime event names.
const (
	EventChatNew        = "chat:new"
	EventAssistantToken = "assistant:token"
	EventAssistantDone  = "assistant:done"
	EventChatError      = "chat:error"
	EventRateLimit      = "rate-limit"
	EventChatSync       = "chat:sync"
)

// Client-facing messages.
const (
	MsgOK                 = "OK"
	MsgSomethingWentWrong = "Something went wrong"
	MsgMessageRequired    = "Message is required"
	MsgUnknownEvent       = "Unknown event"
	MsgUserExists         = "User already registered"
	MsgUserNotRegistered  = "User not registered"
	MsgIncorrectPassword  = "Incorrect Password"
	MsgTokenNotReceived   = "Token Not Received"
	MsgTokenExpired       = "Token Expired"
	MsgTokenMalfunction   = "User not registered OR Token malfunctioned"
	MsgPermissionMismatch = "Permissions didn't match"
)

const (
	MsgInvalidFrame = "Invalid message format"
	MsgQueueFull    = "Too many pending messages"
)
