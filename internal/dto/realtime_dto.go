package dto

import "encoding/json"

// Client to server websocket event types.
const (
	EventChatOpen         = "chat.open"
	EventChatClose        = "chat.close"
	EventMessageSend      = "message.send"
	EventReactionToggle   = "reaction.toggle"
	EventPresenceWatch    = "presence.watch"
	EventPresenceUnwatch  = "presence.unwatch"
	EventPresenceOffline  = "presence.offline"
	EventPing             = "ping"
	EventChatsSnapshot    = "chats.snapshot"
	EventMessagesSnapshot = "messages.snapshot"
	EventPresence         = "presence"
	EventRequestsSnapshot = "requests.snapshot"
	EventAck              = "ack"
	EventError            = "error"
	EventPong             = "pong"
	EventSessionReady     = "session.ready"
)

// ClientEvent is an inbound websocket frame.
type ClientEvent struct {
	Type    string          `json:"type" validate:"required,max=32"`
	Ref     string          `json:"ref,omitempty" validate:"max=64"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerEvent is an outbound websocket frame. Ref echoes the client event it answers.
type ServerEvent struct {
	Type    string      `json:"type"`
	Ref     string      `json:"ref,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// ChatOpenPayload selects the session's active chat.
type ChatOpenPayload struct {
	ChatID string `json:"chat_id" validate:"required,max=160"`
}

// MessageSendPayload posts to the active chat.
type MessageSendPayload struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// ReactionTogglePayload toggles an emoji in the active chat.
type ReactionTogglePayload struct {
	MessageID string `json:"message_id" validate:"required,max=64"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

// PresenceWatchPayload lists users whose presence the session follows.
type PresenceWatchPayload struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=200,dive,required,max=128"`
}

// SessionReadyPayload tells the client which presence session it holds.
type SessionReadyPayload struct {
	SessionID string `json:"session_id"`
}

// ErrorPayload describes a rejected client event.
type ErrorPayload struct {
	Message string `json:"message"`
}
