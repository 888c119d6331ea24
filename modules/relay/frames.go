package relay

import (
	"encoding/json"

	"github.com/Nsabwe/Cchat/domain/chat"
)

// Client to relay frame types.
const (
	TypeJoin          = "join"
	TypeJoinPrivate   = "joinPrivate"
	TypeMessage       = "message"
	TypeTyping        = "typing"
	TypeStopTyping    = "stopTyping"
	TypeDeleteMessage = "deleteMessage"
	TypeEditMessage   = "editMessage"
	TypeSendTip       = "sendTip"
	TypeMessageRead   = "messageRead"
)

// Relay to client frame types.
const (
	TypeConnected      = "connected"
	TypeNewMessage     = "newMessage"
	TypeMessageAck     = "messageAck"
	TypeMessageDeleted = "messageDeleted"
	TypeMessageEdited  = "messageEdited"
	TypeStatusUpdated  = "statusUpdated"
	TypePresence       = "presence"
	TypeTypingSnapshot = "typingSnapshot"
	TypeTipUpdate      = "tipUpdate"
	TypeHistory        = "history"
	TypeError          = "error"
)

// Inbound is the envelope of every client frame.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame is the envelope of every relay frame.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// JoinPayload is the payload of a join frame.
type JoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ProfileRef  string `json:"profileRef,omitempty"`
}

// JoinPrivatePayload is the payload of a joinPrivate frame.
type JoinPrivatePayload struct {
	SelfID  string `json:"selfId"`
	OtherID string `json:"otherId"`
}

// MessagePayload is the payload of a message frame. An empty RoomKey means Global.
type MessagePayload struct {
	RoomKey  string `json:"roomKey,omitempty"`
	SenderID string `json:"senderId,omitempty"`
	Content  string `json:"content"`
	MediaRef string `json:"mediaRef,omitempty"`
}

// TypingPayload is the payload of typing and stopTyping frames.
type TypingPayload struct {
	DisplayName string `json:"displayName"`
	RoomKey     string `json:"roomKey,omitempty"`
}

// Delete scopes.
const (
	ScopeEveryone = "everyone"
	ScopeMe       = "me"
)

// DeletePayload is the payload of a deleteMessage frame.
type DeletePayload struct {
	MessageID   string `json:"messageId"`
	RequesterID string `json:"requesterId,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// EditPayload is the payload of an editMessage frame.
type EditPayload struct {
	MessageID string `json:"messageId"`
	EditorID  string `json:"editorId,omitempty"`
	Content   string `json:"content"`
}

// SendTipPayload is the payload of a sendTip frame.
type SendTipPayload struct {
	RecipientUserID string  `json:"recipientUserId"`
	Amount          float64 `json:"amount"`
}

// ReadPayload is the payload of a messageRead frame.
type ReadPayload struct {
	MessageID string `json:"messageId"`
	ReaderID  string `json:"readerId"`
}

// ConnectedPayload greets a new connection.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// AckPayload tells the poster whether its message reached the store.
type AckPayload struct {
	MessageID string `json:"messageId"`
	Persisted bool   `json:"persisted"`
}

// MessageIDPayload carries a bare message id.
type MessageIDPayload struct {
	MessageID string `json:"messageId"`
}

// StatusPayload announces a status transition.
type StatusPayload struct {
	MessageID string      `json:"messageId"`
	Status    chat.Status `json:"status"`
	ReadBy    []string    `json:"readBy,omitempty"`
}

// PresencePayload lists the online users.
type PresencePayload struct {
	Users []*chat.UserSession `json:"users"`
	Count int                 `json:"count"`
}

// TypingSnapshot is the deduplicated set of display names typing in a room.
type TypingSnapshot struct {
	RoomKey      chat.RoomKey `json:"roomKey"`
	Count        int          `json:"count"`
	DisplayNames []string     `json:"displayNames"`
}

// TipUpdatePayload announces a recipient's new tip total.
type TipUpdatePayload struct {
	RecipientUserID string  `json:"recipientUserId"`
	NewTotal        float64 `json:"newTotal"`
}

// HistoryPayload carries a room's recent messages, oldest first.
type HistoryPayload struct {
	RoomKey  chat.RoomKey    `json:"roomKey"`
	Messages []*chat.Message `json:"messages"`
}

// ErrorPayload reports a connection-local failure.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
