package relay

import (
	"github.com/Nsabwe/Cchat/domain/chat"
)

// Service names exposed by the relay module.
const (
	ServiceRegisterUser  = "register-user"
	ServiceListOnline    = "list-online"
	ServiceRoomHistory   = "room-history"
	ServiceTipTotal      = "tip-total"
	ServiceSubscribePush = "subscribe-push"
)

// Status is carried by every service response. A non-empty Code reports an
// engine error that the caller can map without matching on message text.
type Status struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func statusOf(err error) Status {
	if err == nil {
		return Status{}
	}
	return Status{Code: errorCode(err), Message: err.Error()}
}

// RegisterUserRequest is the request for registering a user.
type RegisterUserRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	ProfileRef  string `json:"profile_ref,omitempty"`
}

// RegisterUserResponse is the response for registering a user.
type RegisterUserResponse struct {
	Status
	User *chat.UserSession `json:"user,omitempty"`
}

// ListOnlineRequest is the request for listing online users.
type ListOnlineRequest struct{}

// ListOnlineResponse is the response for listing online users.
type ListOnlineResponse struct {
	Status
	Users []*chat.UserSession `json:"users"`
	Count int                 `json:"count"`
}

// RoomHistoryRequest is the request for a room's recent messages.
type RoomHistoryRequest struct {
	RoomKey  string `json:"room_key"`
	ViewerID string `json:"viewer_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// RoomHistoryResponse is the response for a room's recent messages.
type RoomHistoryResponse struct {
	Status
	RoomKey  string          `json:"room_key"`
	Messages []*chat.Message `json:"messages"`
}

// TipTotalRequest is the request for a recipient's tip total.
type TipTotalRequest struct {
	UserID string `json:"user_id"`
}

// TipTotalResponse is the response for a recipient's tip total.
type TipTotalResponse struct {
	Status
	UserID string  `json:"user_id"`
	Total  float64 `json:"total"`
}

// SubscribePushRequest is the request for registering a push subscription.
type SubscribePushRequest struct {
	Subscription chat.PushSubscription `json:"subscription"`
}

// SubscribePushResponse is the response for registering a push subscription.
type SubscribePushResponse struct {
	Status
	Saved bool `json:"saved"`
}
