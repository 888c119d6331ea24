package api

import (
	"time"

	"github.com/Nsabwe/Cchat/domain/chat"
)

// RegisterUserRequest is the API request to register a user.
type RegisterUserRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ProfileRef  string `json:"profileRef,omitempty"`
}

// UserResponse is the API response for a user.
type UserResponse struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	ProfileRef  string    `json:"profileRef,omitempty"`
	Online      bool      `json:"online"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

func toUserResponse(u *chat.UserSession) UserResponse {
	return UserResponse{
		UserID:      u.UserID,
		DisplayName: u.DisplayName,
		ProfileRef:  u.ProfileRef,
		Online:      u.Online,
		LastSeenAt:  u.LastSeenAt,
	}
}

// OnlineUsersResponse is the API response for listing online users.
type OnlineUsersResponse struct {
	Users []UserResponse `json:"users"`
	Count int            `json:"count"`
}

// HistoryResponse is the API response for message history.
type HistoryResponse struct {
	RoomKey  string          `json:"roomKey"`
	Messages []*chat.Message `json:"messages"`
}

// PushSubscribeRequest is the API request to register a Web Push
// subscription. Subscription has the shape of the browser's PushSubscription JSON.
type PushSubscribeRequest struct {
	UserID       string `json:"userId"`
	Subscription struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	} `json:"subscription"`
}

// TipTotalResponse is the API response for a recipient's tip total.
type TipTotalResponse struct {
	UserID string  `json:"userId"`
	Total  float64 `json:"total"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
