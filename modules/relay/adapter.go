package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RelayPort defines the relay operations available to other modules.
type RelayPort interface {
	RegisterUser(ctx context.Context, userID string, profile chat.Profile) (*chat.UserSession, error)
	ListOnline(ctx context.Context) ([]*chat.UserSession, error)
	History(ctx context.Context, room chat.RoomKey, viewerID string, limit int) ([]*chat.Message, error)
	TipTotal(ctx context.Context, userID string) (float64, error)
	SubscribePush(ctx context.Context, sub chat.PushSubscription) error
}

// ServiceError is an engine error reported by a relay service.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (s Status) err() error {
	if s.Code == "" {
		return nil
	}
	return &ServiceError{Code: s.Code, Message: s.Message}
}

// RelayAdapter implements RelayPort using the service container.
type RelayAdapter struct {
	container mono.ServiceContainer
}

// NewRelayAdapter creates a new RelayAdapter.
func NewRelayAdapter(container mono.ServiceContainer) RelayPort {
	if container == nil {
		panic("relay: ServiceContainer is nil")
	}
	return &RelayAdapter{container: container}
}

// RegisterUser creates an offline user.
func (a *RelayAdapter) RegisterUser(ctx context.Context, userID string, profile chat.Profile) (*chat.UserSession, error) {
	req := RegisterUserRequest{UserID: userID, DisplayName: profile.DisplayName, ProfileRef: profile.ProfileRef}
	var resp RegisterUserResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRegisterUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("register-user service call failed: %w", err)
	}
	return resp.User, resp.err()
}

// ListOnline returns the online users.
func (a *RelayAdapter) ListOnline(ctx context.Context) ([]*chat.UserSession, error) {
	req := ListOnlineRequest{}
	var resp ListOnlineResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListOnline,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("list-online service call failed: %w", err)
	}
	return resp.Users, resp.err()
}

// History returns recent messages of a room.
func (a *RelayAdapter) History(ctx context.Context, room chat.RoomKey, viewerID string, limit int) ([]*chat.Message, error) {
	req := RoomHistoryRequest{RoomKey: room.String(), ViewerID: viewerID, Limit: limit}
	var resp RoomHistoryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRoomHistory,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("room-history service call failed: %w", err)
	}
	return resp.Messages, resp.err()
}

// TipTotal returns a recipient's tip total.
func (a *RelayAdapter) TipTotal(ctx context.Context, userID string) (float64, error) {
	req := TipTotalRequest{UserID: userID}
	var resp TipTotalResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceTipTotal,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return 0, fmt.Errorf("tip-total service call failed: %w", err)
	}
	return resp.Total, resp.err()
}

// SubscribePush stores a push subscription.
func (a *RelayAdapter) SubscribePush(ctx context.Context, sub chat.PushSubscription) error {
	req := SubscribePushRequest{Subscription: sub}
	var resp SubscribePushResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSubscribePush,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("subscribe-push service call failed: %w", err)
	}
	return resp.err()
}
