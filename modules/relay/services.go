package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRegisterUser, json.Unmarshal, json.Marshal, m.registerUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRegisterUser, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListOnline, json.Unmarshal, json.Marshal, m.listOnline,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListOnline, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomHistory, json.Unmarshal, json.Marshal, m.roomHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomHistory, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceTipTotal, json.Unmarshal, json.Marshal, m.tipTotal,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceTipTotal, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSubscribePush, json.Unmarshal, json.Marshal, m.subscribePush,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSubscribePush, err)
	}

	m.logger.Info("Registered services",
		"services", []string{ServiceRegisterUser, ServiceListOnline, ServiceRoomHistory, ServiceTipTotal, ServiceSubscribePush})
	return nil
}

// The handlers below report engine errors in the response Status so that the
// error kind survives the trip through the service container.

func (m *Module) registerUser(ctx context.Context, req RegisterUserRequest, _ *mono.Msg) (RegisterUserResponse, error) {
	user, err := m.engine.RegisterUser(ctx, req.UserID, chat.Profile{
		DisplayName: req.DisplayName,
		ProfileRef:  req.ProfileRef,
	})
	if err != nil && !errors.Is(err, ErrPersistenceUnavailable) {
		return RegisterUserResponse{Status: statusOf(err)}, nil
	}
	if user != nil {
		user = user.Clone()
	}
	return RegisterUserResponse{Status: statusOf(err), User: user}, nil
}

func (m *Module) listOnline(_ context.Context, _ ListOnlineRequest, _ *mono.Msg) (ListOnlineResponse, error) {
	users := m.engine.ListOnline()
	for _, u := range users {
		u.ConnectionID = ""
	}
	return ListOnlineResponse{Users: users, Count: len(users)}, nil
}

func (m *Module) roomHistory(ctx context.Context, req RoomHistoryRequest, _ *mono.Msg) (RoomHistoryResponse, error) {
	room := chat.ParseRoomKey(req.RoomKey)
	msgs, err := m.engine.History(ctx, room, req.ViewerID, req.Limit)
	if err != nil {
		return RoomHistoryResponse{Status: statusOf(err), RoomKey: room.String()}, nil
	}
	return RoomHistoryResponse{RoomKey: room.String(), Messages: msgs}, nil
}

func (m *Module) tipTotal(ctx context.Context, req TipTotalRequest, _ *mono.Msg) (TipTotalResponse, error) {
	if req.UserID == "" {
		return TipTotalResponse{Status: statusOf(ErrInvalidIdentity)}, nil
	}
	total, err := m.engine.TipTotal(ctx, req.UserID)
	return TipTotalResponse{Status: statusOf(err), UserID: req.UserID, Total: total}, nil
}

func (m *Module) subscribePush(ctx context.Context, req SubscribePushRequest, _ *mono.Msg) (SubscribePushResponse, error) {
	if err := m.engine.SubscribePush(ctx, req.Subscription); err != nil {
		return SubscribePushResponse{Status: statusOf(err)}, nil
	}
	return SubscribePushResponse{Saved: true}, nil
}
