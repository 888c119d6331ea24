package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Nsabwe/Cchat/domain/chat"
)

// HandleFrame decodes one client frame and applies it. Connection-local
// failures are answered with an error frame and returned for logging.
// Persistence failures are not reported to the client: the in-memory state
// has already advanced and the store error was logged.
func (e *Engine) HandleFrame(ctx context.Context, connectionID string, data []byte) error {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		err = fmt.Errorf("%w: malformed frame", ErrInvalidPayload)
		e.SendError(connectionID, err)
		return err
	}

	err := e.dispatch(ctx, connectionID, in)
	if err == nil || errors.Is(err, ErrPersistenceUnavailable) {
		return nil
	}
	e.SendError(connectionID, err)
	return err
}

func (e *Engine) dispatch(ctx context.Context, connectionID string, in Inbound) error {
	switch in.Type {
	case TypeJoin:
		p, err := decode[JoinPayload](in.Payload)
		if err != nil {
			return err
		}
		_, err = e.JoinGlobal(ctx, connectionID, p.UserID, chat.Profile{
			DisplayName: p.DisplayName,
			ProfileRef:  p.ProfileRef,
		})
		return err

	case TypeJoinPrivate:
		p, err := decode[JoinPrivatePayload](in.Payload)
		if err != nil {
			return err
		}
		_, err = e.JoinPrivate(ctx, connectionID, p.SelfID, p.OtherID)
		return err

	case TypeMessage:
		p, err := decode[MessagePayload](in.Payload)
		if err != nil {
			return err
		}
		msg, err := e.PostMessage(ctx, chat.ParseRoomKey(p.RoomKey), e.actorFor(connectionID, p.SenderID), p.Content, p.MediaRef)
		if msg != nil {
			e.sendTo(connectionID, Frame{Type: TypeMessageAck, Payload: AckPayload{
				MessageID: msg.ID,
				Persisted: err == nil,
			}})
		}
		return err

	case TypeTyping, TypeStopTyping:
		p, err := decode[TypingPayload](in.Payload)
		if err != nil {
			return err
		}
		room := chat.ParseRoomKey(p.RoomKey)
		if in.Type == TypeStopTyping {
			_, err = e.StopTyping(connectionID, room)
			return err
		}
		name := p.DisplayName
		if name == "" {
			name = e.displayNameOf(connectionID)
		}
		if name == "" {
			return fmt.Errorf("%w: displayName is required", ErrInvalidPayload)
		}
		_, err = e.SetTyping(connectionID, room, name)
		return err

	case TypeDeleteMessage:
		p, err := decode[DeletePayload](in.Payload)
		if err != nil {
			return err
		}
		requester := e.actorFor(connectionID, p.RequesterID)
		switch p.Scope {
		case ScopeMe:
			return e.HideMessage(ctx, p.MessageID, requester)
		case ScopeEveryone, "":
			return e.DeleteMessage(ctx, p.MessageID, requester)
		default:
			return fmt.Errorf("%w: unknown delete scope %q", ErrInvalidPayload, p.Scope)
		}

	case TypeEditMessage:
		p, err := decode[EditPayload](in.Payload)
		if err != nil {
			return err
		}
		_, err = e.EditMessage(ctx, p.MessageID, e.actorFor(connectionID, p.EditorID), p.Content)
		return err

	case TypeSendTip:
		p, err := decode[SendTipPayload](in.Payload)
		if err != nil {
			return err
		}
		_, err = e.SendTip(ctx, e.actorFor(connectionID, ""), p.RecipientUserID, p.Amount)
		return err

	case TypeMessageRead:
		p, err := decode[ReadPayload](in.Payload)
		if err != nil {
			return err
		}
		_, err = e.MarkRead(ctx, p.MessageID, e.actorFor(connectionID, p.ReaderID))
		return err

	default:
		return fmt.Errorf("%w: unknown frame type %q", ErrInvalidPayload, in.Type)
	}
}

// actorFor resolves who is acting on a connection: the bound user, else the
// id the client supplied, else the self id of its private join.
func (e *Engine) actorFor(connectionID, claimed string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.directory.SessionOf(connectionID); ok {
		return s.UserID
	}
	if claimed != "" {
		return claimed
	}
	if c, ok := e.conns[connectionID]; ok {
		return c.selfID
	}
	return ""
}

func (e *Engine) displayNameOf(connectionID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.directory.SessionOf(connectionID); ok {
		return s.DisplayName
	}
	return ""
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("%w: missing payload", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v, nil
}
