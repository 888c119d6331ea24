package relay

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/Nsabwe/Cchat/events"
)

// SetTyping marks the connection as typing in room and re-emits the room's snapshot.
func (e *Engine) SetTyping(connectionID string, room chat.RoomKey, displayName string) (TypingSnapshot, error) {
	return e.updateTyping(connectionID, room, func() {
		e.typing.SetTyping(room, connectionID, displayName)
	})
}

// StopTyping clears the connection's typing entry in room and re-emits the room's snapshot.
func (e *Engine) StopTyping(connectionID string, room chat.RoomKey) (TypingSnapshot, error) {
	return e.updateTyping(connectionID, room, func() {
		e.typing.ClearTyping(room, connectionID)
	})
}

func (e *Engine) updateTyping(connectionID string, room chat.RoomKey, mutate func()) (TypingSnapshot, error) {
	e.mu.Lock()
	if _, ok := e.conns[connectionID]; !ok {
		e.mu.Unlock()
		return TypingSnapshot{}, ErrUnknownConnection
	}
	mutate()
	snapshot := e.typing.Snapshot(room)
	targets := e.rooms.MembersOf(room)
	e.mu.Unlock()

	e.fanout(targets, Frame{Type: TypeTypingSnapshot, Payload: snapshot})
	return snapshot, nil
}

// SendTip credits amount to the recipient and broadcasts the new total to the
// global room. The amount is not range checked; only values that cannot be
// encoded are rejected.
func (e *Engine) SendTip(ctx context.Context, senderID, recipientUserID string, amount float64) (float64, error) {
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return 0, fmt.Errorf("%w: recipientUserId is required", ErrInvalidIdentity)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: amount must be a finite number", ErrInvalidPayload)
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return 0, ErrEngineClosed
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	total, err := e.ledger.Credit(callCtx, recipientUserID, amount)
	cancel()
	if err != nil {
		e.logger.Error("Tip credit failed", "recipientUserID", recipientUserID, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}

	e.mu.Lock()
	targets := e.rooms.MembersOf(chat.Global)
	online := e.directory.IsOnline(recipientUserID)
	e.mu.Unlock()

	e.fanout(targets, Frame{Type: TypeTipUpdate, Payload: TipUpdatePayload{
		RecipientUserID: recipientUserID,
		NewTotal:        total,
	}})
	e.events.TipCredited(events.TipCreditedEvent{
		RecipientUserID: recipientUserID,
		SenderID:        senderID,
		Amount:          amount,
		NewTotal:        total,
		RecipientOnline: online,
		Timestamp:       e.now(),
	})
	return total, nil
}

// TipTotal returns the recipient's current total.
func (e *Engine) TipTotal(ctx context.Context, recipientUserID string) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	total, err := e.ledger.Total(callCtx, recipientUserID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	return total, nil
}
