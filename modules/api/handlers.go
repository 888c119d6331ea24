package api

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/Nsabwe/Cchat/domain/chat"
	"github.com/Nsabwe/Cchat/modules/relay"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const maxHistoryLimit = 1000

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	// Health check
	app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}))

	// REST API v1
	api := app.Group("/api/v1")

	api.Post("/users", m.registerUser)
	api.Get("/users/online", m.listOnline)
	api.Get("/rooms/:roomKey/messages", m.getHistory)
	api.Post("/push/subscribe", m.subscribePush)
	api.Get("/tips/:userId", m.getTipTotal)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{"module": "api"}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	if m.engine != nil {
		details["relay"] = m.engine.Stats()
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

// registerUser handles POST /api/v1/users.
func (m *APIModule) registerUser(c *fiber.Ctx) error {
	var req RegisterUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	user, err := m.relay.RegisterUser(c.UserContext(), req.UserID, chat.Profile{
		DisplayName: req.DisplayName,
		ProfileRef:  req.ProfileRef,
	})
	if err != nil {
		return serviceError(c, err, "register_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
}

// listOnline handles GET /api/v1/users/online.
func (m *APIModule) listOnline(c *fiber.Ctx) error {
	users, err := m.relay.ListOnline(c.UserContext())
	if err != nil {
		return serviceError(c, err, "list_failed")
	}

	response := OnlineUsersResponse{
		Users: make([]UserResponse, 0, len(users)),
		Count: len(users),
	}
	for _, u := range users {
		response.Users = append(response.Users, toUserResponse(u))
	}
	return c.JSON(response)
}

// getHistory handles GET /api/v1/rooms/:roomKey/messages. The room key
// "dm" with ?viewer=&peer= addresses the private room of the two users.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	raw, err := url.PathUnescape(c.Params("roomKey"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid room key",
		})
	}

	viewer := c.Query("viewer")
	room := chat.ParseRoomKey(raw)
	if raw == "dm" {
		peer := c.Query("peer")
		if viewer == "" || peer == "" {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "validation_error",
				Message: "viewer and peer are required for private history",
			})
		}
		room = chat.PairwiseKey(viewer, peer)
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxHistoryLimit {
			limit = parsed
		}
	}

	messages, err := m.relay.History(c.UserContext(), room, viewer, limit)
	if err != nil {
		return serviceError(c, err, "history_failed")
	}
	if messages == nil {
		messages = []*chat.Message{}
	}

	return c.JSON(HistoryResponse{
		RoomKey:  room.String(),
		Messages: messages,
	})
}

// subscribePush handles POST /api/v1/push/subscribe.
func (m *APIModule) subscribePush(c *fiber.Ctx) error {
	var req PushSubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	err := m.relay.SubscribePush(c.UserContext(), chat.PushSubscription{
		UserID:   req.UserID,
		Endpoint: req.Subscription.Endpoint,
		P256dh:   req.Subscription.Keys.P256dh,
		Auth:     req.Subscription.Keys.Auth,
	})
	if err != nil {
		return serviceError(c, err, "subscribe_failed")
	}
	return c.SendStatus(fiber.StatusCreated)
}

// getTipTotal handles GET /api/v1/tips/:userId.
func (m *APIModule) getTipTotal(c *fiber.Ctx) error {
	userID := c.Params("userId")
	total, err := m.relay.TipTotal(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, err, "tip_total_failed")
	}
	return c.JSON(TipTotalResponse{UserID: userID, Total: total})
}

// serviceError maps a relay service error to an HTTP error response.
// Transport failures use fallback as their error code.
func serviceError(c *fiber.Ctx, err error, fallback string) error {
	var se *relay.ServiceError
	if !errors.As(err, &se) {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   fallback,
			Message: err.Error(),
		})
	}

	status := fiber.StatusInternalServerError
	switch se.Code {
	case "invalid_identity", "invalid_payload":
		status = fiber.StatusBadRequest
	case "user_exists":
		status = fiber.StatusConflict
	case "message_not_found":
		status = fiber.StatusNotFound
	case "persistence_unavailable", "tip_failed", "shutting_down":
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:   se.Code,
		Message: se.Message,
	})
}
