package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"

	domain "github.com/example/roomswap/domain/negotiation"
	"github.com/example/roomswap/modules/broadcast"
	"github.com/example/roomswap/modules/negotiation"
	"github.com/example/roomswap/modules/session"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultHistoryLimit = 50

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	// Health check
	m.app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))

	// REST API v1
	api := m.app.Group("/api/v1")

	api.Post("/session/join", m.joinSession)

	// Reads require the token issued on join
	api.Get("/snapshot", AuthMiddleware(m.sessions), m.getSnapshot)
	api.Get("/history", AuthMiddleware(m.sessions), m.getHistory)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
		},
	})
}

// joinSession handles POST /api/v1/session/join. It claims the name in
// the engine, then exchanges the access secret for a signed token.
func (m *APIModule) joinSession(c *fiber.Ctx) error {
	var req JoinRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := negotiation.ValidateName(req.Name); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "A participant name is required (max 50 characters)",
		})
	}

	participant, rejoined, err := m.engine.Join(c.UserContext(), req.Name)
	if err != nil {
		return m.engineError(c, err)
	}

	token, err := m.sessions.Authorize(c.UserContext(), participant.ID, participant.Name, req.AccessSecret)
	if err != nil {
		// Release the claimed name again: without a token the caller
		// can never open a connection for it.
		if _, leaveErr := m.engine.Leave(context.Background(), participant.ID); leaveErr != nil {
			log.Printf("[api] Failed to release name after auth failure: %v", leaveErr)
		}
		if errors.Is(err, session.ErrUnauthorized) {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Wrong access secret",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "auth_failed",
			Message: "Failed to issue token",
		})
	}

	snapshot, err := m.engine.Snapshot(c.UserContext())
	if err != nil {
		return m.engineError(c, err)
	}

	return c.JSON(JoinResponse{
		Token:         token,
		ParticipantID: participant.ID,
		Name:          participant.Name,
		Rejoined:      rejoined,
		Snapshot:      snapshot,
	})
}

// getSnapshot handles GET /api/v1/snapshot.
func (m *APIModule) getSnapshot(c *fiber.Ctx) error {
	snapshot, err := m.engine.Snapshot(c.UserContext())
	if err != nil {
		return m.engineError(c, err)
	}
	return c.JSON(snapshot)
}

// getHistory handles GET /api/v1/history. The optional participant query
// narrows the trail to proposals involving that participant.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	records, err := m.history.History(c.UserContext(), c.Query("participant"), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to read proposal history",
		})
	}

	return c.JSON(HistoryResponse{Records: records})
}

// engineError translates an engine error into an HTTP response.
func (m *APIModule) engineError(c *fiber.Ctx, err error) error {
	code := negotiation.ErrorCode(err)
	return c.Status(httpStatusFor(code)).JSON(ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

// httpStatusFor maps engine wire codes onto HTTP status codes.
func httpStatusFor(code string) int {
	switch code {
	case negotiation.CodeInvalidOffer:
		return fiber.StatusBadRequest
	case negotiation.CodeNotAuthorized:
		return fiber.StatusForbidden
	case negotiation.CodeUnknownParticipant:
		return fiber.StatusNotFound
	case negotiation.CodeDuplicateProposal,
		negotiation.CodeInvalidState,
		negotiation.CodeStaleProposal,
		negotiation.CodeNameTaken:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// handleWebSocket handles WebSocket connections at /ws. The token issued
// by the join endpoint must be presented as a query parameter.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	token := c.Query("token")
	participantID, name, err := m.sessions.ValidateToken(context.Background(), token)
	if err != nil {
		_ = c.WriteJSON(WSReply{Type: "error", Error: "unauthorized", Message: "Invalid or expired token"})
		_ = c.Close()
		return
	}

	client := &broadcast.Client{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		Name:          name,
		Conn:          c,
	}

	m.hub.Register(client)
	defer func() {
		m.hub.Unregister(client)
		// A participant leaves only when their last connection drops.
		if m.hub.ConnectionsFor(participantID) == 0 {
			if _, err := m.engine.Leave(context.Background(), participantID); err != nil {
				log.Printf("[api] Failed to mark %s as left: %v", name, err)
			}
		}
		log.Printf("[api] WebSocket client disconnected: %s (%s)", client.ID, name)
	}()

	log.Printf("[api] WebSocket client connected: %s (%s)", client.ID, name)

	welcome := WSReply{Type: "connected", ParticipantID: participantID}
	if err := c.WriteJSON(welcome); err != nil {
		log.Printf("[api] Failed to send welcome: %v", err)
		return
	}

	// Command loop
	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Client %s closed connection", client.ID)
			} else {
				log.Printf("[api] Read error from %s: %v", client.ID, err)
			}
			break
		}

		var cmd WSCommand
		if err := json.Unmarshal(msgBytes, &cmd); err != nil {
			m.sendError(c, cmd.Type, "invalid_request", "Invalid message format")
			continue
		}

		switch cmd.Type {
		case WSCmdOffer:
			m.handleOffer(c, participantID, cmd)
		case WSCmdAccept:
			m.handleResolve(c, participantID, cmd, m.engine.AcceptProposal)
		case WSCmdDecline:
			m.handleResolve(c, participantID, cmd, m.engine.DeclineProposal)
		case WSCmdSatisfied:
			m.handleSatisfied(c, participantID, cmd)
		case WSCmdSnapshot:
			m.handleSnapshotRequest(c)
		default:
			m.sendError(c, cmd.Type, "invalid_request", "Unknown command type: "+cmd.Type)
		}
	}
}

func (m *APIModule) handleOffer(c *websocket.Conn, participantID string, cmd WSCommand) {
	if cmd.TargetID == "" {
		m.sendError(c, cmd.Type, "invalid_request", "Target participant is required")
		return
	}

	var price domain.Amount
	if cmd.Price != "" {
		parsed, err := domain.ParseAmount(cmd.Price)
		if err != nil {
			m.sendError(c, cmd.Type, "invalid_request", "Invalid price: "+cmd.Price)
			return
		}
		price = parsed
	}

	proposal, err := m.engine.SubmitOffer(context.Background(), participantID, cmd.TargetID, price)
	if err != nil {
		m.sendEngineError(c, cmd.Type, err)
		return
	}

	_ = c.WriteJSON(WSReply{Type: "ack", Command: cmd.Type, Proposal: &proposal})
}

func (m *APIModule) handleResolve(
	c *websocket.Conn,
	participantID string,
	cmd WSCommand,
	resolve func(ctx context.Context, participantID, proposalID string) (domain.Proposal, error),
) {
	if cmd.ProposalID == "" {
		m.sendError(c, cmd.Type, "invalid_request", "Proposal ID is required")
		return
	}

	proposal, err := resolve(context.Background(), participantID, cmd.ProposalID)
	if err != nil {
		m.sendEngineError(c, cmd.Type, err)
		return
	}

	_ = c.WriteJSON(WSReply{Type: "ack", Command: cmd.Type, Proposal: &proposal})
}

func (m *APIModule) handleSatisfied(c *websocket.Conn, participantID string, cmd WSCommand) {
	participant, err := m.engine.SetSatisfied(context.Background(), participantID, cmd.Satisfied)
	if err != nil {
		m.sendEngineError(c, cmd.Type, err)
		return
	}

	_ = c.WriteJSON(WSReply{Type: "ack", Command: cmd.Type, Participant: &participant})
}

func (m *APIModule) handleSnapshotRequest(c *websocket.Conn) {
	snapshot, err := m.engine.Snapshot(context.Background())
	if err != nil {
		m.sendEngineError(c, WSCmdSnapshot, err)
		return
	}

	_ = c.WriteJSON(WSReply{Type: "snapshot", Snapshot: &snapshot})
}

func (m *APIModule) sendEngineError(c *websocket.Conn, command string, err error) {
	m.sendError(c, command, negotiation.ErrorCode(err), err.Error())
}

func (m *APIModule) sendError(c *websocket.Conn, command, code, message string) {
	response := WSReply{
		Type:    "error",
		Command: command,
		Error:   code,
		Message: message,
	}
	_ = c.WriteJSON(response)
}
