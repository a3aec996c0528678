package api

import (
	"strings"

	"github.com/example/roomswap/modules/session"
	"github.com/gofiber/fiber/v2"
)

const (
	// ParticipantIDKey is the key storing the authenticated participant
	// ID in the Fiber context.
	ParticipantIDKey = "participant_id"
	// ParticipantNameKey is the key storing the authenticated
	// participant name in the Fiber context.
	ParticipantNameKey = "participant_name"
)

// AuthMiddleware creates a middleware that validates participant tokens.
func AuthMiddleware(sessions session.SessionPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Token is required",
			})
		}

		participantID, name, err := sessions.ValidateToken(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(ParticipantIDKey, participantID)
		c.Locals(ParticipantNameKey, name)

		return c.Next()
	}
}
