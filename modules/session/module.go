package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Service names registered by the session module.
const (
	ServiceAuthorize     = "authorize-join"
	ServiceValidateToken = "validate-token"
)

// AuthorizeRequest presents the shared access secret for a participant
// who just claimed a name.
type AuthorizeRequest struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	AccessSecret  string `json:"access_secret"`
}

// AuthorizeResponse carries the signed participant token.
type AuthorizeResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
}

// ValidateTokenRequest asks for token validation.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse returns the bound identity when valid.
type ValidateTokenResponse struct {
	OK            bool   `json:"ok"`
	Message       string `json:"message,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
	Name          string `json:"name,omitempty"`
}

// Module gates joins behind the shared access secret and issues the
// JWT tokens the API layer checks on every connection.
type Module struct {
	gate   *SecretGate
	jwt    *JWTManager
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule creates a new session module, reading ACCESS_SECRET and
// JWT_SECRET from the environment.
func NewModule(logger types.Logger) (*Module, error) {
	gate, err := NewSecretGate(os.Getenv("ACCESS_SECRET"))
	if err != nil {
		return nil, fmt.Errorf("failed to hash access secret: %w", err)
	}

	jwtConfig := DefaultJWTConfig()
	if key := os.Getenv("JWT_SECRET"); key != "" {
		jwtConfig.SecretKey = key
	}

	return &Module{
		gate:   gate,
		jwt:    NewJWTManager(jwtConfig),
		logger: logger,
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "session"
}

// RegisterServices registers the identity services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceAuthorize, json.Unmarshal, json.Marshal, m.authorize,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceAuthorize, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceValidateToken, json.Unmarshal, json.Marshal, m.validateToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceValidateToken, err)
	}

	m.logger.Info("Registered session services",
		"services", []string{ServiceAuthorize, ServiceValidateToken},
		"secretGate", m.gate.Enabled())
	return nil
}

// Start initializes the session module.
func (m *Module) Start(_ context.Context) error {
	if !m.gate.Enabled() {
		m.logger.Warn("ACCESS_SECRET not set, session is open to anyone who can reach it")
	}
	m.logger.Info("Session module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Session module stopped")
	return nil
}

func (m *Module) authorize(_ context.Context, req AuthorizeRequest, _ *mono.Msg) (AuthorizeResponse, error) {
	if err := m.gate.Verify(req.AccessSecret); err != nil {
		m.logger.Warn("Join rejected, wrong access secret", "name", req.Name)
		return AuthorizeResponse{OK: false, Message: "wrong access secret"}, nil
	}

	token, err := m.jwt.Generate(req.ParticipantID, req.Name)
	if err != nil {
		return AuthorizeResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return AuthorizeResponse{OK: true, Token: token}, nil
}

func (m *Module) validateToken(_ context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.jwt.Validate(req.Token)
	if err != nil {
		return ValidateTokenResponse{OK: false, Message: err.Error()}, nil
	}
	return ValidateTokenResponse{
		OK:            true,
		ParticipantID: claims.ParticipantID,
		Name:          claims.Name,
	}, nil
}
