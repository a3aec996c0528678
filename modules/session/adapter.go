package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ErrUnauthorized is returned by the adapter when the secret or token
// is rejected.
var ErrUnauthorized = errors.New("unauthorized")

// SessionPort defines the interface for identity operations.
type SessionPort interface {
	Authorize(ctx context.Context, participantID, name, accessSecret string) (string, error)
	ValidateToken(ctx context.Context, token string) (participantID, name string, err error)
}

// Adapter implements SessionPort using the service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new session adapter.
func NewAdapter(container mono.ServiceContainer) SessionPort {
	if container == nil {
		panic("session: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// Authorize verifies the shared secret and returns a signed token.
func (a *Adapter) Authorize(ctx context.Context, participantID, name, accessSecret string) (string, error) {
	req := AuthorizeRequest{ParticipantID: participantID, Name: name, AccessSecret: accessSecret}
	var resp AuthorizeResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceAuthorize, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return "", fmt.Errorf("failed to authorize: %w", err)
	}
	if !resp.OK {
		return "", fmt.Errorf("%w: %s", ErrUnauthorized, resp.Message)
	}
	return resp.Token, nil
}

// ValidateToken checks a token and returns the identity bound to it.
func (a *Adapter) ValidateToken(ctx context.Context, token string) (string, string, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceValidateToken, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return "", "", fmt.Errorf("failed to validate token: %w", err)
	}
	if !resp.OK {
		return "", "", fmt.Errorf("%w: %s", ErrUnauthorized, resp.Message)
	}
	return resp.ParticipantID, resp.Name, nil
}
