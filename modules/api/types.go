package api

import (
	domain "github.com/example/roomswap/domain/negotiation"
	"github.com/example/roomswap/modules/ledger"
)

// JoinRequest is the API request to claim a participant name.
type JoinRequest struct {
	Name         string `json:"name"`
	AccessSecret string `json:"access_secret,omitempty"`
}

// JoinResponse returns the token to present on the WebSocket, plus the
// state the client should render immediately.
type JoinResponse struct {
	Token         string          `json:"token"`
	ParticipantID string          `json:"participant_id"`
	Name          string          `json:"name"`
	Rejoined      bool            `json:"rejoined"`
	Snapshot      domain.Snapshot `json:"snapshot"`
}

// HistoryResponse is the API response for the resolved-proposal ledger.
type HistoryResponse struct {
	Records []*ledger.ProposalRecord `json:"records"`
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

// WebSocket command types accepted from clients.
const (
	WSCmdOffer     = "offer"
	WSCmdAccept    = "accept"
	WSCmdDecline   = "decline"
	WSCmdSatisfied = "satisfied"
	WSCmdSnapshot  = "snapshot"
)

// WSCommand is a client-to-server WebSocket message.
type WSCommand struct {
	Type       string `json:"type"`
	TargetID   string `json:"target_id,omitempty"`
	ProposalID string `json:"proposal_id,omitempty"`
	// Price is a decimal string such as "970" or "901.50". Empty means
	// offer the target room's current price unchanged.
	Price     string `json:"price,omitempty"`
	Satisfied bool   `json:"satisfied,omitempty"`
}

// WSReply is a direct server-to-client WebSocket message. Broadcasts
// fan out separately through the hub.
type WSReply struct {
	Type          string              `json:"type"`
	Command       string              `json:"command,omitempty"`
	Error         string              `json:"error,omitempty"`
	Message       string              `json:"message,omitempty"`
	ParticipantID string              `json:"participant_id,omitempty"`
	Proposal      *domain.Proposal    `json:"proposal,omitempty"`
	Participant   *domain.Participant `json:"participant,omitempty"`
	Snapshot      *domain.Snapshot    `json:"snapshot,omitempty"`
}
