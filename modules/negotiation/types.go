package negotiation

import (
	"errors"
	"unicode/utf8"

	domain "github.com/example/roomswap/domain/negotiation"
)

// Validation constants
const (
	MaxNameLength = 50
)

// Engine error kinds. Every command failure maps onto exactly one of
// these; all are recoverable and reported back to the caller without
// touching session state (a stale proposal is the one exception: it is
// closed as part of reporting the failure).
var (
	ErrConfiguration      = errors.New("invalid session configuration")
	ErrInvalidOffer       = errors.New("invalid offer")
	ErrDuplicateProposal  = errors.New("a pending proposal between these participants already exists")
	ErrNotAuthorized      = errors.New("not authorized for this proposal")
	ErrInvalidState       = errors.New("proposal is not pending")
	ErrStaleProposal      = errors.New("proposal is stale, resubmit against current prices")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrNameTaken          = errors.New("name is already claimed")
)

// Wire error codes carried in service responses. Errors do not survive
// the request/reply bus typed, so handlers translate them to codes and
// adapters translate them back.
const (
	CodeConfiguration      = "configuration_error"
	CodeInvalidOffer       = "invalid_offer"
	CodeDuplicateProposal  = "duplicate_proposal"
	CodeNotAuthorized      = "not_authorized"
	CodeInvalidState       = "invalid_state"
	CodeStaleProposal      = "stale_proposal"
	CodeUnknownParticipant = "unknown_participant"
	CodeNameTaken          = "name_taken"
)

var errorCodes = map[string]error{
	CodeConfiguration:      ErrConfiguration,
	CodeInvalidOffer:       ErrInvalidOffer,
	CodeDuplicateProposal:  ErrDuplicateProposal,
	CodeNotAuthorized:      ErrNotAuthorized,
	CodeInvalidState:       ErrInvalidState,
	CodeStaleProposal:      ErrStaleProposal,
	CodeUnknownParticipant: ErrUnknownParticipant,
	CodeNameTaken:          ErrNameTaken,
}

// ErrorCode maps an engine error to its wire code. Unknown errors map to
// an empty code and are treated as transport failures by callers.
func ErrorCode(err error) string {
	for code, sentinel := range errorCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// ErrorFromCode is the inverse of ErrorCode.
func ErrorFromCode(code string) error {
	if err, ok := errorCodes[code]; ok {
		return err
	}
	return nil
}

// ValidateName validates a participant name.
func ValidateName(name string) error {
	if name == "" {
		return ErrConfiguration
	}
	if len(name) > MaxNameLength {
		return ErrConfiguration
	}
	if !utf8.ValidString(name) {
		return ErrConfiguration
	}
	return nil
}

// Service names registered by the negotiation module.
const (
	ServiceJoinSession     = "join-session"
	ServiceLeaveSession    = "leave-session"
	ServiceSubmitOffer     = "submit-offer"
	ServiceAcceptProposal  = "accept-proposal"
	ServiceDeclineProposal = "decline-proposal"
	ServiceSetSatisfied    = "set-satisfied"
	ServiceGetSnapshot     = "get-snapshot"
)

// Result is embedded in every service response: OK with empty code on
// success, or an error code plus human-readable message.
type Result struct {
	OK        bool   `json:"ok"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Err converts the wire result back into an engine error.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	if err := ErrorFromCode(r.ErrorCode); err != nil {
		return err
	}
	return errors.New(r.Message)
}

// JoinSessionRequest claims a participant name.
type JoinSessionRequest struct {
	Name string `json:"name"`
}

// JoinSessionResponse returns the claimed (or reclaimed) identity.
type JoinSessionResponse struct {
	Result
	Participant domain.Participant `json:"participant"`
	Rejoined    bool               `json:"rejoined"`
}

// LeaveSessionRequest freezes a participant's occupancy.
type LeaveSessionRequest struct {
	ParticipantID string `json:"participant_id"`
}

// LeaveSessionResponse reports how many pending proposals were closed.
type LeaveSessionResponse struct {
	Result
	ClosedProposals int `json:"closed_proposals"`
}

// SubmitOfferRequest proposes a room swap. ProposedPrice is in cents;
// zero means "offer the target room's current price".
type SubmitOfferRequest struct {
	ProposerID    string        `json:"proposer_id"`
	TargetID      string        `json:"target_id"`
	ProposedPrice domain.Amount `json:"proposed_price"`
}

// SubmitOfferResponse returns the created proposal.
type SubmitOfferResponse struct {
	Result
	Proposal domain.Proposal `json:"proposal"`
}

// ResolveProposalRequest accepts or declines a pending proposal; the
// caller must be the proposal's target.
type ResolveProposalRequest struct {
	ParticipantID string `json:"participant_id"`
	ProposalID    string `json:"proposal_id"`
}

// ResolveProposalResponse returns the proposal in its terminal state.
type ResolveProposalResponse struct {
	Result
	Proposal domain.Proposal `json:"proposal"`
}

// SetSatisfiedRequest toggles the informational satisfied flag.
type SetSatisfiedRequest struct {
	ParticipantID string `json:"participant_id"`
	Satisfied     bool   `json:"satisfied"`
}

// SetSatisfiedResponse returns the updated participant.
type SetSatisfiedResponse struct {
	Result
	Participant domain.Participant `json:"participant"`
}

// GetSnapshotRequest asks for the current state; read-only.
type GetSnapshotRequest struct{}

// GetSnapshotResponse carries the full session snapshot.
type GetSnapshotResponse struct {
	Result
	Snapshot domain.Snapshot `json:"snapshot"`
}
