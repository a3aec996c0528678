package negotiation

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/roomswap/domain/negotiation"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// NegotiationPort defines the interface for negotiation operations.
type NegotiationPort interface {
	Join(ctx context.Context, name string) (domain.Participant, bool, error)
	Leave(ctx context.Context, participantID string) (int, error)
	SubmitOffer(ctx context.Context, proposerID, targetID string, proposedPrice domain.Amount) (domain.Proposal, error)
	AcceptProposal(ctx context.Context, participantID, proposalID string) (domain.Proposal, error)
	DeclineProposal(ctx context.Context, participantID, proposalID string) (domain.Proposal, error)
	SetSatisfied(ctx context.Context, participantID string, satisfied bool) (domain.Participant, error)
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

// Adapter implements NegotiationPort against the module's request/reply
// services via the service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new negotiation adapter.
func NewAdapter(container mono.ServiceContainer) NegotiationPort {
	if container == nil {
		panic("negotiation: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// Join claims a participant name in the session.
func (a *Adapter) Join(ctx context.Context, name string) (domain.Participant, bool, error) {
	req := JoinSessionRequest{Name: name}
	var resp JoinSessionResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceJoinSession, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return domain.Participant{}, false, fmt.Errorf("failed to join session: %w", err)
	}
	if err := resp.Err(); err != nil {
		return domain.Participant{}, false, err
	}
	return resp.Participant, resp.Rejoined, nil
}

// Leave freezes a participant's occupancy and reports how many pending
// proposals were closed.
func (a *Adapter) Leave(ctx context.Context, participantID string) (int, error) {
	req := LeaveSessionRequest{ParticipantID: participantID}
	var resp LeaveSessionResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceLeaveSession, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return 0, fmt.Errorf("failed to leave session: %w", err)
	}
	if err := resp.Err(); err != nil {
		return 0, err
	}
	return resp.ClosedProposals, nil
}

// SubmitOffer proposes a room swap.
func (a *Adapter) SubmitOffer(ctx context.Context, proposerID, targetID string, proposedPrice domain.Amount) (domain.Proposal, error) {
	req := SubmitOfferRequest{ProposerID: proposerID, TargetID: targetID, ProposedPrice: proposedPrice}
	var resp SubmitOfferResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceSubmitOffer, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return domain.Proposal{}, fmt.Errorf("failed to submit offer: %w", err)
	}
	if err := resp.Err(); err != nil {
		return resp.Proposal, err
	}
	return resp.Proposal, nil
}

// AcceptProposal accepts a pending proposal as its target.
func (a *Adapter) AcceptProposal(ctx context.Context, participantID, proposalID string) (domain.Proposal, error) {
	return a.resolve(ctx, ServiceAcceptProposal, participantID, proposalID)
}

// DeclineProposal declines a pending proposal as its target.
func (a *Adapter) DeclineProposal(ctx context.Context, participantID, proposalID string) (domain.Proposal, error) {
	return a.resolve(ctx, ServiceDeclineProposal, participantID, proposalID)
}

func (a *Adapter) resolve(ctx context.Context, service, participantID, proposalID string) (domain.Proposal, error) {
	req := ResolveProposalRequest{ParticipantID: participantID, ProposalID: proposalID}
	var resp ResolveProposalResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, service, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return domain.Proposal{}, fmt.Errorf("failed to call %s: %w", service, err)
	}
	if err := resp.Err(); err != nil {
		return resp.Proposal, err
	}
	return resp.Proposal, nil
}

// SetSatisfied toggles the informational satisfied flag.
func (a *Adapter) SetSatisfied(ctx context.Context, participantID string, satisfied bool) (domain.Participant, error) {
	req := SetSatisfiedRequest{ParticipantID: participantID, Satisfied: satisfied}
	var resp SetSatisfiedResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceSetSatisfied, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return domain.Participant{}, fmt.Errorf("failed to set satisfied: %w", err)
	}
	if err := resp.Err(); err != nil {
		return domain.Participant{}, err
	}
	return resp.Participant, nil
}

// Snapshot returns the current session state.
func (a *Adapter) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	req := GetSnapshotRequest{}
	var resp GetSnapshotResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceGetSnapshot, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if err := resp.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	return resp.Snapshot, nil
}
