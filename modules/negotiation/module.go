package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	domain "github.com/example/roomswap/domain/negotiation"
	"github.com/example/roomswap/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Config holds the startup parameters of the negotiation session.
type Config struct {
	TotalRent domain.Amount
	Names     []string
}

// ConfigFromEnv reads TOTAL_RENT (decimal) and PARTICIPANTS (comma
// separated names), falling back to the defaults the app shipped with.
func ConfigFromEnv() (Config, error) {
	rent := os.Getenv("TOTAL_RENT")
	if rent == "" {
		rent = "3606"
	}
	total, err := domain.ParseAmount(rent)
	if err != nil {
		return Config{}, fmt.Errorf("%w: TOTAL_RENT: %v", ErrConfiguration, err)
	}

	raw := os.Getenv("PARTICIPANTS")
	if raw == "" {
		raw = "Karim,Hassan,Benjamin,Hassaan"
	}
	var names []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}

	return Config{TotalRent: total, Names: names}, nil
}

// Module owns the negotiation session and exposes it over request/reply
// services, publishing a domain event after every committed mutation.
type Module struct {
	config   Config
	session  *Session
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new negotiation module.
func NewModule(config Config, logger types.Logger) *Module {
	return &Module{
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "negotiation"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.SessionStartedV1.ToBase(),
		events.ParticipantJoinedV1.ToBase(),
		events.ParticipantLeftV1.ToBase(),
		events.ProposalCreatedV1.ToBase(),
		events.ProposalAcceptedV1.ToBase(),
		events.ProposalDeclinedV1.ToBase(),
		events.ProposalInvalidatedV1.ToBase(),
		events.SatisfactionChangedV1.ToBase(),
	}
}

// RegisterServices registers the engine's request/reply services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceJoinSession, json.Unmarshal, json.Marshal, m.joinSession,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceJoinSession, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLeaveSession, json.Unmarshal, json.Marshal, m.leaveSession,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLeaveSession, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSubmitOffer, json.Unmarshal, json.Marshal, m.submitOffer,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSubmitOffer, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceAcceptProposal, json.Unmarshal, json.Marshal, m.acceptProposal,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceAcceptProposal, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDeclineProposal, json.Unmarshal, json.Marshal, m.declineProposal,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDeclineProposal, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSetSatisfied, json.Unmarshal, json.Marshal, m.setSatisfied,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSetSatisfied, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetSnapshot, json.Unmarshal, json.Marshal, m.getSnapshot,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetSnapshot, err)
	}

	m.logger.Info("Registered negotiation services",
		"services", []string{
			ServiceJoinSession, ServiceLeaveSession, ServiceSubmitOffer,
			ServiceAcceptProposal, ServiceDeclineProposal, ServiceSetSatisfied,
			ServiceGetSnapshot,
		})
	return nil
}

// Start initializes the session from the configuration. A bad
// configuration is the one fatal error path: it prevents startup.
func (m *Module) Start(_ context.Context) error {
	session, err := NewSession(m.config.TotalRent, m.config.Names, nil)
	if err != nil {
		return err
	}
	m.session = session

	if err := events.SessionStartedV1.Publish(m.eventBus, events.SessionStartedEvent{
		TotalRent: session.TotalRent(),
		Snapshot:  session.Snapshot(),
		Timestamp: time.Now(),
	}, nil); err != nil {
		m.logger.Warn("Failed to publish event", "error", err)
	}

	m.logger.Info("Negotiation session initialized",
		"totalRent", session.TotalRent().String(),
		"participants", len(m.config.Names))
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Negotiation module stopped")
	return nil
}

// Health reports whether the session is live and the invariant holds.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.session == nil {
		return mono.HealthStatus{Healthy: false, Message: "session not initialized"}
	}
	snap := m.session.Snapshot()
	var sum domain.Amount
	for _, room := range snap.Rooms {
		sum += room.Price
	}
	if sum != snap.TotalRent {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("invariant violated: prices sum to %s, want %s", sum, snap.TotalRent),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"total_rent": snap.TotalRent.String(),
			"rooms":      len(snap.Rooms),
			"proposals":  len(snap.Proposals),
		},
	}
}

// Session returns the underlying session, for in-process callers.
func (m *Module) Session() *Session {
	return m.session
}

// Service handlers. Engine errors become wire codes in the response so
// their kind survives the request/reply bus.

func (m *Module) joinSession(_ context.Context, req JoinSessionRequest, _ *mono.Msg) (JoinSessionResponse, error) {
	participant, rejoined, err := m.session.Join(req.Name)
	if err != nil {
		return JoinSessionResponse{Result: failure(err)}, nil
	}

	if err := events.ParticipantJoinedV1.Publish(m.eventBus, events.ParticipantJoinedEvent{
		ParticipantID: participant.ID,
		Name:          participant.Name,
		Rejoined:      rejoined,
		Snapshot:      m.session.Snapshot(),
		Timestamp:     time.Now(),
	}, nil); err != nil {
		m.logger.Warn("Failed to publish event", "error", err)
	}

	m.logger.Info("Participant joined", "name", participant.Name, "rejoined", rejoined)
	return JoinSessionResponse{Result: ok(), Participant: participant, Rejoined: rejoined}, nil
}

func (m *Module) leaveSession(_ context.Context, req LeaveSessionRequest, _ *mono.Msg) (LeaveSessionResponse, error) {
	closed, err := m.session.Leave(req.ParticipantID)
	if err != nil {
		return LeaveSessionResponse{Result: failure(err)}, nil
	}

	snap := m.session.Snapshot()
	for _, pr := range closed {
		if err := events.ProposalInvalidatedV1.Publish(m.eventBus, events.ProposalInvalidatedEvent{
			Proposal:  pr,
			Snapshot:  snap,
			Timestamp: time.Now(),
		}, nil); err != nil {
			m.logger.Warn("Failed to publish event", "error", err)
		}
	}
	name := ""
	if p, perr := m.session.Participant(req.ParticipantID); perr == nil {
		name = p.Name
	}
	if err := events.ParticipantLeftV1.Publish(m.eventBus, events.ParticipantLeftEvent{
		ParticipantID: req.ParticipantID,
		Name:          name,
		Snapshot:      snap,
		Timestamp:     time.Now(),
	}, nil); err != nil {
		m.logger.Warn("Failed to publish event", "error", err)
	}

	m.logger.Info("Participant left", "participantID", req.ParticipantID, "closedProposals", len(closed))
	return LeaveSessionResponse{Result: ok(), ClosedProposals: len(closed)}, nil
}

func (m *Module) submitOffer(_ context.Context, req SubmitOfferRequest, _ *mono.Msg) (SubmitOfferResponse, error) {
	proposal, err := m.session.SubmitOffer(req.ProposerID, req.TargetID, req.ProposedPrice)
	if err != nil {
		return SubmitOfferResponse{Result: failure(err)}, nil
	}

	if err := events.ProposalCreatedV1.Publish(m.eventBus, events.ProposalCreatedEvent{
		Proposal:  proposal,
		Snapshot:  m.session.Snapshot(),
		Timestamp: time.Now(),
	}, nil); err != nil {
		m.logger.Warn("Failed to publish event", "error", err)
	}

	m.logger.Info("Proposal created",
		"proposalID", proposal.ID,
		"proposer", proposal.ProposerID,
		"target", proposal.TargetID,
		"proposedPrice", proposal.ProposedPrice.String(),
		"counterPrice", proposal.CounterPrice.String())
	return SubmitOfferResponse{Result: ok(), Proposal: proposal}, nil
}

func (m *Module) acceptProposal(_ context.Context, req ResolveProposalRequest, _ *mono.Msg) (ResolveProposalResponse, error) {
	proposal, swept, err := m.session.Accept(req.ParticipantID, req.ProposalID)
	if err != nil {
		m.reportStale(proposal, err)
		return ResolveProposalResponse{Result: failure(err), Proposal: proposal}, nil
	}

	snap := m.session.Snapshot()
	if err := events.ProposalAcceptedV1.Publish(m.eventBus, events.ProposalAcceptedEvent{
		Proposal:  proposal,
		Snapshot:  snap,
		Timestamp: time.Now(),
	}, nil); err != nil {
		m.logger.Warn("Failed to publish event", "error", err)
	}
	for _, pr := range swept {
		if err := events.ProposalInvalidatedV1.Publish(m.eventBus, events.ProposalInvalidatedEvent{
			Proposal:  pr,
			Snapshot:  snap,
			Timestamp: time.Now(),
		}, nil); err != nil {
			m.logger.Warn("Failed to publish event", "error", err)
		}
	}

	m.logger.Info("Proposal accepted, rooms swapped",
		"proposalID", proposal.ID,
		"proposerRoom", proposal.ProposerRoom,
		"targetRoom", proposal.TargetRoom)
	return ResolveProposalResponse{Result: ok(), Proposal: proposal}, nil
}

func (m *Module) declineProposal(_ context.Context, req ResolveProposalRequest, _ *mono.Msg) (ResolveProposalResponse, error) {
	proposal, err := m.session.Decline(req.ParticipantID, req.ProposalID)
	if err != nil {
		m.reportStale(proposal, err)
		return ResolveProposalResponse{Result: failure(err), Proposal: proposal}, nil
	}

	if err := events.ProposalDeclinedV1.Publish(m.eventBus, events.ProposalDeclinedEvent{
		Proposal:  proposal,
		Snapshot:  m.session.Snapshot(),
		Timestamp: time.Now(),
	}, nil); err != nil {
		m.logger.Warn("Failed to publish event", "error", err)
	}

	m.logger.Info("Proposal declined, prices rebound",
		"proposalID", proposal.ID,
		"targetRoomPrice", proposal.ProposedPrice.String(),
		"proposerRoomPrice", proposal.CounterPrice.String())
	return ResolveProposalResponse{Result: ok(), Proposal: proposal}, nil
}

func (m *Module) setSatisfied(_ context.Context, req SetSatisfiedRequest, _ *mono.Msg) (SetSatisfiedResponse, error) {
	participant, err := m.session.SetSatisfied(req.ParticipantID, req.Satisfied)
	if err != nil {
		return SetSatisfiedResponse{Result: failure(err)}, nil
	}

	if err := events.SatisfactionChangedV1.Publish(m.eventBus, events.SatisfactionChangedEvent{
		ParticipantID: participant.ID,
		Satisfied:     participant.Satisfied,
		Snapshot:      m.session.Snapshot(),
		Timestamp:     time.Now(),
	}, nil); err != nil {
		m.logger.Warn("Failed to publish event", "error", err)
	}

	return SetSatisfiedResponse{Result: ok(), Participant: participant}, nil
}

func (m *Module) getSnapshot(_ context.Context, _ GetSnapshotRequest, _ *mono.Msg) (GetSnapshotResponse, error) {
	return GetSnapshotResponse{Result: ok(), Snapshot: m.session.Snapshot()}, nil
}

// reportStale publishes an invalidation event when a resolve attempt
// closed the proposal as stale.
func (m *Module) reportStale(proposal domain.Proposal, err error) {
	if ErrorCode(err) != CodeStaleProposal {
		return
	}
	if err := events.ProposalInvalidatedV1.Publish(m.eventBus, events.ProposalInvalidatedEvent{
		Proposal:  proposal,
		Snapshot:  m.session.Snapshot(),
		Timestamp: time.Now(),
	}, nil); err != nil {
		m.logger.Warn("Failed to publish event", "error", err)
	}
	m.logger.Warn("Stale proposal invalidated", "proposalID", proposal.ID, "reason", string(proposal.Reason))
}

func ok() Result {
	return Result{OK: true}
}

func failure(err error) Result {
	return Result{OK: false, ErrorCode: ErrorCode(err), Message: err.Error()}
}
