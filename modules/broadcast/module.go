package broadcast

import (
	"context"
	"fmt"
	"log"
	"time"

	domain "github.com/example/roomswap/domain/negotiation"
	"github.com/example/roomswap/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// BroadcastModule is an EventConsumerModule that pushes negotiation
// events to WebSocket clients. Every event carries the post-change
// snapshot, so clients never have to poll for state.
type BroadcastModule struct {
	hub       *Hub
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule() *BroadcastModule {
	return &BroadcastModule{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start initializes the module and starts the hub.
func (m *BroadcastModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	log.Println("[broadcast] Module started - WebSocket hub running")
	return nil
}

// Stop shuts down the module.
func (m *BroadcastModule) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait() // Wait for hub to finish
	}
	log.Printf("[broadcast] Module stopped - %d clients were connected", clientCount)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.SessionStartedV1, m.handleSessionStarted, m,
	); err != nil {
		return fmt.Errorf("failed to register SessionStarted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ParticipantJoinedV1, m.handleParticipantJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register ParticipantJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ParticipantLeftV1, m.handleParticipantLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register ParticipantLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ProposalCreatedV1, m.handleProposalCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register ProposalCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ProposalAcceptedV1, m.handleProposalAccepted, m,
	); err != nil {
		return fmt.Errorf("failed to register ProposalAccepted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ProposalDeclinedV1, m.handleProposalDeclined, m,
	); err != nil {
		return fmt.Errorf("failed to register ProposalDeclined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ProposalInvalidatedV1, m.handleProposalInvalidated, m,
	); err != nil {
		return fmt.Errorf("failed to register ProposalInvalidated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.SatisfactionChangedV1, m.handleSatisfactionChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register SatisfactionChanged consumer: %w", err)
	}

	log.Println("[broadcast] Registered event consumers for all negotiation events")
	return nil
}

// Event handlers

func (m *BroadcastModule) handleSessionStarted(_ context.Context, event events.SessionStartedEvent, _ *mono.Msg) error {
	m.hub.Broadcast("session_started", WSBroadcast{
		Snapshot:  event.Snapshot,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *BroadcastModule) handleParticipantJoined(_ context.Context, event events.ParticipantJoinedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting participant joined: %s", event.Name)

	m.hub.Broadcast("participant_joined", WSBroadcast{
		ParticipantID: event.ParticipantID,
		Name:          event.Name,
		Rejoined:      event.Rejoined,
		Snapshot:      event.Snapshot,
		Timestamp:     event.Timestamp,
	})
	return nil
}

func (m *BroadcastModule) handleParticipantLeft(_ context.Context, event events.ParticipantLeftEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting participant left: %s", event.ParticipantID)

	m.hub.Broadcast("participant_left", WSBroadcast{
		ParticipantID: event.ParticipantID,
		Snapshot:      event.Snapshot,
		Timestamp:     event.Timestamp,
	})
	return nil
}

func (m *BroadcastModule) handleProposalCreated(_ context.Context, event events.ProposalCreatedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting proposal created: %s", event.Proposal.ID)

	m.hub.Broadcast("proposal_created", WSBroadcast{
		Proposal:  &event.Proposal,
		Snapshot:  event.Snapshot,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *BroadcastModule) handleProposalAccepted(_ context.Context, event events.ProposalAcceptedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting proposal accepted: %s", event.Proposal.ID)

	m.hub.Broadcast("proposal_accepted", WSBroadcast{
		Proposal:  &event.Proposal,
		Snapshot:  event.Snapshot,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *BroadcastModule) handleProposalDeclined(_ context.Context, event events.ProposalDeclinedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting proposal declined: %s", event.Proposal.ID)

	m.hub.Broadcast("proposal_declined", WSBroadcast{
		Proposal:  &event.Proposal,
		Snapshot:  event.Snapshot,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *BroadcastModule) handleProposalInvalidated(_ context.Context, event events.ProposalInvalidatedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting proposal invalidated: %s (%s)", event.Proposal.ID, event.Proposal.Reason)

	m.hub.Broadcast("proposal_invalidated", WSBroadcast{
		Proposal:  &event.Proposal,
		Snapshot:  event.Snapshot,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *BroadcastModule) handleSatisfactionChanged(_ context.Context, event events.SatisfactionChangedEvent, _ *mono.Msg) error {
	m.hub.Broadcast("satisfaction_changed", WSBroadcast{
		ParticipantID: event.ParticipantID,
		Satisfied:     &event.Satisfied,
		Snapshot:      event.Snapshot,
		Timestamp:     event.Timestamp,
	})
	return nil
}

// GetHub returns the WebSocket hub for the API module to use.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}

// WSBroadcast is the payload pushed to WebSocket clients inside an Envelope.
type WSBroadcast struct {
	ParticipantID string           `json:"participant_id,omitempty"`
	Name          string           `json:"name,omitempty"`
	Rejoined      bool             `json:"rejoined,omitempty"`
	Satisfied     *bool            `json:"satisfied,omitempty"`
	Proposal      *domain.Proposal `json:"proposal,omitempty"`
	Snapshot      domain.Snapshot  `json:"snapshot"`
	Timestamp     time.Time        `json:"timestamp"`
}
