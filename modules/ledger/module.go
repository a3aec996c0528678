package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	domain "github.com/example/roomswap/domain/negotiation"
	"github.com/example/roomswap/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ServiceGetHistory returns resolved proposals from the audit ledger.
const ServiceGetHistory = "get-history"

// GetHistoryRequest asks for resolved proposals; ParticipantID narrows
// the result to one participant's proposals when set.
type GetHistoryRequest struct {
	ParticipantID string `json:"participant_id,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

// GetHistoryResponse carries the matching ledger rows.
type GetHistoryResponse struct {
	Records []*ProposalRecord `json:"records"`
}

// Module keeps the audit trail: every proposal that reaches a terminal
// state is written to SQLite. The default :memory: database keeps state
// process-lifetime only; LEDGER_DB_PATH switches to a file for sessions
// that want to keep the trail around.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new ledger module.
func NewModule(log types.Logger) *Module {
	dbPath := os.Getenv("LEDGER_DB_PATH")
	if dbPath == "" {
		dbPath = ":memory:"
	}
	return &Module{
		dbPath: dbPath,
		logger: log,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ledger"
}

// RegisterServices registers the history query service.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetHistory, json.Unmarshal, json.Marshal, m.getHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetHistory, err)
	}
	m.logger.Info("Registered ledger services", "services", []string{ServiceGetHistory})
	return nil
}

// RegisterEventConsumers subscribes to every terminal proposal event.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ProposalAcceptedV1, m.handleAccepted, m,
	); err != nil {
		return fmt.Errorf("failed to register ProposalAccepted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ProposalDeclinedV1, m.handleDeclined, m,
	); err != nil {
		return fmt.Errorf("failed to register ProposalDeclined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ProposalInvalidatedV1, m.handleInvalidated, m,
	); err != nil {
		return fmt.Errorf("failed to register ProposalInvalidated consumer: %w", err)
	}

	m.logger.Info("Registered ledger event consumers",
		"events", []string{"ProposalAccepted", "ProposalDeclined", "ProposalInvalidated"})
	return nil
}

// Start opens the database and migrates the schema.
func (m *Module) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.AutoMigrate(&ProposalRecord{}); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}

	m.db = db
	m.repo = NewRepository(db)
	m.logger.Info("Ledger module started", "db", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	m.logger.Info("Ledger module stopped")
	return nil
}

// Health reports database reachability and row count.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.repo == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	count, err := m.repo.Count()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"records": count},
	}
}

// Repository returns the ledger repository, for in-process callers.
func (m *Module) Repository() *Repository {
	return m.repo
}

func (m *Module) getHistory(_ context.Context, req GetHistoryRequest, _ *mono.Msg) (GetHistoryResponse, error) {
	var (
		records []*ProposalRecord
		err     error
	)
	if req.ParticipantID != "" {
		records, err = m.repo.HistoryFor(req.ParticipantID, req.Limit)
	} else {
		records, err = m.repo.History(req.Limit)
	}
	if err != nil {
		return GetHistoryResponse{}, err
	}
	return GetHistoryResponse{Records: records}, nil
}

func (m *Module) handleAccepted(_ context.Context, event events.ProposalAcceptedEvent, _ *mono.Msg) error {
	return m.record(event.Proposal, event.Snapshot, OutcomeAccepted)
}

func (m *Module) handleDeclined(_ context.Context, event events.ProposalDeclinedEvent, _ *mono.Msg) error {
	return m.record(event.Proposal, event.Snapshot, OutcomeDeclined)
}

func (m *Module) handleInvalidated(_ context.Context, event events.ProposalInvalidatedEvent, _ *mono.Msg) error {
	return m.record(event.Proposal, event.Snapshot, OutcomeInvalidated)
}

func (m *Module) record(pr domain.Proposal, snap domain.Snapshot, outcome string) error {
	resolvedAt := time.Now()
	if pr.ResolvedAt != nil {
		resolvedAt = *pr.ResolvedAt
	}
	record := &ProposalRecord{
		ID:            pr.ID,
		ProposerID:    pr.ProposerID,
		ProposerName:  participantName(snap, pr.ProposerID),
		TargetID:      pr.TargetID,
		TargetName:    participantName(snap, pr.TargetID),
		ProposerRoom:  pr.ProposerRoom,
		TargetRoom:    pr.TargetRoom,
		ProposedPrice: int64(pr.ProposedPrice),
		CounterPrice:  int64(pr.CounterPrice),
		Outcome:       outcome,
		Reason:        string(pr.Reason),
		OfferedAt:     pr.CreatedAt,
		ResolvedAt:    resolvedAt,
	}
	if err := m.repo.Record(record); err != nil {
		m.logger.Error("Failed to write ledger record", "proposalID", pr.ID, "error", err)
		return nil // don't redeliver, the engine state is authoritative
	}
	m.logger.Debug("Ledger record written", "proposalID", pr.ID, "outcome", outcome)
	return nil
}

func participantName(snap domain.Snapshot, participantID string) string {
	for _, p := range snap.Participants {
		if p.ID == participantID {
			return p.Name
		}
	}
	return ""
}
