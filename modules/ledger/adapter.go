package ledger

import (
	"context"
	"encoding/json"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// LedgerPort is the interface other modules use to query the audit trail.
type LedgerPort interface {
	History(ctx context.Context, participantID string, limit int) ([]*ProposalRecord, error)
}

// Adapter implements LedgerPort over the service container.
type Adapter struct {
	container mono.ServiceContainer
}

var _ LedgerPort = (*Adapter)(nil)

// NewAdapter creates a ledger adapter backed by the given container.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	return &Adapter{container: container}
}

// History returns resolved proposals, newest first. An empty
// participantID returns the full trail.
func (a *Adapter) History(ctx context.Context, participantID string, limit int) ([]*ProposalRecord, error) {
	req := GetHistoryRequest{ParticipantID: participantID, Limit: limit}
	var resp GetHistoryResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceGetHistory, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, err
	}
	return resp.Records, nil
}
