package events

import (
	"time"

	domain "github.com/example/roomswap/domain/negotiation"
	"github.com/go-monolith/mono/pkg/helper"
)

// Every event carries the post-mutation snapshot so consumers can fan out
// a consistent view without calling back into the engine.

// SessionStartedEvent is emitted once when the allocation is initialized.
type SessionStartedEvent struct {
	TotalRent domain.Amount   `json:"total_rent"`
	Snapshot  domain.Snapshot `json:"snapshot"`
	Timestamp time.Time       `json:"timestamp"`
}

// ParticipantJoinedEvent is emitted when a participant claims or reclaims
// their name.
type ParticipantJoinedEvent struct {
	ParticipantID string          `json:"participant_id"`
	Name          string          `json:"name"`
	Rejoined      bool            `json:"rejoined"`
	Snapshot      domain.Snapshot `json:"snapshot"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ParticipantLeftEvent is emitted when a participant disconnects. Their
// room stays assigned; any pending proposals they were part of are closed.
type ParticipantLeftEvent struct {
	ParticipantID string          `json:"participant_id"`
	Name          string          `json:"name"`
	Snapshot      domain.Snapshot `json:"snapshot"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ProposalCreatedEvent is emitted when a swap offer is submitted.
type ProposalCreatedEvent struct {
	Proposal  domain.Proposal `json:"proposal"`
	Snapshot  domain.Snapshot `json:"snapshot"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProposalAcceptedEvent is emitted after an accepted swap: the occupants
// of the two rooms have been exchanged, prices untouched.
type ProposalAcceptedEvent struct {
	Proposal  domain.Proposal `json:"proposal"`
	Snapshot  domain.Snapshot `json:"snapshot"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProposalDeclinedEvent is emitted after a declined swap: rooms kept their
// occupants, but the target's room now costs the proposed price and the
// proposer's room the counter-price.
type ProposalDeclinedEvent struct {
	Proposal  domain.Proposal `json:"proposal"`
	Snapshot  domain.Snapshot `json:"snapshot"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProposalInvalidatedEvent is emitted when a pending proposal is closed
// without being applied (stale prices, moved occupants, departed
// participant).
type ProposalInvalidatedEvent struct {
	Proposal  domain.Proposal `json:"proposal"`
	Snapshot  domain.Snapshot `json:"snapshot"`
	Timestamp time.Time       `json:"timestamp"`
}

// SatisfactionChangedEvent is emitted when a participant toggles their
// informational satisfied flag.
type SatisfactionChangedEvent struct {
	ParticipantID string          `json:"participant_id"`
	Satisfied     bool            `json:"satisfied"`
	Snapshot      domain.Snapshot `json:"snapshot"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Event definitions for the negotiation domain.
var (
	SessionStartedV1 = helper.EventDefinition[SessionStartedEvent](
		"negotiation",
		"SessionStarted",
		"v1",
	)

	ParticipantJoinedV1 = helper.EventDefinition[ParticipantJoinedEvent](
		"negotiation",
		"ParticipantJoined",
		"v1",
	)

	ParticipantLeftV1 = helper.EventDefinition[ParticipantLeftEvent](
		"negotiation",
		"ParticipantLeft",
		"v1",
	)

	ProposalCreatedV1 = helper.EventDefinition[ProposalCreatedEvent](
		"negotiation",
		"ProposalCreated",
		"v1",
	)

	ProposalAcceptedV1 = helper.EventDefinition[ProposalAcceptedEvent](
		"negotiation",
		"ProposalAccepted",
		"v1",
	)

	ProposalDeclinedV1 = helper.EventDefinition[ProposalDeclinedEvent](
		"negotiation",
		"ProposalDeclined",
		"v1",
	)

	ProposalInvalidatedV1 = helper.EventDefinition[ProposalInvalidatedEvent](
		"negotiation",
		"ProposalInvalidated",
		"v1",
	)

	SatisfactionChangedV1 = helper.EventDefinition[SatisfactionChangedEvent](
		"negotiation",
		"SatisfactionChanged",
		"v1",
	)
)
