package negotiation

import "time"

// Room is one of the apartment's rooms. The occupant reference is the
// authoritative side of the participant-to-room mapping; price always
// attaches to the room, never to the person occupying it.
type Room struct {
	ID         string `json:"id"`
	OccupantID string `json:"occupant_id"`
	Price      Amount `json:"price"`
}

// Participant is a housemate taking part in the negotiation. RoomID is
// derived from Room.OccupantID when snapshots are built, never stored
// independently. A disconnected participant keeps their room (frozen
// occupancy) and may reclaim the same identity by rejoining under the
// same name.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Satisfied bool   `json:"satisfied"`
	Connected bool   `json:"connected"`
	RoomID    string `json:"room_id,omitempty"`
}

// ProposalState is the lifecycle state of a swap proposal.
type ProposalState string

const (
	ProposalPending  ProposalState = "pending"
	ProposalAccepted ProposalState = "accepted"
	ProposalDeclined ProposalState = "declined"
)

// InvalidationReason explains why a proposal was closed without being
// applied. Empty for proposals the target resolved normally.
type InvalidationReason string

const (
	ReasonStalePrices     InvalidationReason = "stale_prices"
	ReasonOccupantMoved   InvalidationReason = "occupant_moved"
	ReasonParticipantLeft InvalidationReason = "participant_left"
)

// Proposal is a swap offer from one participant to another. The room IDs
// and prices are captured at creation time: the counter-price is fixed
// against them, and resolving the proposal later re-validates that none
// of them moved in the meantime.
type Proposal struct {
	ID            string             `json:"id"`
	ProposerID    string             `json:"proposer_id"`
	TargetID      string             `json:"target_id"`
	ProposerRoom  string             `json:"proposer_room"`
	TargetRoom    string             `json:"target_room"`
	ProposerPrice Amount             `json:"proposer_price"`
	TargetPrice   Amount             `json:"target_price"`
	ProposedPrice Amount             `json:"proposed_price"`
	CounterPrice  Amount             `json:"counter_price"`
	State         ProposalState      `json:"state"`
	Reason        InvalidationReason `json:"reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
}

// Snapshot is a consistent point-in-time view of the whole session,
// safe to hand to other goroutines.
type Snapshot struct {
	TotalRent    Amount        `json:"total_rent"`
	Rooms        []Room        `json:"rooms"`
	Participants []Participant `json:"participants"`
	Proposals    []Proposal    `json:"proposals"`
	TakenAt      time.Time     `json:"taken_at"`
}
