package ledger

import "time"

// Outcome is the terminal result a proposal reached.
const (
	OutcomeAccepted    = "accepted"
	OutcomeDeclined    = "declined"
	OutcomeInvalidated = "invalidated"
)

// ProposalRecord is the audit row written for every proposal that
// reached a terminal state. Prices are integer cents, matching the
// engine's money representation.
type ProposalRecord struct {
	ID            string    `gorm:"primarykey;size:36" json:"id"`
	ProposerID    string    `gorm:"size:36;not null;index" json:"proposer_id"`
	ProposerName  string    `gorm:"size:50" json:"proposer_name"`
	TargetID      string    `gorm:"size:36;not null;index" json:"target_id"`
	TargetName    string    `gorm:"size:50" json:"target_name"`
	ProposerRoom  string    `gorm:"size:20;not null" json:"proposer_room"`
	TargetRoom    string    `gorm:"size:20;not null" json:"target_room"`
	ProposedPrice int64     `gorm:"not null" json:"proposed_price"`
	CounterPrice  int64     `gorm:"not null" json:"counter_price"`
	Outcome       string    `gorm:"size:16;not null;index" json:"outcome"`
	Reason        string    `gorm:"size:32" json:"reason,omitempty"`
	OfferedAt     time.Time `json:"offered_at"`
	ResolvedAt    time.Time `json:"resolved_at"`
}

// TableName returns the table name for ProposalRecord.
func (ProposalRecord) TableName() string {
	return "proposal_records"
}
