package ledger

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// Repository provides access to the audit ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new ledger repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record saves a terminal proposal. Saving the same proposal twice is a
// no-op: events can be redelivered, the ledger stays idempotent.
func (r *Repository) Record(record *ProposalRecord) error {
	result := r.db.Where("id = ?", record.ID).FirstOrCreate(record)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to record proposal: %w", err)
	}
	return nil
}

// FindByID retrieves one record.
func (r *Repository) FindByID(id string) (*ProposalRecord, error) {
	var record ProposalRecord
	if err := r.db.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find record: %w", err)
	}
	return &record, nil
}

// History returns resolved proposals, newest first, capped at limit.
func (r *Repository) History(limit int) ([]*ProposalRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []*ProposalRecord
	if err := r.db.Order("resolved_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return records, nil
}

// HistoryFor returns resolved proposals a participant was part of,
// newest first.
func (r *Repository) HistoryFor(participantID string, limit int) ([]*ProposalRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []*ProposalRecord
	err := r.db.
		Where("proposer_id = ? OR target_id = ?", participantID, participantID).
		Order("resolved_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return records, nil
}

// Count returns the number of recorded proposals.
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&ProposalRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}
