package negotiation

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	domain "github.com/example/roomswap/domain/negotiation"
	"github.com/google/uuid"
)

// Session is the authoritative negotiation state for one apartment: the
// rooms with their occupants and prices, the fixed total rent, and the
// open proposals. A single mutex serializes every mutation; mutation
// rate is human-speed, so one critical section is all the concurrency
// design this needs. Snapshots are deep copies taken under the same
// lock and are safe to share.
type Session struct {
	mu        sync.Mutex
	totalRent domain.Amount

	rooms     map[string]*domain.Room
	roomOrder []string

	participants map[string]*domain.Participant
	idByName     map[string]string
	nameOrder    []string
	everJoined   map[string]bool

	proposals     map[string]*domain.Proposal
	proposalOrder []string
}

// NewSession creates one room per participant name, assigns rooms via a
// uniformly random permutation, and splits the total rent equally with
// the rounding remainder going to the first room. rng may be nil, in
// which case a time-seeded source is used; tests pass a fixed seed.
func NewSession(totalRent domain.Amount, names []string, rng *rand.Rand) (*Session, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrConfiguration)
	}
	if totalRent <= 0 {
		return nil, fmt.Errorf("%w: total rent must be positive, got %s", ErrConfiguration, totalRent)
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if err := ValidateName(name); err != nil {
			return nil, fmt.Errorf("%w: bad participant name %q", ErrConfiguration, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate participant name %q", ErrConfiguration, name)
		}
		seen[name] = true
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	n := len(names)
	s := &Session{
		totalRent:    totalRent,
		rooms:        make(map[string]*domain.Room, n),
		roomOrder:    make([]string, 0, n),
		participants: make(map[string]*domain.Participant, n),
		idByName:     make(map[string]string, n),
		nameOrder:    make([]string, 0, n),
		everJoined:   make(map[string]bool, n),
		proposals:    make(map[string]*domain.Proposal),
	}

	prices := domain.EqualSplit(totalRent, n)
	perm := rng.Perm(n)
	for i, name := range names {
		p := &domain.Participant{
			ID:   uuid.New().String(),
			Name: name,
		}
		s.participants[p.ID] = p
		s.idByName[name] = p.ID
		s.nameOrder = append(s.nameOrder, name)

		roomID := fmt.Sprintf("unit_%d", i+1)
		s.rooms[roomID] = &domain.Room{
			ID:    roomID,
			Price: prices[i],
		}
		s.roomOrder = append(s.roomOrder, roomID)
	}

	// Random bijection: participant i gets room perm[i].
	for i, name := range names {
		room := s.rooms[s.roomOrder[perm[i]]]
		room.OccupantID = s.idByName[name]
	}

	return s, nil
}

// TotalRent returns the fixed total the room prices always sum to.
func (s *Session) TotalRent() domain.Amount {
	return s.totalRent
}

// Join claims the participant name. Claiming a name that a disconnected
// participant held reactivates the same identity, so a dropped browser
// session can resume where it left off. A name currently held by a
// connected participant cannot be claimed.
func (s *Session) Join(name string) (domain.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.idByName[name]
	if !ok {
		return domain.Participant{}, false, fmt.Errorf("%w: %q is not part of this session", ErrUnknownParticipant, name)
	}
	p := s.participants[id]
	if p.Connected {
		return domain.Participant{}, false, fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	rejoined := s.everJoined[id]
	s.everJoined[id] = true
	p.Connected = true
	return s.participantView(p), rejoined, nil
}

// Leave marks the participant disconnected. Their room stays assigned
// (frozen occupancy) and every pending proposal they were part of is
// closed with a participant-left reason. The closed proposals are
// returned so the caller can emit invalidation events.
func (s *Session) Leave(participantID string) ([]domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
	}
	p.Connected = false

	var closed []domain.Proposal
	for _, id := range s.proposalOrder {
		pr := s.proposals[id]
		if pr.State != domain.ProposalPending {
			continue
		}
		if pr.ProposerID != participantID && pr.TargetID != participantID {
			continue
		}
		s.closeProposal(pr, domain.ReasonParticipantLeft)
		closed = append(closed, *pr)
	}
	return closed, nil
}

// SubmitOffer creates a pending proposal from proposer to target. The
// counter-price for the proposer's own room is fixed here, against the
// prices in effect right now; a proposed price of zero defaults to the
// target room's current price.
func (s *Session) SubmitOffer(proposerID, targetID string, proposed domain.Amount) (domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[proposerID]; !ok {
		return domain.Proposal{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, proposerID)
	}
	target, ok := s.participants[targetID]
	if !ok {
		return domain.Proposal{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, targetID)
	}
	if proposerID == targetID {
		return domain.Proposal{}, fmt.Errorf("%w: cannot offer on your own room", ErrInvalidOffer)
	}
	if !target.Connected {
		return domain.Proposal{}, fmt.Errorf("%w: %s is not connected", ErrInvalidOffer, target.Name)
	}
	if proposed < 0 {
		return domain.Proposal{}, fmt.Errorf("%w: proposed price must not be negative", ErrInvalidOffer)
	}

	proposerRoom := s.roomOf(proposerID)
	targetRoom := s.roomOf(targetID)
	if proposerRoom == nil || targetRoom == nil {
		return domain.Proposal{}, fmt.Errorf("%w: participant has no room", ErrInvalidOffer)
	}

	if proposed == 0 {
		proposed = targetRoom.Price
	}
	counter := proposerRoom.Price + targetRoom.Price - proposed
	if counter < 0 {
		return domain.Proposal{}, fmt.Errorf(
			"%w: counter-price %s for %s would be negative", ErrInvalidOffer, counter, proposerRoom.ID)
	}

	for _, id := range s.proposalOrder {
		pr := s.proposals[id]
		if pr.State == domain.ProposalPending && pr.ProposerID == proposerID && pr.TargetID == targetID {
			return domain.Proposal{}, fmt.Errorf("%w: proposal %s", ErrDuplicateProposal, pr.ID)
		}
	}

	pr := &domain.Proposal{
		ID:            uuid.New().String(),
		ProposerID:    proposerID,
		TargetID:      targetID,
		ProposerRoom:  proposerRoom.ID,
		TargetRoom:    targetRoom.ID,
		ProposerPrice: proposerRoom.Price,
		TargetPrice:   targetRoom.Price,
		ProposedPrice: proposed,
		CounterPrice:  counter,
		State:         domain.ProposalPending,
		CreatedAt:     time.Now(),
	}
	s.proposals[pr.ID] = pr
	s.proposalOrder = append(s.proposalOrder, pr.ID)
	return *pr, nil
}

// Accept applies a pending proposal as a swap: the two rooms exchange
// occupants and keep their prices. Only the target may accept. A
// proposal whose recorded rooms or prices no longer match reality is
// closed as stale instead of applied. Every other pending proposal
// that references either swapped room is closed too, since its
// recorded occupancy just became wrong; the closed proposals are
// returned so the caller can emit invalidation events.
func (s *Session) Accept(participantID, proposalID string) (domain.Proposal, []domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, err := s.resolvable(participantID, proposalID)
	if err != nil {
		return s.proposalCopy(proposalID), nil, err
	}

	proposerRoom := s.rooms[pr.ProposerRoom]
	targetRoom := s.rooms[pr.TargetRoom]
	proposerRoom.OccupantID, targetRoom.OccupantID = targetRoom.OccupantID, proposerRoom.OccupantID

	now := time.Now()
	pr.State = domain.ProposalAccepted
	pr.ResolvedAt = &now

	var swept []domain.Proposal
	for _, id := range s.proposalOrder {
		other := s.proposals[id]
		if other.State != domain.ProposalPending {
			continue
		}
		if other.ProposerRoom != pr.ProposerRoom && other.ProposerRoom != pr.TargetRoom &&
			other.TargetRoom != pr.ProposerRoom && other.TargetRoom != pr.TargetRoom {
			continue
		}
		s.closeProposal(other, domain.ReasonOccupantMoved)
		swept = append(swept, *other)
	}
	return *pr, swept, nil
}

// Decline applies the binding-price rule: the rooms do not swap, but the
// target's room price becomes the proposed price and the proposer's room
// price the counter-price fixed at offer time. The two new prices sum to
// the two old ones, so the total-rent invariant holds by construction.
func (s *Session) Decline(participantID, proposalID string) (domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, err := s.resolvable(participantID, proposalID)
	if err != nil {
		return s.proposalCopy(proposalID), err
	}

	s.rooms[pr.TargetRoom].Price = pr.ProposedPrice
	s.rooms[pr.ProposerRoom].Price = pr.CounterPrice

	now := time.Now()
	pr.State = domain.ProposalDeclined
	pr.ResolvedAt = &now
	return *pr, nil
}

// resolvable authorizes and stale-checks a proposal for accept/decline.
// Must be called with the lock held. On a stale check failure the
// proposal is closed before the error is returned.
func (s *Session) resolvable(participantID, proposalID string) (*domain.Proposal, error) {
	pr, ok := s.proposals[proposalID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown proposal %s", ErrInvalidState, proposalID)
	}
	if pr.TargetID != participantID {
		return nil, fmt.Errorf("%w: only the target may resolve a proposal", ErrNotAuthorized)
	}
	if pr.State != domain.ProposalPending {
		return nil, fmt.Errorf("%w: proposal is %s", ErrInvalidState, pr.State)
	}

	proposerRoom := s.roomOf(pr.ProposerID)
	targetRoom := s.roomOf(pr.TargetID)
	if proposerRoom == nil || targetRoom == nil ||
		proposerRoom.ID != pr.ProposerRoom || targetRoom.ID != pr.TargetRoom {
		s.closeProposal(pr, domain.ReasonOccupantMoved)
		return nil, fmt.Errorf("%w: occupants moved since the offer", ErrStaleProposal)
	}
	if proposerRoom.Price != pr.ProposerPrice || targetRoom.Price != pr.TargetPrice {
		s.closeProposal(pr, domain.ReasonStalePrices)
		return nil, fmt.Errorf("%w: room prices changed since the offer", ErrStaleProposal)
	}
	return pr, nil
}

// closeProposal marks a pending proposal declined without applying it.
// Must be called with the lock held.
func (s *Session) closeProposal(pr *domain.Proposal, reason domain.InvalidationReason) {
	now := time.Now()
	pr.State = domain.ProposalDeclined
	pr.Reason = reason
	pr.ResolvedAt = &now
}

// SetSatisfied toggles the informational flag. It never affects any
// other operation.
func (s *Session) SetSatisfied(participantID string, satisfied bool) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return domain.Participant{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
	}
	p.Satisfied = satisfied
	return s.participantView(p), nil
}

// Participant returns the current view of a single participant.
func (s *Session) Participant(participantID string) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return domain.Participant{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
	}
	return s.participantView(p), nil
}

// Snapshot returns a consistent deep copy of the whole session: rooms in
// unit order, participants in configuration order, proposals in creation
// order.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.Snapshot{
		TotalRent:    s.totalRent,
		Rooms:        make([]domain.Room, 0, len(s.roomOrder)),
		Participants: make([]domain.Participant, 0, len(s.nameOrder)),
		Proposals:    make([]domain.Proposal, 0, len(s.proposalOrder)),
		TakenAt:      time.Now(),
	}
	for _, id := range s.roomOrder {
		snap.Rooms = append(snap.Rooms, *s.rooms[id])
	}
	for _, name := range s.nameOrder {
		p := s.participants[s.idByName[name]]
		snap.Participants = append(snap.Participants, s.participantView(p))
	}
	for _, id := range s.proposalOrder {
		snap.Proposals = append(snap.Proposals, *s.proposals[id])
	}
	return snap
}

// roomOf returns the room currently occupied by the participant, or nil.
// Must be called with the lock held.
func (s *Session) roomOf(participantID string) *domain.Room {
	for _, id := range s.roomOrder {
		if s.rooms[id].OccupantID == participantID {
			return s.rooms[id]
		}
	}
	return nil
}

// participantView copies a participant and fills in the derived RoomID.
// Must be called with the lock held.
func (s *Session) participantView(p *domain.Participant) domain.Participant {
	view := *p
	if room := s.roomOf(p.ID); room != nil {
		view.RoomID = room.ID
	}
	return view
}

// proposalCopy returns a copy of the proposal for error reporting, or a
// zero value when the ID is unknown. Must be called with the lock held.
func (s *Session) proposalCopy(proposalID string) domain.Proposal {
	if pr, ok := s.proposals[proposalID]; ok {
		return *pr
	}
	return domain.Proposal{}
}
