package negotiation

import (
	"errors"
	"math/rand"
	"testing"

	domain "github.com/example/roomswap/domain/negotiation"
)

// newTestSession builds a seeded session and joins every participant.
func newTestSession(t *testing.T, totalRent domain.Amount, names []string) *Session {
	t.Helper()
	s, err := NewSession(totalRent, names, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewSession() unexpected error: %v", err)
	}
	for _, name := range names {
		if _, _, err := s.Join(name); err != nil {
			t.Fatalf("Join(%q) unexpected error: %v", name, err)
		}
	}
	return s
}

// idOf resolves a participant ID by name from the current snapshot.
func idOf(t *testing.T, s *Session, name string) string {
	t.Helper()
	for _, p := range s.Snapshot().Participants {
		if p.Name == name {
			return p.ID
		}
	}
	t.Fatalf("participant %q not found", name)
	return ""
}

// checkInvariant asserts the room prices sum to the total rent.
func checkInvariant(t *testing.T, s *Session) {
	t.Helper()
	snap := s.Snapshot()
	var sum domain.Amount
	for _, room := range snap.Rooms {
		sum += room.Price
	}
	if sum != snap.TotalRent {
		t.Fatalf("room prices sum to %s, want %s", sum, snap.TotalRent)
	}
}

func TestNewSessionValidation(t *testing.T) {
	tests := []struct {
		name      string
		totalRent domain.Amount
		names     []string
	}{
		{
			name:      "no participants",
			totalRent: 360600,
			names:     nil,
		},
		{
			name:      "zero rent",
			totalRent: 0,
			names:     []string{"Karim", "Hassan"},
		},
		{
			name:      "negative rent",
			totalRent: -100,
			names:     []string{"Karim", "Hassan"},
		},
		{
			name:      "empty name",
			totalRent: 360600,
			names:     []string{"Karim", ""},
		},
		{
			name:      "duplicate name",
			totalRent: 360600,
			names:     []string{"Karim", "Karim"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession(tt.totalRent, tt.names, rand.New(rand.NewSource(1)))
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("NewSession() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestNewSessionInitialAllocation(t *testing.T) {
	names := []string{"Karim", "Hassan", "Benjamin", "Hassaan"}
	s := newTestSession(t, 360600, names)
	snap := s.Snapshot()

	if len(snap.Rooms) != len(names) {
		t.Fatalf("got %d rooms, want %d", len(snap.Rooms), len(names))
	}

	checkInvariant(t, s)

	// The remainder of 360600 / 4 lands on the first room.
	if snap.Rooms[0].Price != 90150 {
		t.Errorf("first room price = %s, want 901.50", snap.Rooms[0].Price)
	}

	// Occupancy is a bijection: every room has an occupant and every
	// participant occupies exactly one room.
	occupied := make(map[string]int)
	for _, room := range snap.Rooms {
		if room.OccupantID == "" {
			t.Errorf("room %s has no occupant", room.ID)
		}
		occupied[room.OccupantID]++
	}
	for _, p := range snap.Participants {
		if occupied[p.ID] != 1 {
			t.Errorf("participant %s occupies %d rooms, want 1", p.Name, occupied[p.ID])
		}
		if p.RoomID == "" {
			t.Errorf("participant %s has no derived room", p.Name)
		}
	}
}

func TestNewSessionSeededAssignmentIsDeterministic(t *testing.T) {
	names := []string{"Karim", "Hassan", "Benjamin", "Hassaan"}

	roomsByName := func(s *Session) map[string]string {
		snap := s.Snapshot()
		out := make(map[string]string, len(snap.Participants))
		for _, p := range snap.Participants {
			out[p.Name] = p.RoomID
		}
		return out
	}

	a := newTestSession(t, 360600, names)
	b := newTestSession(t, 360600, names)

	got, want := roomsByName(a), roomsByName(b)
	for name, roomID := range want {
		if got[name] != roomID {
			t.Errorf("assignment for %s differs between equal seeds: %s vs %s", name, got[name], roomID)
		}
	}
}

func TestSubmitOfferValidation(t *testing.T) {
	s := newTestSession(t, 360000, []string{"Karim", "Hassan", "Benjamin"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")

	if _, err := s.Leave(idOf(t, s, "Benjamin")); err != nil {
		t.Fatalf("Leave() unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		proposer string
		target   string
		price    domain.Amount
		wantErr  error
	}{
		{
			name:     "unknown proposer",
			proposer: "nobody",
			target:   hassan,
			price:    100000,
			wantErr:  ErrUnknownParticipant,
		},
		{
			name:     "unknown target",
			proposer: karim,
			target:   "nobody",
			price:    100000,
			wantErr:  ErrUnknownParticipant,
		},
		{
			name:     "offer on own room",
			proposer: karim,
			target:   karim,
			price:    100000,
			wantErr:  ErrInvalidOffer,
		},
		{
			name:     "disconnected target",
			proposer: karim,
			target:   idOf(t, s, "Benjamin"),
			price:    100000,
			wantErr:  ErrInvalidOffer,
		},
		{
			name:     "negative price",
			proposer: karim,
			target:   hassan,
			price:    -1,
			wantErr:  ErrInvalidOffer,
		},
		{
			name:     "counter-price would go negative",
			proposer: karim,
			target:   hassan,
			price:    999999,
			wantErr:  ErrInvalidOffer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SubmitOffer(tt.proposer, tt.target, tt.price)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SubmitOffer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubmitOfferDuplicatePending(t *testing.T) {
	s := newTestSession(t, 360000, []string{"Karim", "Hassan"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")

	if _, err := s.SubmitOffer(karim, hassan, 100000); err != nil {
		t.Fatalf("first SubmitOffer() unexpected error: %v", err)
	}

	if _, err := s.SubmitOffer(karim, hassan, 120000); !errors.Is(err, ErrDuplicateProposal) {
		t.Errorf("second SubmitOffer() error = %v, want ErrDuplicateProposal", err)
	}

	// The reverse direction is a different ordered pair and stays legal.
	if _, err := s.SubmitOffer(hassan, karim, 100000); err != nil {
		t.Errorf("reverse SubmitOffer() unexpected error: %v", err)
	}
}

func TestSubmitOfferDefaultsToTargetPrice(t *testing.T) {
	s := newTestSession(t, 360000, []string{"Karim", "Hassan"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")

	pr, err := s.SubmitOffer(karim, hassan, 0)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}
	if pr.ProposedPrice != pr.TargetPrice {
		t.Errorf("ProposedPrice = %s, want target price %s", pr.ProposedPrice, pr.TargetPrice)
	}
	if pr.CounterPrice != pr.ProposerPrice {
		t.Errorf("CounterPrice = %s, want proposer price %s", pr.CounterPrice, pr.ProposerPrice)
	}
}

func TestAcceptSwapsOccupantsKeepsPrices(t *testing.T) {
	s := newTestSession(t, 360600, []string{"Karim", "Hassan", "Benjamin", "Hassaan"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")

	before := s.Snapshot()
	priceByRoom := make(map[string]domain.Amount)
	for _, room := range before.Rooms {
		priceByRoom[room.ID] = room.Price
	}

	pr, err := s.SubmitOffer(karim, hassan, 95000)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}

	resolved, _, err := s.Accept(hassan, pr.ID)
	if err != nil {
		t.Fatalf("Accept() unexpected error: %v", err)
	}
	if resolved.State != domain.ProposalAccepted {
		t.Errorf("proposal state = %s, want accepted", resolved.State)
	}

	after := s.Snapshot()
	for _, room := range after.Rooms {
		if room.Price != priceByRoom[room.ID] {
			t.Errorf("room %s price changed on accept: %s -> %s", room.ID, priceByRoom[room.ID], room.Price)
		}
		switch room.ID {
		case pr.ProposerRoom:
			if room.OccupantID != hassan {
				t.Errorf("room %s occupant = %s, want Hassan", room.ID, room.OccupantID)
			}
		case pr.TargetRoom:
			if room.OccupantID != karim {
				t.Errorf("room %s occupant = %s, want Karim", room.ID, room.OccupantID)
			}
		}
	}
	checkInvariant(t, s)
}

func TestDeclineBindsPrices(t *testing.T) {
	// Two equal rooms at 900.00. An offer of 970.00 fixes the counter at
	// 830.00, and declining makes both prices binding.
	s := newTestSession(t, 180000, []string{"Karim", "Hassan"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")

	pr, err := s.SubmitOffer(karim, hassan, 97000)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}
	if pr.CounterPrice != 83000 {
		t.Fatalf("CounterPrice = %s, want 830.00", pr.CounterPrice)
	}

	resolved, err := s.Decline(hassan, pr.ID)
	if err != nil {
		t.Fatalf("Decline() unexpected error: %v", err)
	}
	if resolved.State != domain.ProposalDeclined {
		t.Errorf("proposal state = %s, want declined", resolved.State)
	}

	snap := s.Snapshot()
	for _, room := range snap.Rooms {
		switch room.ID {
		case pr.TargetRoom:
			if room.Price != 97000 {
				t.Errorf("target room price = %s, want 970.00", room.Price)
			}
			if room.OccupantID != hassan {
				t.Errorf("target room occupant changed on decline")
			}
		case pr.ProposerRoom:
			if room.Price != 83000 {
				t.Errorf("proposer room price = %s, want 830.00", room.Price)
			}
			if room.OccupantID != karim {
				t.Errorf("proposer room occupant changed on decline")
			}
		}
	}
	checkInvariant(t, s)
}

func TestResolveAuthorization(t *testing.T) {
	s := newTestSession(t, 360000, []string{"Karim", "Hassan", "Benjamin"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")
	benjamin := idOf(t, s, "Benjamin")

	pr, err := s.SubmitOffer(karim, hassan, 100000)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}

	if _, _, err := s.Accept(karim, pr.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Accept() by proposer error = %v, want ErrNotAuthorized", err)
	}
	if _, err := s.Decline(benjamin, pr.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Decline() by third party error = %v, want ErrNotAuthorized", err)
	}
	if _, _, err := s.Accept(hassan, "no-such-proposal"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Accept() of unknown proposal error = %v, want ErrInvalidState", err)
	}

	if _, _, err := s.Accept(hassan, pr.ID); err != nil {
		t.Fatalf("Accept() unexpected error: %v", err)
	}
	if _, err := s.Decline(hassan, pr.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Decline() of resolved proposal error = %v, want ErrInvalidState", err)
	}
}

func TestResolveStaleAfterPriceChange(t *testing.T) {
	s := newTestSession(t, 360000, []string{"Karim", "Hassan", "Benjamin"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")
	benjamin := idOf(t, s, "Benjamin")

	stale, err := s.SubmitOffer(karim, hassan, 110000)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}

	// A decline on another offer against Hassan's room moves its price,
	// invalidating the recorded prices of the first proposal.
	other, err := s.SubmitOffer(benjamin, hassan, 130000)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}
	if _, err := s.Decline(hassan, other.ID); err != nil {
		t.Fatalf("Decline() unexpected error: %v", err)
	}

	resolved, _, err := s.Accept(hassan, stale.ID)
	if !errors.Is(err, ErrStaleProposal) {
		t.Fatalf("Accept() error = %v, want ErrStaleProposal", err)
	}
	if resolved.State != domain.ProposalDeclined {
		t.Errorf("stale proposal state = %s, want declined", resolved.State)
	}
	if resolved.Reason != domain.ReasonStalePrices {
		t.Errorf("stale proposal reason = %s, want stale_prices", resolved.Reason)
	}
	checkInvariant(t, s)
}

func TestAcceptClosesProposalsOnSwappedRooms(t *testing.T) {
	s := newTestSession(t, 360000, []string{"Karim", "Hassan", "Benjamin"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")
	benjamin := idOf(t, s, "Benjamin")

	doomed, err := s.SubmitOffer(karim, hassan, 0)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}

	// Hassan swaps rooms with Benjamin. The pending offer on Hassan's
	// old room is closed as part of the swap, not left dangling.
	swap, err := s.SubmitOffer(benjamin, hassan, 0)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}
	_, swept, err := s.Accept(hassan, swap.ID)
	if err != nil {
		t.Fatalf("Accept() unexpected error: %v", err)
	}
	if len(swept) != 1 || swept[0].ID != doomed.ID {
		t.Fatalf("Accept() swept %d proposals, want the doomed offer only", len(swept))
	}
	if swept[0].Reason != domain.ReasonOccupantMoved {
		t.Errorf("swept proposal reason = %s, want occupant_moved", swept[0].Reason)
	}

	if _, err := s.Decline(hassan, doomed.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Decline() of swept proposal error = %v, want ErrInvalidState", err)
	}

	// The pair is free again: a fresh offer to the same target must not
	// be blocked by the closed proposal.
	if _, err := s.SubmitOffer(karim, hassan, 0); err != nil {
		t.Errorf("fresh SubmitOffer() after sweep unexpected error: %v", err)
	}
	checkInvariant(t, s)
}

func TestJoinClaimsAndReclaimsNames(t *testing.T) {
	names := []string{"Karim", "Hassan"}
	s, err := NewSession(360000, names, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewSession() unexpected error: %v", err)
	}

	if _, _, err := s.Join("Zoe"); !errors.Is(err, ErrUnknownParticipant) {
		t.Errorf("Join() of unknown name error = %v, want ErrUnknownParticipant", err)
	}

	p, rejoined, err := s.Join("Karim")
	if err != nil {
		t.Fatalf("Join() unexpected error: %v", err)
	}
	if rejoined {
		t.Error("first Join() reported rejoined = true")
	}
	if !p.Connected {
		t.Error("joined participant not marked connected")
	}

	if _, _, err := s.Join("Karim"); !errors.Is(err, ErrNameTaken) {
		t.Errorf("Join() of held name error = %v, want ErrNameTaken", err)
	}

	if _, err := s.Leave(p.ID); err != nil {
		t.Fatalf("Leave() unexpected error: %v", err)
	}

	again, rejoined, err := s.Join("Karim")
	if err != nil {
		t.Fatalf("rejoin unexpected error: %v", err)
	}
	if !rejoined {
		t.Error("rejoin reported rejoined = false")
	}
	if again.ID != p.ID {
		t.Errorf("rejoin got identity %s, want the original %s", again.ID, p.ID)
	}
	if again.RoomID != p.RoomID {
		t.Errorf("rejoin got room %s, want frozen room %s", again.RoomID, p.RoomID)
	}
}

func TestLeaveClosesPendingProposals(t *testing.T) {
	s := newTestSession(t, 360000, []string{"Karim", "Hassan", "Benjamin"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")
	benjamin := idOf(t, s, "Benjamin")

	out, err := s.SubmitOffer(hassan, karim, 0)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}
	in, err := s.SubmitOffer(benjamin, hassan, 0)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}

	closed, err := s.Leave(hassan)
	if err != nil {
		t.Fatalf("Leave() unexpected error: %v", err)
	}
	if len(closed) != 2 {
		t.Fatalf("Leave() closed %d proposals, want 2", len(closed))
	}
	for _, pr := range closed {
		if pr.ID != out.ID && pr.ID != in.ID {
			t.Errorf("Leave() closed unrelated proposal %s", pr.ID)
		}
		if pr.Reason != domain.ReasonParticipantLeft {
			t.Errorf("closed proposal reason = %s, want participant_left", pr.Reason)
		}
	}

	// Prices and occupancy are untouched by a departure.
	checkInvariant(t, s)
	left, err := s.Participant(hassan)
	if err != nil {
		t.Fatalf("Participant() unexpected error: %v", err)
	}
	if left.Connected {
		t.Error("participant still marked connected after Leave()")
	}
	if left.RoomID == "" {
		t.Error("participant lost their room on Leave()")
	}
}

func TestSetSatisfiedIsInformational(t *testing.T) {
	s := newTestSession(t, 360000, []string{"Karim", "Hassan"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")

	p, err := s.SetSatisfied(karim, true)
	if err != nil {
		t.Fatalf("SetSatisfied() unexpected error: %v", err)
	}
	if !p.Satisfied {
		t.Error("SetSatisfied(true) did not stick")
	}

	// A satisfied participant can still receive and resolve offers.
	pr, err := s.SubmitOffer(hassan, karim, 100000)
	if err != nil {
		t.Fatalf("SubmitOffer() unexpected error: %v", err)
	}
	if _, err := s.Decline(karim, pr.ID); err != nil {
		t.Fatalf("Decline() unexpected error: %v", err)
	}
	checkInvariant(t, s)

	if _, err := s.SetSatisfied("nobody", true); !errors.Is(err, ErrUnknownParticipant) {
		t.Errorf("SetSatisfied() error = %v, want ErrUnknownParticipant", err)
	}
}

// TestNegotiationScenario walks a full negotiation: equal 1200.00 split
// across three rooms, declines reshaping prices to 900/900/1800, then a
// 970.00 offer between the two 900.00 rooms settling at 830.00/970.00.
func TestNegotiationScenario(t *testing.T) {
	s := newTestSession(t, 360000, []string{"Karim", "Hassan", "Benjamin"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")
	benjamin := idOf(t, s, "Benjamin")

	decline := func(proposer, target string, proposed domain.Amount) {
		t.Helper()
		pr, err := s.SubmitOffer(proposer, target, proposed)
		if err != nil {
			t.Fatalf("SubmitOffer() unexpected error: %v", err)
		}
		if _, err := s.Decline(target, pr.ID); err != nil {
			t.Fatalf("Decline() unexpected error: %v", err)
		}
		checkInvariant(t, s)
	}

	priceOf := func(participantID string) domain.Amount {
		t.Helper()
		snap := s.Snapshot()
		for _, room := range snap.Rooms {
			if room.OccupantID == participantID {
				return room.Price
			}
		}
		t.Fatalf("participant %s has no room", participantID)
		return 0
	}

	// Karim bids Hassan's room down to 900.00; his own rises to 1500.00.
	decline(karim, hassan, 90000)
	// Karim bids Benjamin's room up to 1800.00; his own drops to 900.00.
	decline(karim, benjamin, 180000)

	if got := priceOf(karim); got != 90000 {
		t.Fatalf("Karim's room price = %s, want 900.00", got)
	}
	if got := priceOf(hassan); got != 90000 {
		t.Fatalf("Hassan's room price = %s, want 900.00", got)
	}
	if got := priceOf(benjamin); got != 180000 {
		t.Fatalf("Benjamin's room price = %s, want 1800.00", got)
	}

	// 970.00 for Hassan's 900.00 room fixes Karim's counter at 830.00.
	decline(karim, hassan, 97000)

	if got := priceOf(karim); got != 83000 {
		t.Errorf("Karim's room price = %s, want 830.00", got)
	}
	if got := priceOf(hassan); got != 97000 {
		t.Errorf("Hassan's room price = %s, want 970.00", got)
	}
	if got := priceOf(benjamin); got != 180000 {
		t.Errorf("Benjamin's room price = %s, want 1800.00", got)
	}
}

func TestInvariantHoldsAcrossMixedOperations(t *testing.T) {
	s := newTestSession(t, 360601, []string{"Karim", "Hassan", "Benjamin", "Hassaan"})
	karim := idOf(t, s, "Karim")
	hassan := idOf(t, s, "Hassan")
	benjamin := idOf(t, s, "Benjamin")
	hassaan := idOf(t, s, "Hassaan")

	steps := []func() (domain.Proposal, error){
		func() (domain.Proposal, error) { return s.SubmitOffer(karim, hassan, 95000) },
		func() (domain.Proposal, error) { return s.SubmitOffer(benjamin, hassaan, 0) },
	}
	var proposals []domain.Proposal
	for i, step := range steps {
		pr, err := step()
		if err != nil {
			t.Fatalf("step %d unexpected error: %v", i, err)
		}
		proposals = append(proposals, pr)
		checkInvariant(t, s)
	}

	if _, err := s.Decline(hassan, proposals[0].ID); err != nil {
		t.Fatalf("Decline() unexpected error: %v", err)
	}
	checkInvariant(t, s)

	if _, _, err := s.Accept(hassaan, proposals[1].ID); err != nil {
		t.Fatalf("Accept() unexpected error: %v", err)
	}
	checkInvariant(t, s)

	if _, err := s.Leave(benjamin); err != nil {
		t.Fatalf("Leave() unexpected error: %v", err)
	}
	checkInvariant(t, s)
}
