package services

import (
	"context"
	"errors"
	"testing"

	"github.com/votehall/apiserver/types"
)

type voteFixture struct {
	rooms      *fakeRoomRepo
	candidates *fakeCandidateRepo
	votes      *fakeVoteRepo
	publisher  *fakePublisher
	svc        *VoteService
	room       types.VotingRoom
	candA      types.Candidate
	candB      types.Candidate
}

func newVoteFixture(t *testing.T) *voteFixture {
	t.Helper()

	rooms := newFakeRoomRepo()
	candidates := newFakeCandidateRepo()
	votes := newFakeVoteRepo()
	publisher := &fakePublisher{}

	room, _, err := rooms.Create(context.Background(), types.VotingRoom{Title: "Poll", CreatedBy: "owner"}, nil)
	if err != nil {
		t.Fatalf("seed room: %v", err)
	}

	return &voteFixture{
		rooms:      rooms,
		candidates: candidates,
		votes:      votes,
		publisher:  publisher,
		svc:        NewVoteService(rooms, candidates, votes, publisher),
		room:       room,
		candA:      candidates.add(room.ID, "A"),
		candB:      candidates.add(room.ID, "B"),
	}
}

func TestCastVote(t *testing.T) {
	f := newVoteFixture(t)
	ctx := context.Background()

	vote, err := f.svc.Cast(ctx, f.room.ID, f.candA.ID, "voter1")
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if vote.CandidateID != f.candA.ID {
		t.Fatalf("unexpected candidate on vote: %q", vote.CandidateID)
	}

	if len(f.publisher.published) != 1 || f.publisher.published[0] != f.room.ID {
		t.Fatalf("expected one publish for the room, got %v", f.publisher.published)
	}
}

func TestCastVoteTwiceIsTerminal(t *testing.T) {
	f := newVoteFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Cast(ctx, f.room.ID, f.candA.ID, "voter1"); err != nil {
		t.Fatalf("first vote: %v", err)
	}

	// A second attempt, even for a different candidate, is the already-voted
	// outcome and must not change the ledger.
	_, err := f.svc.Cast(ctx, f.room.ID, f.candB.ID, "voter1")
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	counts, err := f.votes.CountByCandidate(ctx, f.room.ID)
	if err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if counts[f.candA.ID] != 1 || counts[f.candB.ID] != 0 {
		t.Fatalf("ledger changed on duplicate vote: %v", counts)
	}
}

func TestCastVoteDuplicateRaceMapsToAlreadyVoted(t *testing.T) {
	f := newVoteFixture(t)
	ctx := context.Background()

	// Simulate losing the insert race: the pre-check sees no vote, but the
	// constraint-backed insert reports a duplicate.
	if _, err := f.svc.Cast(ctx, f.room.ID, f.candA.ID, "voter1"); err != nil {
		t.Fatalf("seed vote: %v", err)
	}
	_, err := f.votes.Create(ctx, types.Vote{RoomID: f.room.ID, CandidateID: f.candB.ID, VoterID: "voter1"})
	if err == nil {
		t.Fatalf("expected duplicate error from the ledger")
	}

	_, err = f.svc.Cast(ctx, f.room.ID, f.candB.ID, "voter1")
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
}

func TestCastVoteClosedRoom(t *testing.T) {
	f := newVoteFixture(t)
	ctx := context.Background()

	if _, err := f.rooms.UpdateStatus(ctx, f.room.ID, types.RoomStatusClosed); err != nil {
		t.Fatalf("close room: %v", err)
	}

	_, err := f.svc.Cast(ctx, f.room.ID, f.candA.ID, "voter1")
	if !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
}

func TestCastVoteForeignCandidate(t *testing.T) {
	f := newVoteFixture(t)
	ctx := context.Background()

	other, _, err := f.rooms.Create(ctx, types.VotingRoom{Title: "Other", CreatedBy: "owner2"}, nil)
	if err != nil {
		t.Fatalf("seed other room: %v", err)
	}
	foreign := f.candidates.add(other.ID, "X")

	_, err = f.svc.Cast(ctx, f.room.ID, foreign.ID, "voter1")
	var validationError *ValidationError
	if !errors.As(err, &validationError) {
		t.Fatalf("expected validation error for foreign candidate, got %v", err)
	}
	if validationError.Field != "candidate_id" {
		t.Fatalf("expected candidate_id field error, got %q", validationError.Field)
	}
}

func TestCheckEligibility(t *testing.T) {
	f := newVoteFixture(t)
	ctx := context.Background()

	eligibility, err := f.svc.CheckEligibility(ctx, f.room.ID, "voter1")
	if err != nil {
		t.Fatalf("check eligibility: %v", err)
	}
	if eligibility.HasVoted {
		t.Fatalf("expected fresh voter to be eligible")
	}

	if _, err := f.svc.Cast(ctx, f.room.ID, f.candA.ID, "voter1"); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	eligibility, err = f.svc.CheckEligibility(ctx, f.room.ID, "voter1")
	if err != nil {
		t.Fatalf("check eligibility after vote: %v", err)
	}
	if !eligibility.HasVoted || eligibility.CandidateID != f.candA.ID {
		t.Fatalf("expected voted state with candidate %q, got %+v", f.candA.ID, eligibility)
	}
}

func TestResultsRecountFromLedger(t *testing.T) {
	f := newVoteFixture(t)
	ctx := context.Background()

	for i, voter := range []string{"v1", "v2", "v3"} {
		candidate := f.candA.ID
		if i == 2 {
			candidate = f.candB.ID
		}
		if _, err := f.svc.Cast(ctx, f.room.ID, candidate, voter); err != nil {
			t.Fatalf("cast vote for %s: %v", voter, err)
		}
	}

	results, err := f.svc.Results(ctx, f.room.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.TotalVotes != 3 {
		t.Fatalf("expected 3 total votes, got %d", results.TotalVotes)
	}
	if results.LeadingCandidateID != f.candA.ID {
		t.Fatalf("expected %q to lead, got %q", f.candA.ID, results.LeadingCandidateID)
	}
	if results.Entries[0].Percentage != 66.7 || results.Entries[1].Percentage != 33.3 {
		t.Fatalf("unexpected percentages: %v / %v", results.Entries[0].Percentage, results.Entries[1].Percentage)
	}
}
