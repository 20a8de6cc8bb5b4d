package services

import (
	"context"
	"errors"

	"github.com/votehall/apiserver/internal/store"
	"github.com/votehall/apiserver/types"
)

// VoteRepository defines persistence operations for the votes ledger.
type VoteRepository interface {
	Create(ctx context.Context, vote types.Vote) (types.Vote, error)
	HasVoted(ctx context.Context, roomID, voterID string) (bool, error)
	GetByVoter(ctx context.Context, roomID, voterID string) (types.Vote, error)
	CountByCandidate(ctx context.Context, roomID string) (map[string]int, error)
	CountByRoom(ctx context.Context, roomID string) (int, error)
	Count(ctx context.Context) (int, error)
}

// Publisher fans a room's tally-changed signal out to connected viewers.
type Publisher interface {
	Publish(ctx context.Context, roomID string) error
}

// VoteService encapsulates the vote casting and tallying flow.
type VoteService struct {
	rooms      RoomRepository
	candidates CandidateRepository
	votes      VoteRepository
	publisher  Publisher
}

func NewVoteService(rooms RoomRepository, candidates CandidateRepository, votes VoteRepository, publisher Publisher) *VoteService {
	return &VoteService{
		rooms:      rooms,
		candidates: candidates,
		votes:      votes,
		publisher:  publisher,
	}
}

// Eligibility is the voter's standing in a room. CandidateID is set when the
// voter has already voted, so a returning client can restore its terminal
// voted state.
type Eligibility struct {
	HasVoted    bool   `json:"has_voted"`
	CandidateID string `json:"candidate_id,omitempty"`
}

// CheckEligibility reports whether the voter has already voted in the room.
func (s *VoteService) CheckEligibility(ctx context.Context, roomID, voterID string) (Eligibility, error) {
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		return Eligibility{}, err
	}

	vote, err := s.votes.GetByVoter(ctx, roomID, voterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Eligibility{}, nil
		}
		return Eligibility{}, err
	}
	return Eligibility{HasVoted: true, CandidateID: vote.CandidateID}, nil
}

// Cast validates and appends one vote, then publishes the room's change.
//
// The pre-insert eligibility check only narrows the race window for a nicer
// error; the unique constraint behind VoteRepository.Create is what actually
// guarantees at-most-one vote per (room, voter). A duplicate insert maps to
// ErrAlreadyVoted either way.
func (s *VoteService) Cast(ctx context.Context, roomID, candidateID, voterID string) (types.Vote, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return types.Vote{}, err
	}
	if room.Status != types.RoomStatusActive {
		return types.Vote{}, ErrRoomClosed
	}

	candidate, err := s.candidates.Get(ctx, candidateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Vote{}, validationErr("candidate_id", "candidate does not exist")
		}
		return types.Vote{}, err
	}
	if candidate.RoomID != roomID {
		return types.Vote{}, validationErr("candidate_id", "candidate does not belong to this room")
	}

	voted, err := s.votes.HasVoted(ctx, roomID, voterID)
	if err != nil {
		return types.Vote{}, err
	}
	if voted {
		return types.Vote{}, ErrAlreadyVoted
	}

	vote, err := s.votes.Create(ctx, types.Vote{
		RoomID:      roomID,
		CandidateID: candidateID,
		VoterID:     voterID,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Vote{}, ErrAlreadyVoted
		}
		return types.Vote{}, err
	}

	if s.publisher != nil {
		// The vote is committed at this point; viewers catch up on their
		// next event or page load, so a broadcast failure is not surfaced.
		_ = s.publisher.Publish(ctx, roomID)
	}
	return vote, nil
}

// Results recomputes the room's tally from the ledger.
func (s *VoteService) Results(ctx context.Context, roomID string) (types.RoomResults, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return types.RoomResults{}, err
	}
	candidates, err := s.candidates.ListByRoom(ctx, roomID)
	if err != nil {
		return types.RoomResults{}, err
	}
	counts, err := s.votes.CountByCandidate(ctx, roomID)
	if err != nil {
		return types.RoomResults{}, err
	}
	return ComputeTally(room, candidates, counts), nil
}
