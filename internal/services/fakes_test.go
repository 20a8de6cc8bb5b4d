package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/votehall/apiserver/internal/store"
	"github.com/votehall/apiserver/types"
)

// In-memory repository fakes backing the service tests. They mirror the real
// store's contract: ErrNotFound for missing rows, ErrDuplicate for vote
// constraint violations, candidates listed in creation order.

type fakeRoomRepo struct {
	rooms map[string]types.VotingRoom
	seq   int
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[string]types.VotingRoom)}
}

func (f *fakeRoomRepo) nextID() string {
	f.seq++
	return fmt.Sprintf("room-%d", f.seq)
}

func (f *fakeRoomRepo) Get(_ context.Context, id string) (types.VotingRoom, error) {
	room, ok := f.rooms[id]
	if !ok {
		return types.VotingRoom{}, store.ErrNotFound
	}
	return room, nil
}

func (f *fakeRoomRepo) ListByOwner(_ context.Context, ownerID string) ([]types.VotingRoom, error) {
	var out []types.VotingRoom
	for _, room := range f.rooms {
		if room.CreatedBy == ownerID {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRoomRepo) List(_ context.Context, offset, limit int) ([]types.VotingRoom, int, error) {
	var out []types.VotingRoom
	for _, room := range f.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeRoomRepo) CountByOwner(_ context.Context, ownerID string) (int, error) {
	count := 0
	for _, room := range f.rooms {
		if room.CreatedBy == ownerID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRoomRepo) CountByStatus(_ context.Context, status string) (int, error) {
	count := 0
	for _, room := range f.rooms {
		if room.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeRoomRepo) Create(_ context.Context, room types.VotingRoom, candidates []types.Candidate) (types.VotingRoom, []types.Candidate, error) {
	room.ID = f.nextID()
	room.Status = types.RoomStatusActive
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	f.rooms[room.ID] = room

	created := make([]types.Candidate, 0, len(candidates))
	for i, candidate := range candidates {
		candidate.ID = fmt.Sprintf("%s-cand-%d", room.ID, i)
		candidate.RoomID = room.ID
		candidate.CreatedAt = room.CreatedAt.Add(time.Duration(i) * time.Microsecond)
		created = append(created, candidate)
	}
	return room, created, nil
}

func (f *fakeRoomRepo) Update(_ context.Context, room types.VotingRoom) (types.VotingRoom, error) {
	current, ok := f.rooms[room.ID]
	if !ok {
		return types.VotingRoom{}, store.ErrNotFound
	}
	current.Title = room.Title
	current.Description = room.Description
	current.UpdatedAt = time.Now()
	f.rooms[room.ID] = current
	return current, nil
}

func (f *fakeRoomRepo) UpdateStatus(_ context.Context, id, status string) (types.VotingRoom, error) {
	current, ok := f.rooms[id]
	if !ok {
		return types.VotingRoom{}, store.ErrNotFound
	}
	current.Status = status
	current.UpdatedAt = time.Now()
	f.rooms[id] = current
	return current, nil
}

func (f *fakeRoomRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.rooms[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.rooms, id)
	return nil
}

type fakeCandidateRepo struct {
	candidates map[string]types.Candidate
	seq        int
}

func newFakeCandidateRepo() *fakeCandidateRepo {
	return &fakeCandidateRepo{candidates: make(map[string]types.Candidate)}
}

func (f *fakeCandidateRepo) add(roomID, name string) types.Candidate {
	f.seq++
	candidate := types.Candidate{
		ID:        fmt.Sprintf("cand-%d", f.seq),
		RoomID:    roomID,
		Name:      name,
		CreatedAt: time.Now().Add(time.Duration(f.seq) * time.Microsecond),
	}
	f.candidates[candidate.ID] = candidate
	return candidate
}

func (f *fakeCandidateRepo) Get(_ context.Context, id string) (types.Candidate, error) {
	candidate, ok := f.candidates[id]
	if !ok {
		return types.Candidate{}, store.ErrNotFound
	}
	return candidate, nil
}

func (f *fakeCandidateRepo) ListByRoom(_ context.Context, roomID string) ([]types.Candidate, error) {
	var out []types.Candidate
	for _, candidate := range f.candidates {
		if candidate.RoomID == roomID {
			out = append(out, candidate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeCandidateRepo) CountByRoom(_ context.Context, roomID string) (int, error) {
	count := 0
	for _, candidate := range f.candidates {
		if candidate.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (f *fakeCandidateRepo) Create(_ context.Context, candidate types.Candidate) (types.Candidate, error) {
	f.seq++
	candidate.ID = fmt.Sprintf("cand-%d", f.seq)
	candidate.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Microsecond)
	f.candidates[candidate.ID] = candidate
	return candidate, nil
}

func (f *fakeCandidateRepo) Update(_ context.Context, candidate types.Candidate) (types.Candidate, error) {
	current, ok := f.candidates[candidate.ID]
	if !ok || current.RoomID != candidate.RoomID {
		return types.Candidate{}, store.ErrNotFound
	}
	current.Name = candidate.Name
	current.Description = candidate.Description
	current.ImageURL = candidate.ImageURL
	f.candidates[candidate.ID] = current
	return current, nil
}

func (f *fakeCandidateRepo) UpdateImageURL(_ context.Context, id, roomID, imageURL string) error {
	current, ok := f.candidates[id]
	if !ok || current.RoomID != roomID {
		return store.ErrNotFound
	}
	current.ImageURL = imageURL
	f.candidates[id] = current
	return nil
}

func (f *fakeCandidateRepo) Delete(_ context.Context, id, roomID string) error {
	current, ok := f.candidates[id]
	if !ok || current.RoomID != roomID {
		return store.ErrNotFound
	}
	delete(f.candidates, id)
	return nil
}

type fakeVoteRepo struct {
	votes map[string]types.Vote // keyed by roomID + "/" + voterID
	seq   int
}

func newFakeVoteRepo() *fakeVoteRepo {
	return &fakeVoteRepo{votes: make(map[string]types.Vote)}
}

func voteKey(roomID, voterID string) string {
	return roomID + "/" + voterID
}

func (f *fakeVoteRepo) Create(_ context.Context, vote types.Vote) (types.Vote, error) {
	key := voteKey(vote.RoomID, vote.VoterID)
	if _, ok := f.votes[key]; ok {
		return types.Vote{}, store.ErrDuplicate
	}
	f.seq++
	vote.ID = fmt.Sprintf("vote-%d", f.seq)
	vote.CreatedAt = time.Now()
	f.votes[key] = vote
	return vote, nil
}

func (f *fakeVoteRepo) HasVoted(_ context.Context, roomID, voterID string) (bool, error) {
	_, ok := f.votes[voteKey(roomID, voterID)]
	return ok, nil
}

func (f *fakeVoteRepo) GetByVoter(_ context.Context, roomID, voterID string) (types.Vote, error) {
	vote, ok := f.votes[voteKey(roomID, voterID)]
	if !ok {
		return types.Vote{}, store.ErrNotFound
	}
	return vote, nil
}

func (f *fakeVoteRepo) CountByCandidate(_ context.Context, roomID string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, vote := range f.votes {
		if vote.RoomID == roomID {
			counts[vote.CandidateID]++
		}
	}
	return counts, nil
}

func (f *fakeVoteRepo) CountByRoom(_ context.Context, roomID string) (int, error) {
	count := 0
	for _, vote := range f.votes {
		if vote.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (f *fakeVoteRepo) Count(_ context.Context) (int, error) {
	return len(f.votes), nil
}

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) Publish(_ context.Context, roomID string) error {
	f.published = append(f.published, roomID)
	return nil
}
