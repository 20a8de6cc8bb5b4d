package services

import (
	"context"
	"strings"

	"github.com/votehall/apiserver/types"
)

// RoomRepository defines persistence operations for voting rooms.
type RoomRepository interface {
	Get(ctx context.Context, id string) (types.VotingRoom, error)
	ListByOwner(ctx context.Context, ownerID string) ([]types.VotingRoom, error)
	List(ctx context.Context, offset, limit int) ([]types.VotingRoom, int, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	CountByStatus(ctx context.Context, status string) (int, error)
	Create(ctx context.Context, room types.VotingRoom, candidates []types.Candidate) (types.VotingRoom, []types.Candidate, error)
	Update(ctx context.Context, room types.VotingRoom) (types.VotingRoom, error)
	UpdateStatus(ctx context.Context, id, status string) (types.VotingRoom, error)
	Delete(ctx context.Context, id string) error
}

// CandidateRepository defines persistence operations for candidates.
type CandidateRepository interface {
	Get(ctx context.Context, id string) (types.Candidate, error)
	ListByRoom(ctx context.Context, roomID string) ([]types.Candidate, error)
	CountByRoom(ctx context.Context, roomID string) (int, error)
	Create(ctx context.Context, candidate types.Candidate) (types.Candidate, error)
	Update(ctx context.Context, candidate types.Candidate) (types.Candidate, error)
	UpdateImageURL(ctx context.Context, id, roomID, imageURL string) error
	Delete(ctx context.Context, id, roomID string) error
}

// RoomService encapsulates room and candidate use-cases, including the
// ownership checks and business limits the data layer does not know about.
type RoomService struct {
	rooms      RoomRepository
	candidates CandidateRepository
}

func NewRoomService(rooms RoomRepository, candidates CandidateRepository) *RoomService {
	return &RoomService{rooms: rooms, candidates: candidates}
}

// RoomWithCandidates pairs room metadata with its ordered candidate list.
type RoomWithCandidates struct {
	Room       types.VotingRoom  `json:"room"`
	Candidates []types.Candidate `json:"candidates"`
}

// Get loads a room with its candidates ordered by creation time.
func (s *RoomService) Get(ctx context.Context, id string) (RoomWithCandidates, error) {
	room, err := s.rooms.Get(ctx, id)
	if err != nil {
		return RoomWithCandidates{}, err
	}
	candidates, err := s.candidates.ListByRoom(ctx, id)
	if err != nil {
		return RoomWithCandidates{}, err
	}
	return RoomWithCandidates{Room: room, Candidates: candidates}, nil
}

// GetOwned loads a room for a mutating or dashboard context. A room owned by
// someone else surfaces as ErrPermission without leaking its contents.
func (s *RoomService) GetOwned(ctx context.Context, id, callerID string) (RoomWithCandidates, error) {
	result, err := s.Get(ctx, id)
	if err != nil {
		return RoomWithCandidates{}, err
	}
	if result.Room.CreatedBy != callerID {
		return RoomWithCandidates{}, ErrPermission
	}
	return result, nil
}

func (s *RoomService) ListByOwner(ctx context.Context, ownerID string) ([]types.VotingRoom, error) {
	return s.rooms.ListByOwner(ctx, ownerID)
}

// Create validates the room and its initial candidates, enforces the
// per-user quota, and persists everything in one transaction.
func (s *RoomService) Create(ctx context.Context, ownerID, title, description string, candidates []types.Candidate) (RoomWithCandidates, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return RoomWithCandidates{}, validationErr("title", "title is required")
	}

	named := make([]types.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		candidate.Name = strings.TrimSpace(candidate.Name)
		candidate.Description = strings.TrimSpace(candidate.Description)
		if candidate.Name == "" {
			continue
		}
		named = append(named, candidate)
	}
	if len(named) < types.MinCandidates {
		return RoomWithCandidates{}, validationErr("candidates", "at least 2 named candidates are required")
	}
	if len(named) > types.MaxCandidates {
		return RoomWithCandidates{}, validationErr("candidates", "at most 10 candidates are allowed")
	}

	owned, err := s.rooms.CountByOwner(ctx, ownerID)
	if err != nil {
		return RoomWithCandidates{}, err
	}
	if owned >= types.MaxRoomsPerUser {
		return RoomWithCandidates{}, ErrQuotaExceeded
	}

	room := types.VotingRoom{
		Title:       title,
		Description: strings.TrimSpace(description),
		CreatedBy:   ownerID,
	}
	room, named, err = s.rooms.Create(ctx, room, named)
	if err != nil {
		return RoomWithCandidates{}, err
	}
	return RoomWithCandidates{Room: room, Candidates: named}, nil
}

func (s *RoomService) Update(ctx context.Context, callerID string, room types.VotingRoom) (types.VotingRoom, error) {
	current, err := s.rooms.Get(ctx, room.ID)
	if err != nil {
		return types.VotingRoom{}, err
	}
	if current.CreatedBy != callerID {
		return types.VotingRoom{}, ErrPermission
	}

	room.Title = strings.TrimSpace(room.Title)
	if room.Title == "" {
		return types.VotingRoom{}, validationErr("title", "title is required")
	}
	room.Description = strings.TrimSpace(room.Description)
	return s.rooms.Update(ctx, room)
}

// Close transitions a room to closed. The transition is one-way; closing an
// already-closed room is a no-op.
func (s *RoomService) Close(ctx context.Context, callerID, roomID string) (types.VotingRoom, error) {
	current, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return types.VotingRoom{}, err
	}
	if current.CreatedBy != callerID {
		return types.VotingRoom{}, ErrPermission
	}
	if current.Status == types.RoomStatusClosed {
		return current, nil
	}
	return s.rooms.UpdateStatus(ctx, roomID, types.RoomStatusClosed)
}

func (s *RoomService) Delete(ctx context.Context, callerID, roomID string) error {
	current, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if current.CreatedBy != callerID {
		return ErrPermission
	}
	return s.rooms.Delete(ctx, roomID)
}

// AddCandidate appends a candidate to a room, respecting the upper bound.
func (s *RoomService) AddCandidate(ctx context.Context, callerID, roomID string, candidate types.Candidate) (types.Candidate, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return types.Candidate{}, err
	}
	if room.CreatedBy != callerID {
		return types.Candidate{}, ErrPermission
	}

	candidate.Name = strings.TrimSpace(candidate.Name)
	if candidate.Name == "" {
		return types.Candidate{}, validationErr("name", "name is required")
	}

	count, err := s.candidates.CountByRoom(ctx, roomID)
	if err != nil {
		return types.Candidate{}, err
	}
	if count >= types.MaxCandidates {
		return types.Candidate{}, validationErr("candidates", "at most 10 candidates are allowed")
	}

	candidate.RoomID = roomID
	return s.candidates.Create(ctx, candidate)
}

func (s *RoomService) UpdateCandidate(ctx context.Context, callerID, roomID string, candidate types.Candidate) (types.Candidate, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return types.Candidate{}, err
	}
	if room.CreatedBy != callerID {
		return types.Candidate{}, ErrPermission
	}

	candidate.Name = strings.TrimSpace(candidate.Name)
	if candidate.Name == "" {
		return types.Candidate{}, validationErr("name", "name is required")
	}
	candidate.RoomID = roomID
	return s.candidates.Update(ctx, candidate)
}

// RemoveCandidate deletes a candidate, keeping the room above the minimum.
func (s *RoomService) RemoveCandidate(ctx context.Context, callerID, roomID, candidateID string) error {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != callerID {
		return ErrPermission
	}

	count, err := s.candidates.CountByRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if count <= types.MinCandidates {
		return validationErr("candidates", "a room must keep at least 2 candidates")
	}
	return s.candidates.Delete(ctx, candidateID, roomID)
}

// SetCandidateImage records the uploaded image URL for a candidate.
func (s *RoomService) SetCandidateImage(ctx context.Context, callerID, roomID, candidateID, imageURL string) error {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != callerID {
		return ErrPermission
	}
	return s.candidates.UpdateImageURL(ctx, candidateID, roomID, imageURL)
}
