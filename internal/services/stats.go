package services

import (
	"context"

	"github.com/votehall/apiserver/types"
)

// StatsService builds the admin dashboard aggregates: per-room vote counts
// plus the active/closed room split.
type StatsService struct {
	rooms RoomRepository
	votes VoteRepository
	users UserRepository
}

func NewStatsService(rooms RoomRepository, votes VoteRepository, users UserRepository) *StatsService {
	return &StatsService{rooms: rooms, votes: votes, users: users}
}

func (s *StatsService) Overview(ctx context.Context) (types.Stats, error) {
	rooms, _, err := s.rooms.List(ctx, 0, 100)
	if err != nil {
		return types.Stats{}, err
	}

	roomStats := make([]types.RoomStats, 0, len(rooms))
	for _, room := range rooms {
		votes, err := s.votes.CountByRoom(ctx, room.ID)
		if err != nil {
			return types.Stats{}, err
		}
		roomStats = append(roomStats, types.RoomStats{
			RoomID: room.ID,
			Title:  room.Title,
			Votes:  votes,
		})
	}

	active, err := s.rooms.CountByStatus(ctx, types.RoomStatusActive)
	if err != nil {
		return types.Stats{}, err
	}
	closed, err := s.rooms.CountByStatus(ctx, types.RoomStatusClosed)
	if err != nil {
		return types.Stats{}, err
	}
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return types.Stats{}, err
	}
	totalVotes, err := s.votes.Count(ctx)
	if err != nil {
		return types.Stats{}, err
	}

	return types.Stats{
		Rooms:       roomStats,
		ActiveRooms: active,
		ClosedRooms: closed,
		TotalUsers:  totalUsers,
		TotalVotes:  totalVotes,
	}, nil
}
