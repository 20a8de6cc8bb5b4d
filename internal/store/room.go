package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/votehall/apiserver/types"
)

// RoomRepository handles persistence for voting rooms.
type RoomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `id, title, description, created_by, status, created_at, updated_at`

func scanRoom(row interface{ Scan(...any) error }) (types.VotingRoom, error) {
	var room types.VotingRoom
	err := row.Scan(
		&room.ID,
		&room.Title,
		&room.Description,
		&room.CreatedBy,
		&room.Status,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	return room, err
}

func (r *RoomRepository) Get(ctx context.Context, id string) (types.VotingRoom, error) {
	const query = `
		SELECT ` + roomColumns + `
		FROM voting_rooms
		WHERE id = $1`
	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.VotingRoom{}, ErrNotFound
		}
		return types.VotingRoom{}, err
	}
	return room, nil
}

func (r *RoomRepository) ListByOwner(ctx context.Context, ownerID string) ([]types.VotingRoom, error) {
	const query = `
		SELECT ` + roomColumns + `
		FROM voting_rooms
		WHERE created_by = $1
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]types.VotingRoom, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *RoomRepository) List(ctx context.Context, offset, limit int) ([]types.VotingRoom, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM voting_rooms`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + roomColumns + `
		FROM voting_rooms
		ORDER BY created_at
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	rooms := make([]types.VotingRoom, 0, limit)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, 0, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

func (r *RoomRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	const query = `SELECT COUNT(1) FROM voting_rooms WHERE created_by = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *RoomRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	const query = `SELECT COUNT(1) FROM voting_rooms WHERE status = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, query, status).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Create inserts the room and its initial candidates in one transaction.
func (r *RoomRepository) Create(ctx context.Context, room types.VotingRoom, candidates []types.Candidate) (types.VotingRoom, []types.Candidate, error) {
	now := time.Now()
	room.ID = uuid.NewString()
	room.Status = types.RoomStatusActive
	room.CreatedAt = now
	room.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.VotingRoom{}, nil, err
	}
	defer tx.Rollback()

	const roomQuery = `
		INSERT INTO voting_rooms (id, title, description, created_by, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(
		ctx,
		roomQuery,
		room.ID,
		room.Title,
		room.Description,
		room.CreatedBy,
		room.Status,
		room.CreatedAt,
		room.UpdatedAt,
	); err != nil {
		return types.VotingRoom{}, nil, err
	}

	const candidateQuery = `
		INSERT INTO candidates (id, room_id, name, description, image_url, vote_count, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), 0, $6)`
	for i := range candidates {
		candidates[i].ID = uuid.NewString()
		candidates[i].RoomID = room.ID
		candidates[i].VoteCount = 0
		// Nudge created_at so creation order is total even inside one tx.
		candidates[i].CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		if _, err := tx.ExecContext(
			ctx,
			candidateQuery,
			candidates[i].ID,
			candidates[i].RoomID,
			candidates[i].Name,
			candidates[i].Description,
			candidates[i].ImageURL,
			candidates[i].CreatedAt,
		); err != nil {
			return types.VotingRoom{}, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.VotingRoom{}, nil, err
	}
	return room, candidates, nil
}

func (r *RoomRepository) Update(ctx context.Context, room types.VotingRoom) (types.VotingRoom, error) {
	room.UpdatedAt = time.Now()

	const query = `
		UPDATE voting_rooms
		SET title = $1,
			description = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, room.Title, room.Description, room.UpdatedAt, room.ID)
	if err != nil {
		return types.VotingRoom{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.VotingRoom{}, err
	}
	if affected == 0 {
		return types.VotingRoom{}, ErrNotFound
	}
	return r.Get(ctx, room.ID)
}

func (r *RoomRepository) UpdateStatus(ctx context.Context, id, status string) (types.VotingRoom, error) {
	const query = `
		UPDATE voting_rooms
		SET status = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return types.VotingRoom{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.VotingRoom{}, err
	}
	if affected == 0 {
		return types.VotingRoom{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM voting_rooms WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
