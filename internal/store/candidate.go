package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/votehall/apiserver/types"
)

// CandidateRepository handles persistence for candidates.
type CandidateRepository struct {
	db *sql.DB
}

func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

const candidateColumns = `id, room_id, name, description, COALESCE(image_url, ''), vote_count, created_at`

func scanCandidate(row interface{ Scan(...any) error }) (types.Candidate, error) {
	var candidate types.Candidate
	err := row.Scan(
		&candidate.ID,
		&candidate.RoomID,
		&candidate.Name,
		&candidate.Description,
		&candidate.ImageURL,
		&candidate.VoteCount,
		&candidate.CreatedAt,
	)
	return candidate, err
}

func (r *CandidateRepository) Get(ctx context.Context, id string) (types.Candidate, error) {
	const query = `
		SELECT ` + candidateColumns + `
		FROM candidates
		WHERE id = $1`
	candidate, err := scanCandidate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Candidate{}, ErrNotFound
		}
		return types.Candidate{}, err
	}
	return candidate, nil
}

// ListByRoom returns a room's candidates ordered by creation time. That
// order is the tally tie-break, so every reader goes through here.
func (r *CandidateRepository) ListByRoom(ctx context.Context, roomID string) ([]types.Candidate, error) {
	const query = `
		SELECT ` + candidateColumns + `
		FROM candidates
		WHERE room_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := make([]types.Candidate, 0)
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (r *CandidateRepository) CountByRoom(ctx context.Context, roomID string) (int, error) {
	const query = `SELECT COUNT(1) FROM candidates WHERE room_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, query, roomID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *CandidateRepository) Create(ctx context.Context, candidate types.Candidate) (types.Candidate, error) {
	candidate.ID = uuid.NewString()
	candidate.VoteCount = 0
	candidate.CreatedAt = time.Now()

	const query = `
		INSERT INTO candidates (id, room_id, name, description, image_url, vote_count, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), 0, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		candidate.ID,
		candidate.RoomID,
		candidate.Name,
		candidate.Description,
		candidate.ImageURL,
		candidate.CreatedAt,
	); err != nil {
		return types.Candidate{}, err
	}
	return candidate, nil
}

func (r *CandidateRepository) Update(ctx context.Context, candidate types.Candidate) (types.Candidate, error) {
	const query = `
		UPDATE candidates
		SET name = $1,
			description = $2,
			image_url = NULLIF($3, '')
		WHERE id = $4 AND room_id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		candidate.Name,
		candidate.Description,
		candidate.ImageURL,
		candidate.ID,
		candidate.RoomID,
	)
	if err != nil {
		return types.Candidate{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Candidate{}, err
	}
	if affected == 0 {
		return types.Candidate{}, ErrNotFound
	}
	return r.Get(ctx, candidate.ID)
}

func (r *CandidateRepository) UpdateImageURL(ctx context.Context, id, roomID, imageURL string) error {
	const query = `
		UPDATE candidates
		SET image_url = $1
		WHERE id = $2 AND room_id = $3`
	result, err := r.db.ExecContext(ctx, query, imageURL, id, roomID)
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

func (r *CandidateRepository) Delete(ctx context.Context, id, roomID string) error {
	const query = `DELETE FROM candidates WHERE id = $1 AND room_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, roomID)
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
