package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/votehall/apiserver/types"
)

// VoteRepository handles the append-only votes ledger.
type VoteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Create appends one vote and bumps the candidate's cached counter in the
// same transaction. The UNIQUE (room_id, voter_id) constraint is the real
// double-vote guard: a violation surfaces as ErrDuplicate and the whole
// transaction rolls back, so there is never a counter bump without a row.
func (r *VoteRepository) Create(ctx context.Context, vote types.Vote) (types.Vote, error) {
	vote.ID = uuid.NewString()
	vote.CreatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Vote{}, err
	}
	defer tx.Rollback()

	const insertQuery = `
		INSERT INTO votes (id, room_id, candidate_id, voter_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(
		ctx,
		insertQuery,
		vote.ID,
		vote.RoomID,
		vote.CandidateID,
		vote.VoterID,
		vote.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.Vote{}, ErrDuplicate
		}
		return types.Vote{}, err
	}

	const bumpQuery = `
		UPDATE candidates
		SET vote_count = vote_count + 1
		WHERE id = $1 AND room_id = $2`
	if _, err := tx.ExecContext(ctx, bumpQuery, vote.CandidateID, vote.RoomID); err != nil {
		return types.Vote{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Vote{}, err
	}
	return vote, nil
}

// HasVoted reports whether a vote row exists for the (room, voter) pair.
func (r *VoteRepository) HasVoted(ctx context.Context, roomID, voterID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM votes WHERE room_id = $1 AND voter_id = $2
		)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, roomID, voterID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// GetByVoter returns the voter's vote in a room, if any.
func (r *VoteRepository) GetByVoter(ctx context.Context, roomID, voterID string) (types.Vote, error) {
	const query = `
		SELECT id, room_id, candidate_id, voter_id, created_at
		FROM votes
		WHERE room_id = $1 AND voter_id = $2`
	var vote types.Vote
	err := r.db.QueryRowContext(ctx, query, roomID, voterID).Scan(
		&vote.ID,
		&vote.RoomID,
		&vote.CandidateID,
		&vote.VoterID,
		&vote.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.Vote{}, ErrNotFound
		}
		return types.Vote{}, err
	}
	return vote, nil
}

// CountByCandidate recounts a room's ledger grouped by candidate. This is
// the authoritative tally source; candidates.vote_count is never read here.
func (r *VoteRepository) CountByCandidate(ctx context.Context, roomID string) (map[string]int, error) {
	const query = `
		SELECT candidate_id, COUNT(1)
		FROM votes
		WHERE room_id = $1
		GROUP BY candidate_id`
	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var candidateID string
		var count int
		if err := rows.Scan(&candidateID, &count); err != nil {
			return nil, err
		}
		counts[candidateID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *VoteRepository) CountByRoom(ctx context.Context, roomID string) (int, error) {
	const query = `SELECT COUNT(1) FROM votes WHERE room_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, query, roomID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *VoteRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM votes`
	var total int
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
