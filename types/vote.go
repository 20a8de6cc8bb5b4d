package types

import "time"

// Vote is an immutable record linking one voter to one candidate within one
// room. Rows are never updated or deleted by normal operation; the
// (room_id, voter_id) pair is unique at the database level.
type Vote struct {
	ID          string    `json:"id" db:"id"`
	RoomID      string    `json:"room_id" db:"room_id"`
	CandidateID string    `json:"candidate_id" db:"candidate_id"`
	VoterID     string    `json:"voter_id" db:"voter_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TallyEntry is one candidate's share of a room's votes, recomputed from the
// ledger. Percentage is display-only and never persisted.
type TallyEntry struct {
	Candidate  Candidate `json:"candidate"`
	Votes      int       `json:"votes"`
	Percentage float64   `json:"percentage"`
}

// RoomResults is the full tally snapshot for a room.
type RoomResults struct {
	Room       VotingRoom   `json:"room"`
	Entries    []TallyEntry `json:"entries"`
	TotalVotes int          `json:"total_votes"`

	// LeadingCandidateID is the id of the candidate with the highest vote
	// count; ties go to the earliest-created candidate. Empty when the room
	// has no candidates.
	LeadingCandidateID string `json:"leading_candidate_id,omitempty"`
}

// RoomStats is one row of the admin statistics view.
type RoomStats struct {
	RoomID string `json:"room_id"`
	Title  string `json:"title"`
	Votes  int    `json:"votes"`
}

// Stats aggregates the numbers shown on the admin dashboard.
type Stats struct {
	Rooms       []RoomStats `json:"rooms"`
	ActiveRooms int         `json:"active_rooms"`
	ClosedRooms int         `json:"closed_rooms"`
	TotalUsers  int         `json:"total_users"`
	TotalVotes  int         `json:"total_votes"`
}
