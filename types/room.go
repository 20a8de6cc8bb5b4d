package types

import "time"

// Voting room lifecycle states. Transitions are one-way: active -> closed.
const (
	RoomStatusActive = "active"
	RoomStatusClosed = "closed"
)

// Limits applied when creating or editing rooms. The votes ledger and the
// room service both assume these hold.
const (
	MaxRoomsPerUser = 3
	MinCandidates   = 2
	MaxCandidates   = 10
)

// VotingRoom represents a named, ownable collection of candidates open for
// one-vote-per-person balloting.
type VotingRoom struct {
	// ID is the unique identifier of the room.
	ID string `json:"id" db:"id"`

	// Title is the human-readable name of the room.
	Title string `json:"title" db:"title"`

	// Description is an optional longer explanation shown to voters.
	Description string `json:"description" db:"description"`

	// CreatedBy is the identifier of the owning user.
	CreatedBy string `json:"created_by" db:"created_by"`

	// Status is either "active" (accepting votes) or "closed".
	Status string `json:"status" db:"status"`

	// CreatedAt is the timestamp at which the room was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the room.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Candidate represents an option within a voting room that can receive votes.
type Candidate struct {
	// ID is the unique identifier of the candidate.
	ID string `json:"id" db:"id"`

	// RoomID is the identifier of the parent room.
	RoomID string `json:"room_id" db:"room_id"`

	// Name is the candidate's display name.
	Name string `json:"name" db:"name"`

	// Description is an optional blurb about the candidate.
	Description string `json:"description" db:"description"`

	// ImageURL points at the candidate's image in object storage, if one
	// has been uploaded.
	ImageURL string `json:"image_url,omitempty" db:"image_url"`

	// VoteCount is a denormalized counter maintained alongside vote
	// inserts. It is a read-performance cache; tallies served to clients
	// are always recounted from the votes ledger.
	VoteCount int `json:"vote_count" db:"vote_count"`

	// CreatedAt orders candidates within a room and breaks tally ties.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
