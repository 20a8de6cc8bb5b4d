package services

import (
	"math"

	"github.com/votehall/apiserver/types"
)

// ComputeTally derives per-candidate counts and percentages from a ledger
// recount. It is a pure function: live-channel redeliveries simply run it
// again over fresh counts, so at-least-once and out-of-order delivery are
// harmless.
//
// Candidates must arrive in creation order; the leading candidate is the
// highest count with ties broken by that order, which keeps the result
// deterministic when counts tie.
func ComputeTally(room types.VotingRoom, candidates []types.Candidate, counts map[string]int) types.RoomResults {
	total := 0
	for _, candidate := range candidates {
		total += counts[candidate.ID]
	}

	entries := make([]types.TallyEntry, 0, len(candidates))
	leadingID := ""
	leadingVotes := -1
	for _, candidate := range candidates {
		votes := counts[candidate.ID]
		percentage := 0.0
		if total > 0 {
			percentage = math.Round(float64(votes)/float64(total)*1000) / 10
		}
		entries = append(entries, types.TallyEntry{
			Candidate:  candidate,
			Votes:      votes,
			Percentage: percentage,
		})
		// Strictly greater: earlier-created candidates win ties.
		if votes > leadingVotes {
			leadingVotes = votes
			leadingID = candidate.ID
		}
	}

	return types.RoomResults{
		Room:               room,
		Entries:            entries,
		TotalVotes:         total,
		LeadingCandidateID: leadingID,
	}
}
