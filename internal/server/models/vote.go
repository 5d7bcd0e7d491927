package models

import "time"

// Vote is a voter's selection of a single option on a poll. A submission
// with several options on a multi-vote poll produces one row per option.
type Vote struct {
	ID        string    `json:"id"`
	PollID    string    `json:"poll_id"`
	OptionID  string    `json:"option_id"`
	VoterID   *string   `json:"voter_id,omitempty"`
	IPAddress *string   `json:"-"`
	UserAgent *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteMeta carries transport-level details recorded alongside a vote.
type VoteMeta struct {
	IPAddress string
	UserAgent string
}

// SubmitVoteRequest is the payload for POST /polls/{id}/vote.
type SubmitVoteRequest struct {
	OptionIDs []string `json:"option_ids"`
}

// VoterPollSelection groups one poll's worth of a voter's recorded option
// ids; GET /votes/me returns a slice of these.
type VoterPollSelection struct {
	PollID    string   `json:"poll_id"`
	OptionIDs []string `json:"option_ids"`
}

// UserVote describes the caller's recorded vote state on one poll.
type UserVote struct {
	HasVoted  bool     `json:"has_voted"`
	OptionIDs []string `json:"option_ids"`
}

// OptionStats is the per-option slice of a poll's statistics.
type OptionStats struct {
	OptionID   string  `json:"option_id"`
	Text       string  `json:"text"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// PollStatistics aggregates vote counts for one poll.
type PollStatistics struct {
	PollID       string        `json:"poll_id"`
	TotalVotes   int64         `json:"total_votes"`
	UniqueVoters int64         `json:"unique_voters"`
	OptionStats  []OptionStats `json:"option_stats"`
}

// PollView records a single poll page view. Analytics only; nothing in the
// voting flow reads these rows.
type PollView struct {
	ID        string
	PollID    string
	ViewerID  *string
	CreatedAt time.Time
}
