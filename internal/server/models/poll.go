package models

import "time"

// Poll is a question with a fixed set of options open for voting.
// IsActive is the owner-controlled flag; expiry is derived at read time
// from ExpiresAt, it is never persisted as a status.
type Poll struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	CreatorID          string     `json:"creator_id"`
	IsActive           bool       `json:"is_active"`
	AllowMultipleVotes bool       `json:"allow_multiple_votes"`
	IsAnonymous        bool       `json:"is_anonymous"`
	TotalVotes         int64      `json:"total_votes"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsExpired reports whether the poll's expiration timestamp has passed.
func (p *Poll) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// IsVotable reports whether votes may be submitted: active and not expired.
func (p *Poll) IsVotable(now time.Time) bool {
	return p.IsActive && !p.IsExpired(now)
}

// PollOption is one selectable answer belonging to exactly one poll.
// The option set is immutable after poll creation.
type PollOption struct {
	ID         string    `json:"id"`
	PollID     string    `json:"poll_id"`
	Text       string    `json:"text"`
	VotesCount int64     `json:"votes_count"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

type PollWithOptions struct {
	Poll    Poll         `json:"poll"`
	Options []PollOption `json:"options"`
}

// CreatePollRequest is the payload for POST /polls.
type CreatePollRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Options            []string `json:"options"`
	ExpiresAt          *string  `json:"expires_at"`
	AllowMultipleVotes bool     `json:"allow_multiple_votes"`
	IsAnonymous        bool     `json:"is_anonymous"`
}

// UpdatePollRequest carries the mutable poll fields for PUT /polls/{id}.
// Nil pointers mean "leave unchanged"; options can never be altered.
type UpdatePollRequest struct {
	Title              *string `json:"title"`
	Description        *string `json:"description"`
	ExpiresAt          *string `json:"expires_at"`
	AllowMultipleVotes *bool   `json:"allow_multiple_votes"`
	IsAnonymous        *bool   `json:"is_anonymous"`
	IsActive           *bool   `json:"is_active"`
}

// PollFilter narrows poll listings.
type PollFilter struct {
	// Status is "", "active" or "expired".
	Status string
	// Search is a case-insensitive title substring.
	Search string
}

// Page describes offset pagination; page numbers start at 1.
type Page struct {
	Number int
	Limit  int
}

// Offset returns (page-1)*limit, clamped to non-negative.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}
