package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 1000
	maxOptionLength      = 200
	minOptionCount       = 2
	maxOptionCount       = 10
	maxExpirationDays    = 365
)

// RFC 4122 canonical form: 8-4-4-4-12 hex with version and variant nibbles.
var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// Title checks that a poll title is present, non-blank and at most 200
// characters after trimming.
func Title(title string) *Result {
	r := NewResult()
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		r.Add("title", "title is required")
		return r
	}
	if len(trimmed) > maxTitleLength {
		r.Add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	return r
}

// Description checks an optional description; only its trimmed length is
// constrained.
func Description(description string) *Result {
	r := NewResult()
	if len(strings.TrimSpace(description)) > maxDescriptionLength {
		r.Add("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	return r
}

// Options checks the option list: after trimming and dropping empties there
// must be 2..10 entries, no case-insensitive duplicates, and each entry at
// most 200 characters. One message is reported per offending option, plus
// aggregate count/duplicate messages.
func Options(options []string) *Result {
	r := NewResult()

	seen := make(map[string]struct{}, len(options))
	var valid int
	for i, opt := range options {
		trimmed := strings.TrimSpace(opt)
		field := fmt.Sprintf("options[%d]", i)
		if trimmed == "" {
			r.Add(field, "option must not be empty")
			continue
		}
		if len(trimmed) > maxOptionLength {
			r.Add(field, fmt.Sprintf("option must be at most %d characters", maxOptionLength))
			continue
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			r.Add(field, "duplicate option")
			continue
		}
		seen[key] = struct{}{}
		valid++
	}

	if valid < minOptionCount {
		r.Add("options", fmt.Sprintf("poll must have at least %d options", minOptionCount))
	}
	if valid > maxOptionCount {
		r.Add("options", fmt.Sprintf("poll must have at most %d options", maxOptionCount))
	}

	return r
}

// ExpirationDate checks an optional expiration timestamp: it must be strictly
// in the future and no more than a year away.
func ExpirationDate(expiresAt time.Time, now time.Time) *Result {
	r := NewResult()
	if !expiresAt.After(now) {
		r.Add("expires_at", "expiration date must be in the future")
		return r
	}
	if expiresAt.After(now.AddDate(0, 0, maxExpirationDays)) {
		r.Add("expires_at", "expiration date must not be more than 1 year from now")
	}
	return r
}

// PollID checks that id is a canonically shaped UUID.
func PollID(id string) *Result {
	return uuidField("poll_id", id)
}

// UserID checks that id is a canonically shaped UUID.
func UserID(id string) *Result {
	return uuidField("user_id", id)
}

func uuidField(field, id string) *Result {
	r := NewResult()
	if id == "" {
		r.Add(field, field+" is required")
		return r
	}
	if !uuidRe.MatchString(id) {
		r.Add(field, field+" must be a valid UUID")
	}
	return r
}
