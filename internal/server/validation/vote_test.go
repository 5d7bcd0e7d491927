package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	optA = "11111111-1111-4111-8111-111111111111"
	optB = "22222222-2222-4222-9222-222222222222"
)

func TestVoteSubmission(t *testing.T) {
	tests := []struct {
		name          string
		optionIDs     []string
		allowMultiple bool
		valid         bool
	}{
		{"single option", []string{optA}, false, true},
		{"two options multi allowed", []string{optA, optB}, true, true},
		{"empty list", nil, false, false},
		{"two options single-vote poll", []string{optA, optB}, false, false},
		{"duplicate ids", []string{optA, optA}, true, false},
		{"malformed id", []string{"nope"}, false, false},
		{"one bad id among good", []string{optA, "nope"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, VoteSubmission(tt.optionIDs, tt.allowMultiple).Valid())
		})
	}
}

func TestVoteSubmission_CardinalityCheckedBeforeShape(t *testing.T) {
	// An empty submission reports only the aggregate error.
	r := VoteSubmission(nil, true)
	assert.False(t, r.Valid())
	assert.Len(t, r.Fields(), 1)
	assert.Contains(t, r.Fields(), "option_ids")
}
