package validation

import "fmt"

// VoteSubmission checks the option id list of a vote: it must be non-empty,
// free of duplicates, contain a single id unless the poll allows multiple
// votes, and every id must be a canonically shaped UUID.
func VoteSubmission(optionIDs []string, allowMultiple bool) *Result {
	r := NewResult()

	if len(optionIDs) == 0 {
		r.Add("option_ids", "at least one option must be selected")
		return r
	}
	if !allowMultiple && len(optionIDs) > 1 {
		r.Add("option_ids", "this poll allows only one option per vote")
	}

	seen := make(map[string]struct{}, len(optionIDs))
	for i, id := range optionIDs {
		field := fmt.Sprintf("option_ids[%d]", i)
		if !uuidRe.MatchString(id) {
			r.Add(field, "option id must be a valid UUID")
			continue
		}
		if _, dup := seen[id]; dup {
			r.Add(field, "duplicate option id")
			continue
		}
		seen[id] = struct{}{}
	}

	return r
}
