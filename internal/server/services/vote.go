package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pollkeeper/internal/common"
	"github.com/dmitrijs2005/pollkeeper/internal/dbx"
	"github.com/dmitrijs2005/pollkeeper/internal/logging"
	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
	"github.com/dmitrijs2005/pollkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pollkeeper/internal/server/validation"
)

// VoteService enforces the voting rules: poll votability, option membership,
// vote-replacement semantics and the statistics aggregation.
type VoteService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

// NewVoteService constructs a VoteService over the given DB handle and
// repository manager.
func NewVoteService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *VoteService {
	return &VoteService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "vote_service"),
	}
}

// SubmitVote records the voter's selection on a poll. The poll must be active
// and unexpired, the submission must satisfy the poll's multiple-votes flag,
// and every option id must belong to the poll. A re-vote replaces the voter's
// earlier rows for this poll; the delete is scoped to (poll, voter) so other
// voters' rows are never touched, and delete+insert run in one transaction.
func (s *VoteService) SubmitVote(ctx context.Context, pollID string, voterID string, optionIDs []string, meta models.VoteMeta) error {
	v := validation.NewResult()
	v.Merge(validation.PollID(pollID))
	v.Merge(validation.UserID(voterID))
	if err := v.Err(); err != nil {
		return err
	}

	poll, err := s.repomanager.Polls(s.db).GetWithOptions(ctx, pollID)
	if err != nil {
		return err
	}

	now := timeNow()
	if !poll.Poll.IsActive {
		return common.ErrPollInactive
	}
	if poll.Poll.IsExpired(now) {
		return common.ErrPollExpired
	}

	if err := validation.VoteSubmission(optionIDs, poll.Poll.AllowMultipleVotes).Err(); err != nil {
		return err
	}

	known := make(map[string]struct{}, len(poll.Options))
	for _, opt := range poll.Options {
		known[opt.ID] = struct{}{}
	}
	var invalid []string
	for _, id := range optionIDs {
		if _, ok := known[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", common.ErrInvalidOption, strings.Join(invalid, ", "))
	}

	var ip, ua *string
	if meta.IPAddress != "" {
		ip = &meta.IPAddress
	}
	if meta.UserAgent != "" {
		ua = &meta.UserAgent
	}

	rows := make([]*models.Vote, 0, len(optionIDs))
	for _, optionID := range optionIDs {
		voter := voterID
		rows = append(rows, &models.Vote{
			PollID:    pollID,
			OptionID:  optionID,
			VoterID:   &voter,
			IPAddress: ip,
			UserAgent: ua,
		})
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Votes(tx)
		if err := repo.DeleteByPollAndVoter(ctx, pollID, voterID); err != nil {
			return err
		}
		return repo.InsertMany(ctx, rows)
	})
	if err != nil {
		s.logger.Error(ctx, "vote submission failed", "poll_id", pollID, "error", err)
		return fmt.Errorf("error submitting vote: %w", err)
	}

	s.logger.Info(ctx, "vote submitted", "poll_id", pollID, "options", len(optionIDs))
	return nil
}

// GetUserVote returns whether the voter has any recorded vote on the poll
// and which option ids. The poll itself must be visible to the voter: an
// inactive poll owned by someone else reads as common.ErrorNotFound.
func (s *VoteService) GetUserVote(ctx context.Context, pollID string, voterID string) (*models.UserVote, error) {
	v := validation.NewResult()
	v.Merge(validation.PollID(pollID))
	v.Merge(validation.UserID(voterID))
	if err := v.Err(); err != nil {
		return nil, err
	}

	poll, err := s.repomanager.Polls(s.db).GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.IsActive && poll.CreatorID != voterID {
		return nil, common.ErrorNotFound
	}

	repo := s.repomanager.Votes(s.db)
	optionIDs, err := repo.GetVoterOptionIDs(ctx, pollID, voterID)
	if err != nil {
		return nil, err
	}
	return &models.UserVote{HasVoted: len(optionIDs) > 0, OptionIDs: optionIDs}, nil
}

// GetStatistics aggregates vote counts for a poll in a single pass over the
// vote rows grouped by option id. Percentages are 0 when there are no votes.
// Statistics follow the poll's visibility: inactive polls report to their
// owner only, everyone else gets common.ErrorNotFound.
func (s *VoteService) GetStatistics(ctx context.Context, pollID string, requesterID string) (*models.PollStatistics, error) {
	if err := validation.PollID(pollID).Err(); err != nil {
		return nil, err
	}

	poll, err := s.repomanager.Polls(s.db).GetWithOptions(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.Poll.IsActive && poll.Poll.CreatorID != requesterID {
		return nil, common.ErrorNotFound
	}

	repo := s.repomanager.Votes(s.db)
	voteOptionIDs, err := repo.OptionIDsForPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	uniqueVoters, err := repo.UniqueVoterCount(ctx, pollID)
	if err != nil {
		return nil, err
	}

	byOption := make(map[string]int64, len(poll.Options))
	for _, id := range voteOptionIDs {
		byOption[id]++
	}
	totalVotes := int64(len(voteOptionIDs))

	stats := &models.PollStatistics{
		PollID:       pollID,
		TotalVotes:   totalVotes,
		UniqueVoters: uniqueVoters,
		OptionStats:  make([]models.OptionStats, 0, len(poll.Options)),
	}
	for _, opt := range poll.Options {
		votes := byOption[opt.ID]
		var percentage float64
		if totalVotes > 0 {
			percentage = float64(votes) / float64(totalVotes) * 100
		}
		stats.OptionStats = append(stats.OptionStats, models.OptionStats{
			OptionID:   opt.ID,
			Text:       opt.Text,
			Votes:      votes,
			Percentage: percentage,
		})
	}

	return stats, nil
}

// GetVoterHistory lists every poll the voter has voted on together with the
// selected option ids, most recently voted poll first.
func (s *VoteService) GetVoterHistory(ctx context.Context, voterID string) ([]models.VoterPollSelection, error) {
	if err := validation.UserID(voterID).Err(); err != nil {
		return nil, err
	}

	rows, err := s.repomanager.Votes(s.db).FindByVoter(ctx, voterID)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	history := make([]models.VoterPollSelection, 0)
	for _, vote := range rows {
		i, ok := index[vote.PollID]
		if !ok {
			i = len(history)
			index[vote.PollID] = i
			history = append(history, models.VoterPollSelection{PollID: vote.PollID})
		}
		history[i].OptionIDs = append(history[i].OptionIDs, vote.OptionID)
	}
	return history, nil
}
