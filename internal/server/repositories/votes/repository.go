package votes

import (
	"context"

	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
)

type Repository interface {
	InsertMany(ctx context.Context, votes []*models.Vote) error
	DeleteByPollAndVoter(ctx context.Context, pollID string, voterID string) error
	GetVoterOptionIDs(ctx context.Context, pollID string, voterID string) ([]string, error)
	FindByVoter(ctx context.Context, voterID string) ([]*models.Vote, error)
	HasVoted(ctx context.Context, pollID string, voterID string) (bool, error)
	CountForPoll(ctx context.Context, pollID string) (int64, error)
	UniqueVoterCount(ctx context.Context, pollID string) (int64, error)
	OptionIDsForPoll(ctx context.Context, pollID string) ([]string, error)
}
