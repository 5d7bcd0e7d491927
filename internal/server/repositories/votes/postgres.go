// Package votes provides a PostgreSQL-backed repository for vote rows and
// the aggregate queries behind poll statistics.
package votes

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pollkeeper/internal/dbx"
	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
)

// PostgresRepository implements vote storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertMany inserts one row per vote.
func (r *PostgresRepository) InsertMany(ctx context.Context, votes []*models.Vote) error {
	query := `
		INSERT INTO votes (poll_id, option_id, voter_id, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	for _, v := range votes {
		err := r.db.QueryRowContext(ctx, query,
			v.PollID, v.OptionID, v.VoterID, v.IPAddress, v.UserAgent).Scan(&v.ID, &v.CreatedAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// DeleteByPollAndVoter removes only the given voter's rows for the poll.
// Other voters' rows are untouched.
func (r *PostgresRepository) DeleteByPollAndVoter(ctx context.Context, pollID string, voterID string) error {
	query := `
		DELETE FROM votes
		WHERE poll_id = $1 AND voter_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, pollID, voterID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetVoterOptionIDs returns the option ids the voter has selected on the poll,
// oldest selection first.
func (r *PostgresRepository) GetVoterOptionIDs(ctx context.Context, pollID string, voterID string) ([]string, error) {
	query := `
		SELECT option_id
		FROM votes
		WHERE poll_id = $1 AND voter_id = $2
		ORDER BY created_at
	`
	return r.queryIDs(ctx, query, pollID, voterID)
}

// FindByVoter returns the voter's vote rows across every poll, newest first.
func (r *PostgresRepository) FindByVoter(ctx context.Context, voterID string) ([]*models.Vote, error) {
	query := `
		SELECT id, poll_id, option_id, created_at
		FROM votes
		WHERE voter_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, voterID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	voter := voterID
	var votes []*models.Vote
	for rows.Next() {
		v := &models.Vote{VoterID: &voter}
		if err := rows.Scan(&v.ID, &v.PollID, &v.OptionID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return votes, nil
}

// HasVoted reports whether the voter has any recorded vote on the poll.
func (r *PostgresRepository) HasVoted(ctx context.Context, pollID string, voterID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM votes WHERE poll_id = $1 AND voter_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, pollID, voterID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// CountForPoll returns the number of vote rows recorded for the poll.
func (r *PostgresRepository) CountForPoll(ctx context.Context, pollID string) (int64, error) {
	query := `SELECT COUNT(*) FROM votes WHERE poll_id = $1`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, pollID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// UniqueVoterCount returns the number of distinct non-anonymous voters.
func (r *PostgresRepository) UniqueVoterCount(ctx context.Context, pollID string) (int64, error) {
	query := `SELECT COUNT(DISTINCT voter_id) FROM votes WHERE poll_id = $1 AND voter_id IS NOT NULL`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, pollID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// OptionIDsForPoll returns one option id per vote row; the statistics pass
// groups them by option in memory.
func (r *PostgresRepository) OptionIDsForPoll(ctx context.Context, pollID string) ([]string, error) {
	query := `SELECT option_id FROM votes WHERE poll_id = $1`
	return r.queryIDs(ctx, query, pollID)
}

func (r *PostgresRepository) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}
