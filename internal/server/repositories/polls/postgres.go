// Package polls provides a PostgreSQL-backed repository for polls and their
// immutable option sets.
package polls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pollkeeper/internal/common"
	"github.com/dmitrijs2005/pollkeeper/internal/dbx"
	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
)

const pollColumns = `id, title, description, creator_id, is_active, allow_multiple_votes,
		is_anonymous, total_votes, expires_at, created_at, updated_at`

// PostgresRepository implements poll storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a poll row and returns it with generated id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	query := `
		INSERT INTO polls (title, description, creator_id, is_active, allow_multiple_votes, is_anonymous, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		poll.Title, poll.Description, poll.CreatorID, poll.IsActive,
		poll.AllowMultipleVotes, poll.IsAnonymous, poll.ExpiresAt,
	).Scan(&poll.ID, &poll.CreatedAt, &poll.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return poll, nil
}

// CreateOptions inserts one option row per text, preserving submission order
// through the position column, and returns the created options.
func (r *PostgresRepository) CreateOptions(ctx context.Context, pollID string, texts []string) ([]models.PollOption, error) {
	query := `
		INSERT INTO poll_options (poll_id, text, position)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	options := make([]models.PollOption, 0, len(texts))
	for i, text := range texts {
		opt := models.PollOption{PollID: pollID, Text: text, Position: i}
		if err := r.db.QueryRowContext(ctx, query, pollID, text, i).Scan(&opt.ID, &opt.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		options = append(options, opt)
	}
	return options, nil
}

// GetByID returns a single poll row. If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`
	poll := &models.Poll{}
	if err := r.scanPoll(r.db.QueryRowContext(ctx, query, id), poll); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return poll, nil
}

// GetWithOptions returns a poll and its options ordered by position.
// If the poll does not exist, it returns common.ErrorNotFound.
func (r *PostgresRepository) GetWithOptions(ctx context.Context, id string) (*models.PollWithOptions, error) {
	poll, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	options, err := r.optionsForPolls(ctx, []string{poll.ID})
	if err != nil {
		return nil, err
	}

	return &models.PollWithOptions{Poll: *poll, Options: options[poll.ID]}, nil
}

// FindByOwner lists the owner's polls newest-first with filters and pagination.
func (r *PostgresRepository) FindByOwner(ctx context.Context, ownerID string, filter models.PollFilter, page models.Page) ([]*models.PollWithOptions, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + pollColumns + ` FROM polls WHERE creator_id = $1`)
	args := []any{ownerID}

	switch filter.Status {
	case "active":
		b.WriteString(` AND is_active AND (expires_at IS NULL OR expires_at > now())`)
	case "expired":
		b.WriteString(` AND expires_at IS NOT NULL AND expires_at <= now()`)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		fmt.Fprintf(&b, ` AND title ILIKE $%d`, len(args))
	}

	args = append(args, page.Limit, page.Offset())
	fmt.Fprintf(&b, ` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryPollsWithOptions(ctx, b.String(), args...)
}

// FindActive lists currently active, non-expired polls newest-first.
func (r *PostgresRepository) FindActive(ctx context.Context, filter models.PollFilter, page models.Page) ([]*models.PollWithOptions, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + pollColumns + ` FROM polls
		WHERE is_active AND (expires_at IS NULL OR expires_at > now())`)
	var args []any

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		fmt.Fprintf(&b, ` AND title ILIKE $%d`, len(args))
	}

	args = append(args, page.Limit, page.Offset())
	fmt.Fprintf(&b, ` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryPollsWithOptions(ctx, b.String(), args...)
}

// Update persists the mutable poll fields and refreshes updated_at.
// Option rows are never touched here.
func (r *PostgresRepository) Update(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	query := `
		UPDATE polls
		SET title = $1, description = $2, expires_at = $3, allow_multiple_votes = $4,
			is_anonymous = $5, is_active = $6, updated_at = now()
		WHERE id = $7
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		poll.Title, poll.Description, poll.ExpiresAt, poll.AllowMultipleVotes,
		poll.IsAnonymous, poll.IsActive, poll.ID,
	).Scan(&poll.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return poll, nil
}

// UpdateActiveFlag sets is_active without touching other fields.
func (r *PostgresRepository) UpdateActiveFlag(ctx context.Context, id string, isActive bool) error {
	query := `
		UPDATE polls
		SET is_active = $1, updated_at = now()
		WHERE id = $2
	`
	res, err := r.db.ExecContext(ctx, query, isActive, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Delete removes a poll; options and votes go with it via ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM polls WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// IsOwner reports whether userID created the poll.
// If the poll does not exist, it returns common.ErrorNotFound.
func (r *PostgresRepository) IsOwner(ctx context.Context, id string, userID string) (bool, error) {
	query := `SELECT creator_id FROM polls WHERE id = $1`
	var creatorID string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&creatorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrorNotFound
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return creatorID == userID, nil
}

// RecordView inserts a poll view row. Analytics only.
func (r *PostgresRepository) RecordView(ctx context.Context, pollID string, viewerID *string) error {
	query := `
		INSERT INTO poll_views (poll_id, viewer_id)
		VALUES ($1, $2)
	`
	if _, err := r.db.ExecContext(ctx, query, pollID, viewerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// --- helpers below ---

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanPoll(row rowScanner, poll *models.Poll) error {
	return row.Scan(
		&poll.ID, &poll.Title, &poll.Description, &poll.CreatorID, &poll.IsActive,
		&poll.AllowMultipleVotes, &poll.IsAnonymous, &poll.TotalVotes,
		&poll.ExpiresAt, &poll.CreatedAt, &poll.UpdatedAt,
	)
}

func (r *PostgresRepository) queryPollsWithOptions(ctx context.Context, query string, args ...any) ([]*models.PollWithOptions, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PollWithOptions
	var ids []string
	for rows.Next() {
		var poll models.Poll
		if err := r.scanPoll(rows, &poll); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, &models.PollWithOptions{Poll: poll})
		ids = append(ids, poll.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(ids) == 0 {
		return result, nil
	}

	options, err := r.optionsForPolls(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range result {
		p.Options = options[p.Poll.ID]
	}
	return result, nil
}

func (r *PostgresRepository) optionsForPolls(ctx context.Context, pollIDs []string) (map[string][]models.PollOption, error) {
	query := `
		SELECT id, poll_id, text, votes_count, position, created_at
		FROM poll_options
		WHERE poll_id = ANY($1)
		ORDER BY poll_id, position
	`
	rows, err := r.db.QueryContext(ctx, query, pollIDs)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	options := make(map[string][]models.PollOption, len(pollIDs))
	for rows.Next() {
		var opt models.PollOption
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Text, &opt.VotesCount, &opt.Position, &opt.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		options[opt.PollID] = append(options[opt.PollID], opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return options, nil
}
