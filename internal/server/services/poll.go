package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/pollkeeper/internal/common"
	"github.com/dmitrijs2005/pollkeeper/internal/dbx"
	"github.com/dmitrijs2005/pollkeeper/internal/logging"
	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
	"github.com/dmitrijs2005/pollkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pollkeeper/internal/server/validation"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// timeNow is a seam for tests that exercise expiration logic.
var timeNow = time.Now

// PollService is the single place where business rules about polls are
// enforced, independent of transport.
type PollService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

// NewPollService constructs a PollService over the given DB handle and
// repository manager.
func NewPollService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *PollService {
	return &PollService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "poll_service"),
	}
}

// CreatePoll validates the request and creates the poll together with its
// option rows inside a single transaction, so a failed option insert leaves
// no orphaned poll behind.
func (s *PollService) CreatePoll(ctx context.Context, ownerID string, req models.CreatePollRequest) (*models.PollWithOptions, error) {
	now := timeNow()

	v := validation.NewResult()
	v.Merge(validation.UserID(ownerID))
	v.Merge(validation.Title(req.Title))
	v.Merge(validation.Description(req.Description))
	v.Merge(validation.Options(req.Options))

	expiresAt, expErr := parseExpiration(req.ExpiresAt)
	if expErr != nil {
		v.Add("expires_at", "expiration date must be a valid RFC 3339 timestamp")
	} else if expiresAt != nil {
		v.Merge(validation.ExpirationDate(*expiresAt, now))
	}

	if err := v.Err(); err != nil {
		return nil, err
	}

	options := make([]string, 0, len(req.Options))
	for _, opt := range req.Options {
		options = append(options, strings.TrimSpace(opt))
	}

	poll := &models.Poll{
		Title:              strings.TrimSpace(req.Title),
		Description:        strings.TrimSpace(req.Description),
		CreatorID:          ownerID,
		IsActive:           true,
		AllowMultipleVotes: req.AllowMultipleVotes,
		IsAnonymous:        req.IsAnonymous,
		ExpiresAt:          expiresAt,
	}

	var result *models.PollWithOptions
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Polls(tx)
		created, err := repo.Create(ctx, poll)
		if err != nil {
			return err
		}
		opts, err := repo.CreateOptions(ctx, created.ID, options)
		if err != nil {
			return err
		}
		result = &models.PollWithOptions{Poll: *created, Options: opts}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "poll creation failed", "error", err)
		return nil, fmt.Errorf("error creating poll: %w", err)
	}

	s.logger.Info(ctx, "poll created", "poll_id", result.Poll.ID, "creator_id", ownerID)
	return result, nil
}

// GetPoll returns a poll with its options eagerly loaded. Inactive polls are
// visible to their owner only; any other requester, anonymous included, gets
// common.ErrorNotFound just as for an absent poll.
func (s *PollService) GetPoll(ctx context.Context, id string, requesterID string) (*models.PollWithOptions, error) {
	if err := validation.PollID(id).Err(); err != nil {
		return nil, err
	}
	poll, err := s.repomanager.Polls(s.db).GetWithOptions(ctx, id)
	if err != nil {
		return nil, err
	}
	if !poll.Poll.IsActive && poll.Poll.CreatorID != requesterID {
		return nil, common.ErrorNotFound
	}
	return poll, nil
}

// RecordView stores a poll view event. Failures are logged, never surfaced;
// nothing in the voting flow depends on view rows.
func (s *PollService) RecordView(ctx context.Context, pollID string, viewerID *string) {
	if err := s.repomanager.Polls(s.db).RecordView(ctx, pollID, viewerID); err != nil {
		s.logger.Warn(ctx, "failed to record poll view", "poll_id", pollID, "error", err)
	}
}

// UpdatePoll applies the mutable poll fields after an ownership check.
// Only fields present in the request are validated and applied; the option
// set can never be altered through this path.
func (s *PollService) UpdatePoll(ctx context.Context, id string, requesterID string, req models.UpdatePollRequest) (*models.Poll, error) {
	v := validation.NewResult()
	v.Merge(validation.PollID(id))
	v.Merge(validation.UserID(requesterID))
	if err := v.Err(); err != nil {
		return nil, err
	}

	repo := s.repomanager.Polls(s.db)
	poll, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if poll.CreatorID != requesterID {
		return nil, common.ErrorForbidden
	}

	now := timeNow()
	fields := validation.NewResult()
	if req.Title != nil {
		fields.Merge(validation.Title(*req.Title))
	}
	if req.Description != nil {
		fields.Merge(validation.Description(*req.Description))
	}
	var expiresAt *time.Time
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		expiresAt, err = parseExpiration(req.ExpiresAt)
		if err != nil {
			fields.Add("expires_at", "expiration date must be a valid RFC 3339 timestamp")
		} else if expiresAt != nil {
			fields.Merge(validation.ExpirationDate(*expiresAt, now))
		}
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	if req.Title != nil {
		poll.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		poll.Description = strings.TrimSpace(*req.Description)
	}
	if req.ExpiresAt != nil {
		// an explicit empty string clears the expiration
		poll.ExpiresAt = expiresAt
	}
	if req.AllowMultipleVotes != nil {
		poll.AllowMultipleVotes = *req.AllowMultipleVotes
	}
	if req.IsAnonymous != nil {
		poll.IsAnonymous = *req.IsAnonymous
	}
	if req.IsActive != nil {
		poll.IsActive = *req.IsActive
	}

	updated, err := repo.Update(ctx, poll)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "poll updated", "poll_id", id)
	return updated, nil
}

// DeletePoll removes a poll after an ownership check. Options and votes are
// removed by the storage layer's cascade.
func (s *PollService) DeletePoll(ctx context.Context, id string, requesterID string) error {
	v := validation.NewResult()
	v.Merge(validation.PollID(id))
	v.Merge(validation.UserID(requesterID))
	if err := v.Err(); err != nil {
		return err
	}

	repo := s.repomanager.Polls(s.db)
	owner, err := repo.IsOwner(ctx, id, requesterID)
	if err != nil {
		return err
	}
	if !owner {
		return common.ErrorForbidden
	}

	if err := repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info(ctx, "poll deleted", "poll_id", id)
	return nil
}

// TogglePollStatus flips the active flag after an ownership check and
// returns the poll with its new state.
func (s *PollService) TogglePollStatus(ctx context.Context, id string, requesterID string) (*models.Poll, error) {
	v := validation.NewResult()
	v.Merge(validation.PollID(id))
	v.Merge(validation.UserID(requesterID))
	if err := v.Err(); err != nil {
		return nil, err
	}

	repo := s.repomanager.Polls(s.db)
	poll, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if poll.CreatorID != requesterID {
		return nil, common.ErrorForbidden
	}

	poll.IsActive = !poll.IsActive
	if err := repo.UpdateActiveFlag(ctx, id, poll.IsActive); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "poll status toggled", "poll_id", id, "is_active", poll.IsActive)
	return poll, nil
}

// GetUserPolls lists the owner's polls newest-first with filtering and
// pagination.
func (s *PollService) GetUserPolls(ctx context.Context, ownerID string, filter models.PollFilter, page models.Page) ([]*models.PollWithOptions, error) {
	if err := validation.UserID(ownerID).Err(); err != nil {
		return nil, err
	}
	return s.repomanager.Polls(s.db).FindByOwner(ctx, ownerID, filter, normalizePage(page))
}

// GetActivePolls lists currently active, non-expired polls newest-first.
func (s *PollService) GetActivePolls(ctx context.Context, filter models.PollFilter, page models.Page) ([]*models.PollWithOptions, error) {
	return s.repomanager.Polls(s.db).FindActive(ctx, filter, normalizePage(page))
}

// --- helpers below ---

func parseExpiration(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, errors.New("invalid timestamp")
	}
	return &t, nil
}

func normalizePage(page models.Page) models.Page {
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Limit <= 0 {
		page.Limit = defaultPageLimit
	}
	if page.Limit > maxPageLimit {
		page.Limit = maxPageLimit
	}
	return page
}
