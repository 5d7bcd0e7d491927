package polls

import (
	"context"

	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, poll *models.Poll) (*models.Poll, error)
	CreateOptions(ctx context.Context, pollID string, texts []string) ([]models.PollOption, error)
	GetByID(ctx context.Context, id string) (*models.Poll, error)
	GetWithOptions(ctx context.Context, id string) (*models.PollWithOptions, error)
	FindByOwner(ctx context.Context, ownerID string, filter models.PollFilter, page models.Page) ([]*models.PollWithOptions, error)
	FindActive(ctx context.Context, filter models.PollFilter, page models.Page) ([]*models.PollWithOptions, error)
	Update(ctx context.Context, poll *models.Poll) (*models.Poll, error)
	UpdateActiveFlag(ctx context.Context, id string, isActive bool) error
	Delete(ctx context.Context, id string) error
	IsOwner(ctx context.Context, id string, userID string) (bool, error)
	RecordView(ctx context.Context, pollID string, viewerID *string) error
}
