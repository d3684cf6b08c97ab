package feeds

import (
	"context"

	"github.com/dmitrijs2005/feedkeeper/internal/models"
)

// Repository describes the operations the client needs on cached feed
// records. Implementations are typically backed by a local SQLite database.
type Repository interface {
	// Upsert inserts a record or replaces an existing one by feed id.
	Upsert(ctx context.Context, f *models.Feed) error

	// GetAll returns all cached records that are not soft-deleted.
	GetAll(ctx context.Context) ([]models.Feed, error)

	// GetByID returns one cached record by its identifier.
	GetByID(ctx context.Context, id string) (*models.Feed, error)

	// DeleteByID marks a record as deleted.
	DeleteByID(ctx context.Context, id string) error

	// DeleteAll removes every cached record.
	DeleteAll(ctx context.Context) error
}
