package repository

import (
	"context"

	"flight-alert-service/internal/domain/entity"
)

// PriceRepository maintains current prices and their change history
type PriceRepository interface {
	// Upsert records an observation and reports whether the key was new, changed or unchanged.
	// The read-check-write is atomic per key.
	Upsert(ctx context.Context, obs entity.PriceObservation) (entity.UpsertResult, error)
	// BestDeals returns the cheapest current records, ascending by price.
	BestDeals(ctx context.Context, filter entity.DealFilter) ([]*entity.CurrentPrice, error)
	// History returns the transitions for one key, ascending by change time.
	History(ctx context.Context, key entity.RouteKey) ([]*entity.PriceChange, error)
	// Latest returns current records, most recently checked first.
	Latest(ctx context.Context, filter entity.LatestFilter) ([]*entity.CurrentPrice, error)
	// Get returns the current record for key, or ErrNotFound.
	Get(ctx context.Context, key entity.RouteKey) (*entity.CurrentPrice, error)
	// DepartureOrigins lists the distinct origins present in the current table.
	DepartureOrigins(ctx context.Context) ([]*entity.Location, error)
}
