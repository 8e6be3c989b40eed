package repository

import (
	"context"

	"flight-alert-service/internal/domain/entity"
)

// LocationRepository defines the interface for IATA code lookups
type LocationRepository interface {
	GetByCode(ctx context.Context, code string) (*entity.Location, error)
	All(ctx context.Context) ([]*entity.Location, error)
	EligibleDestinations(ctx context.Context) ([]string, error)
	ReplaceAll(ctx context.Context, locations []*entity.Location) error
}
