package repository

import (
	"context"

	"flight-alert-service/internal/domain/entity"
)

// FareRepository defines the interface for the external fare search API
type FareRepository interface {
	SearchDomestic(ctx context.Context, origin, destination string, tripType entity.TripType) (*entity.DomesticFares, error)
	SearchInternational(ctx context.Context, origin, destination string) ([]entity.InternationalFare, error)
}
