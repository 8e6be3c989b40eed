package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/domain/repository"
	"flight-alert-service/internal/infrastructure/persistence"
	"flight-alert-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultDealLimit = 5

var iataPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// GormPriceRepository implements the PriceRepository interface
type GormPriceRepository struct {
	db     *gorm.DB
	retry  persistence.RetryPolicy
	logger logger.Logger
	now    func() time.Time
}

// NewGormPriceRepository creates a new GORM price repository
func NewGormPriceRepository(db *gorm.DB, retry persistence.RetryPolicy, logger logger.Logger) repository.PriceRepository {
	return &GormPriceRepository{
		db:     db,
		retry:  retry,
		logger: logger,
		now:    time.Now,
	}
}

// FlightPriceCurrent GORM model for the current price table
type FlightPriceCurrent struct {
	ID          uint            `gorm:"primaryKey"`
	PlaceFrom   string          `gorm:"column:place_from;type:varchar(3);not null;uniqueIndex:route_date_idx,priority:1"`
	PlaceTo     string          `gorm:"column:place_to;type:varchar(3);not null;uniqueIndex:route_date_idx,priority:2"`
	DepDate     time.Time       `gorm:"column:dep_date;type:date;not null;uniqueIndex:route_date_idx,priority:3"`
	ArrDate     time.Time       `gorm:"column:arr_date;type:date;not null;uniqueIndex:route_date_idx,priority:4"`
	IsRoundtrip bool            `gorm:"column:is_roundtrip;not null;uniqueIndex:route_date_idx,priority:5"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null"`
	Currency    string          `gorm:"column:currency;type:varchar(3);default:CNY"`
	LastChecked time.Time       `gorm:"column:last_checked;not null"`
	FirstSeen   time.Time       `gorm:"column:first_seen;not null"`
}

// TableName overrides the default table name
func (FlightPriceCurrent) TableName() string {
	return "t_flight_price_current"
}

// FlightPriceHistory GORM model for the append-only change log
type FlightPriceHistory struct {
	ID          uint            `gorm:"primaryKey"`
	PlaceFrom   string          `gorm:"column:place_from;type:varchar(3);not null;index:history_route_idx,priority:1"`
	PlaceTo     string          `gorm:"column:place_to;type:varchar(3);not null;index:history_route_idx,priority:2"`
	DepDate     time.Time       `gorm:"column:dep_date;type:date;not null;index:history_route_idx,priority:3"`
	ArrDate     time.Time       `gorm:"column:arr_date;type:date;not null;index:history_route_idx,priority:4"`
	IsRoundtrip bool            `gorm:"column:is_roundtrip;not null"`
	OldPrice    decimal.Decimal `gorm:"column:old_price;type:decimal(10,2);not null"`
	NewPrice    decimal.Decimal `gorm:"column:new_price;type:decimal(10,2);not null"`
	Currency    string          `gorm:"column:currency;type:varchar(3);default:CNY"`
	ChangedAt   time.Time       `gorm:"column:changed_at;not null"`
}

// TableName overrides the default table name
func (FlightPriceHistory) TableName() string {
	return "t_flight_price_history"
}

// Upsert records one observation. See entity.UpsertResult for the outcomes.
func (r *GormPriceRepository) Upsert(ctx context.Context, obs entity.PriceObservation) (entity.UpsertResult, error) {
	obs, err := normalizeObservation(obs)
	if err != nil {
		return 0, err
	}

	var result entity.UpsertResult
	err = persistence.Retry(ctx, r.retry, r.logger, "price.upsert", func() error {
		res, err := r.upsertOnce(ctx, obs)
		if isDuplicateKeyError(err) {
			// Another writer inserted the key between our read and insert.
			res, err = r.upsertOnce(ctx, obs)
		}
		result = res
		return err
	})
	if err != nil {
		r.logger.Error("Failed to upsert flight price", append(obs.LogFields(), "error", err)...)
		return 0, fmt.Errorf("upsert price %s: %w", obs.RouteKey, err)
	}

	return result, nil
}

func (r *GormPriceRepository) upsertOnce(ctx context.Context, obs entity.PriceObservation) (entity.UpsertResult, error) {
	var result entity.UpsertResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now().UTC()

		var current FlightPriceCurrent
		err := keyScope(tx.Clauses(clause.Locking{Strength: "UPDATE"}), obs.RouteKey).
			Take(&current).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			row := FlightPriceCurrent{
				PlaceFrom:   obs.Origin,
				PlaceTo:     obs.Destination,
				DepDate:     obs.DepartureDate,
				ArrDate:     obs.ReturnDate,
				IsRoundtrip: obs.TripType.IsRoundTrip(),
				Price:       obs.Price,
				Currency:    obs.Currency,
				LastChecked: now,
				FirstSeen:   now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			result = entity.UpsertNew
			r.logger.Info("New price entry", append(obs.LogFields(), "price", obs.Price.String())...)
			return nil
		}
		if err != nil {
			return err
		}

		checked := current.LastChecked
		if now.After(checked) {
			checked = now
		}

		if current.Price.Equal(obs.Price) {
			if err := tx.Model(&current).Update("last_checked", checked).Error; err != nil {
				return err
			}
			result = entity.UpsertUnchanged
			r.logger.Debug("Price unchanged", append(obs.LogFields(), "price", obs.Price.String())...)
			return nil
		}

		change := FlightPriceHistory{
			PlaceFrom:   obs.Origin,
			PlaceTo:     obs.Destination,
			DepDate:     obs.DepartureDate,
			ArrDate:     obs.ReturnDate,
			IsRoundtrip: obs.TripType.IsRoundTrip(),
			OldPrice:    current.Price,
			NewPrice:    obs.Price,
			Currency:    obs.Currency,
			ChangedAt:   now,
		}
		if err := tx.Create(&change).Error; err != nil {
			return err
		}

		if err := tx.Model(&current).Updates(map[string]interface{}{
			"price":        obs.Price,
			"currency":     obs.Currency,
			"last_checked": checked,
		}).Error; err != nil {
			return err
		}

		result = entity.UpsertChanged
		r.logger.Info("Updated price", append(obs.LogFields(),
			"oldPrice", current.Price.String(),
			"newPrice", obs.Price.String())...)
		return nil
	})

	return result, err
}

// BestDeals returns the cheapest current records matching filter, ascending by price
func (r *GormPriceRepository) BestDeals(ctx context.Context, filter entity.DealFilter) ([]*entity.CurrentPrice, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDealLimit
	}

	var rows []FlightPriceCurrent
	err := persistence.Retry(ctx, r.retry, r.logger, "price.best_deals", func() error {
		q := r.db.WithContext(ctx).Model(&FlightPriceCurrent{})
		if filter.Origin != "" {
			q = q.Where("place_from = ?", strings.ToUpper(filter.Origin))
		}
		if filter.MaxPrice != nil {
			q = q.Where("price <= ?", *filter.MaxPrice)
		}
		rows = nil
		return q.Order("price ASC").Order("dep_date ASC").Order("place_to ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("query best deals: %w", err)
	}

	return toCurrentPrices(rows), nil
}

// History returns the price transitions for key, oldest first
func (r *GormPriceRepository) History(ctx context.Context, key entity.RouteKey) ([]*entity.PriceChange, error) {
	key = normalizeKey(key)

	var rows []FlightPriceHistory
	err := persistence.Retry(ctx, r.retry, r.logger, "price.history", func() error {
		rows = nil
		return r.db.WithContext(ctx).
			Where("place_from = ? AND place_to = ? AND dep_date = ? AND arr_date = ? AND is_roundtrip = ?",
				key.Origin, key.Destination, key.DepartureDate, key.ReturnDate, key.TripType.IsRoundTrip()).
			Order("changed_at ASC").Order("id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("query price history %s: %w", key, err)
	}

	changes := make([]*entity.PriceChange, 0, len(rows))
	for _, row := range rows {
		changes = append(changes, &entity.PriceChange{
			ID: row.ID,
			RouteKey: entity.RouteKey{
				Origin:        row.PlaceFrom,
				Destination:   row.PlaceTo,
				DepartureDate: row.DepDate.UTC(),
				ReturnDate:    row.ArrDate.UTC(),
				TripType:      entity.TripTypeFromFlag(row.IsRoundtrip),
			},
			OldPrice:  row.OldPrice,
			NewPrice:  row.NewPrice,
			Currency:  row.Currency,
			ChangedAt: row.ChangedAt,
		})
	}
	return changes, nil
}

// Latest returns current records, most recently checked first
func (r *GormPriceRepository) Latest(ctx context.Context, filter entity.LatestFilter) ([]*entity.CurrentPrice, error) {
	var rows []FlightPriceCurrent
	err := persistence.Retry(ctx, r.retry, r.logger, "price.latest", func() error {
		q := r.db.WithContext(ctx).Model(&FlightPriceCurrent{})
		if filter.Origin != "" {
			q = q.Where("place_from = ?", strings.ToUpper(filter.Origin))
		}
		if filter.Destination != "" {
			q = q.Where("place_to = ?", strings.ToUpper(filter.Destination))
		}
		q = q.Order("last_checked DESC").Order("id DESC")
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		rows = nil
		return q.Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("query latest prices: %w", err)
	}

	return toCurrentPrices(rows), nil
}

// Get returns the current record for key
func (r *GormPriceRepository) Get(ctx context.Context, key entity.RouteKey) (*entity.CurrentPrice, error) {
	key = normalizeKey(key)

	var row FlightPriceCurrent
	err := persistence.Retry(ctx, r.retry, r.logger, "price.get", func() error {
		return keyScope(r.db.WithContext(ctx), key).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get price %s: %w", key, err)
	}

	return toCurrentPrice(row), nil
}

// DepartureOrigins lists the distinct origins in the current table with their display names
func (r *GormPriceRepository) DepartureOrigins(ctx context.Context) ([]*entity.Location, error) {
	var rows []struct {
		IataCode string
		CityName string
	}
	err := persistence.Retry(ctx, r.retry, r.logger, "price.departure_origins", func() error {
		rows = nil
		return r.db.WithContext(ctx).
			Table(FlightPriceCurrent{}.TableName()+" AS c").
			Select("DISTINCT c.place_from AS iata_code, i.iata_name AS city_name").
			Joins("JOIN "+IataCode{}.TableName()+" i ON c.place_from = i.iata_code").
			Order("i.iata_name").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("query departure origins: %w", err)
	}

	origins := make([]*entity.Location, 0, len(rows))
	for _, row := range rows {
		origins = append(origins, &entity.Location{Code: row.IataCode, Name: row.CityName})
	}
	return origins, nil
}

func keyScope(db *gorm.DB, key entity.RouteKey) *gorm.DB {
	return db.Where("place_from = ? AND place_to = ? AND dep_date = ? AND arr_date = ? AND is_roundtrip = ?",
		key.Origin, key.Destination, key.DepartureDate, key.ReturnDate, key.TripType.IsRoundTrip())
}

func normalizeKey(key entity.RouteKey) entity.RouteKey {
	key.Origin = strings.ToUpper(strings.TrimSpace(key.Origin))
	key.Destination = strings.ToUpper(strings.TrimSpace(key.Destination))
	key.DepartureDate = dateOnly(key.DepartureDate)
	key.ReturnDate = dateOnly(key.ReturnDate)
	return key
}

func normalizeObservation(obs entity.PriceObservation) (entity.PriceObservation, error) {
	obs.RouteKey = normalizeKey(obs.RouteKey)
	if obs.Currency == "" {
		obs.Currency = entity.DefaultCurrency
	}

	switch {
	case !iataPattern.MatchString(obs.Origin):
		return obs, fmt.Errorf("%w: origin %q is not an IATA code", repository.ErrInvalidInput, obs.Origin)
	case !iataPattern.MatchString(obs.Destination):
		return obs, fmt.Errorf("%w: destination %q is not an IATA code", repository.ErrInvalidInput, obs.Destination)
	case obs.DepartureDate.IsZero() || obs.ReturnDate.IsZero():
		return obs, fmt.Errorf("%w: departure and return dates are required", repository.ErrInvalidInput)
	case obs.ReturnDate.Before(obs.DepartureDate):
		return obs, fmt.Errorf("%w: return date before departure date", repository.ErrInvalidInput)
	case !obs.TripType.Valid():
		return obs, fmt.Errorf("%w: trip type %d", repository.ErrInvalidInput, obs.TripType)
	case obs.Price.IsNegative():
		return obs, fmt.Errorf("%w: negative price %s", repository.ErrInvalidInput, obs.Price)
	case len(obs.Currency) != 3:
		return obs, fmt.Errorf("%w: currency %q", repository.ErrInvalidInput, obs.Currency)
	}
	return obs, nil
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PostgreSQL error codes
const pgErrUniqueViolation = "23505"

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

func toCurrentPrices(rows []FlightPriceCurrent) []*entity.CurrentPrice {
	out := make([]*entity.CurrentPrice, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCurrentPrice(row))
	}
	return out
}

func toCurrentPrice(row FlightPriceCurrent) *entity.CurrentPrice {
	return &entity.CurrentPrice{
		ID: row.ID,
		RouteKey: entity.RouteKey{
			Origin:        row.PlaceFrom,
			Destination:   row.PlaceTo,
			DepartureDate: row.DepDate.UTC(),
			ReturnDate:    row.ArrDate.UTC(),
			TripType:      entity.TripTypeFromFlag(row.IsRoundtrip),
		},
		Price:       row.Price,
		Currency:    row.Currency,
		LastChecked: row.LastChecked,
		FirstSeen:   row.FirstSeen,
	}
}
