package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormLocationRepository implements the LocationRepository interface
type GormLocationRepository struct {
	db *gorm.DB
}

// NewGormLocationRepository creates a new GORM location repository
func NewGormLocationRepository(db *gorm.DB) repository.LocationRepository {
	return &GormLocationRepository{
		db: db,
	}
}

// IataCode GORM model for database mapping
type IataCode struct {
	ID       uint   `gorm:"primaryKey"`
	IataCode string `gorm:"column:iata_code;type:varchar(3);unique;not null"`
	IataName string `gorm:"column:iata_name;type:varchar(100);not null"`
	Domestic bool   `gorm:"column:domestic;not null;default:false"`
}

// TableName overrides the default table name
func (IataCode) TableName() string {
	return "t_iata_code"
}

// GetByCode finds a location by IATA code
func (r *GormLocationRepository) GetByCode(ctx context.Context, code string) (*entity.Location, error) {
	var row IataCode
	result := r.db.WithContext(ctx).Where("iata_code = ?", strings.ToUpper(code)).First(&row)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return toLocation(row), nil
}

// All returns every known location ordered by code
func (r *GormLocationRepository) All(ctx context.Context) ([]*entity.Location, error) {
	var rows []IataCode
	if err := r.db.WithContext(ctx).Order("iata_code").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list iata codes: %w", err)
	}

	locations := make([]*entity.Location, 0, len(rows))
	for _, row := range rows {
		locations = append(locations, toLocation(row))
	}
	return locations, nil
}

// EligibleDestinations returns the codes flagged as domestic destinations
func (r *GormLocationRepository) EligibleDestinations(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&IataCode{}).
		Where("domestic = ?", true).
		Order("iata_code").
		Pluck("iata_code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("list eligible destinations: %w", err)
	}
	return codes, nil
}

// ReplaceAll swaps the reference table contents in one transaction
func (r *GormLocationRepository) ReplaceAll(ctx context.Context, locations []*entity.Location) error {
	rows := make([]IataCode, 0, len(locations))
	seen := make(map[string]bool, len(locations))
	for _, loc := range locations {
		code := strings.ToUpper(strings.TrimSpace(loc.Code))
		if !iataPattern.MatchString(code) {
			return fmt.Errorf("%w: iata code %q", repository.ErrInvalidInput, loc.Code)
		}
		if seen[code] {
			return fmt.Errorf("%w: duplicate iata code %q", repository.ErrInvalidInput, code)
		}
		seen[code] = true
		rows = append(rows, IataCode{IataCode: code, IataName: loc.Name, Domestic: loc.Domestic})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&IataCode{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

func toLocation(row IataCode) *entity.Location {
	return &entity.Location{
		ID:       row.ID,
		Code:     row.IataCode,
		Name:     row.IataName,
		Domestic: row.Domestic,
	}
}
