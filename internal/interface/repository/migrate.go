package repository

import "gorm.io/gorm"

// AutoMigrate creates or updates the price tracking tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&IataCode{},
		&FlightPriceCurrent{},
		&FlightPriceHistory{},
	)
}
