package entity

import "github.com/shopspring/decimal"

// DomesticFares is the price calendar returned by the domestic fare endpoint.
// Dates are YYYYMMDD strings as sent by the API.
type DomesticFares struct {
	// departure date -> return date -> price
	RoundTrip map[string]map[string]decimal.Decimal
	// departure date -> price
	OneWay map[string]decimal.Decimal
}

// InternationalFare is one item returned by the international fare endpoint
type InternationalFare struct {
	DepartureDate string
	ReturnDate    string
	Price         decimal.Decimal
}
