// internal/domain/entity/price.go
package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "CNY"

// TripType distinguishes paired departure+return fares from single-leg fares
type TripType int

const (
	OneWay    TripType = 0
	RoundTrip TripType = 1
)

func (t TripType) String() string {
	switch t {
	case RoundTrip:
		return "roundtrip"
	case OneWay:
		return "oneway"
	default:
		return fmt.Sprintf("TripType(%d)", int(t))
	}
}

// Valid reports whether t is one of the known trip types
func (t TripType) Valid() bool {
	return t == RoundTrip || t == OneWay
}

// IsRoundTrip is the storage flag for the trip type
func (t TripType) IsRoundTrip() bool {
	return t == RoundTrip
}

// TripTypeFromFlag converts the stored is_roundtrip flag
func TripTypeFromFlag(isRoundTrip bool) TripType {
	if isRoundTrip {
		return RoundTrip
	}
	return OneWay
}

// ParseTripType accepts "roundtrip"/"oneway" (and the fare API's "Roundtrip"/"Oneway")
func ParseTripType(s string) (TripType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "roundtrip", "round", "1":
		return RoundTrip, nil
	case "oneway", "one-way", "0":
		return OneWay, nil
	default:
		return 0, fmt.Errorf("unknown trip type %q", s)
	}
}

// UpsertResult is the outcome of recording one price observation
type UpsertResult int

const (
	UpsertNew UpsertResult = iota + 1
	UpsertChanged
	UpsertUnchanged
)

func (r UpsertResult) String() string {
	switch r {
	case UpsertNew:
		return "new"
	case UpsertChanged:
		return "changed"
	case UpsertUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// IsAlertable is true for results that may surface an alert
func (r UpsertResult) IsAlertable() bool {
	return r == UpsertNew || r == UpsertChanged
}

// RouteKey identifies one tracked fare: at most one current record exists per key
type RouteKey struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    time.Time
	TripType      TripType
}

func (k RouteKey) String() string {
	return fmt.Sprintf("%s->%s %s/%s %s",
		k.Origin, k.Destination,
		k.DepartureDate.Format("2006-01-02"), k.ReturnDate.Format("2006-01-02"),
		k.TripType)
}

// LogFields returns the key as structured logging pairs
func (k RouteKey) LogFields() []interface{} {
	return []interface{}{
		"origin", k.Origin,
		"destination", k.Destination,
		"depDate", k.DepartureDate.Format("2006-01-02"),
		"retDate", k.ReturnDate.Format("2006-01-02"),
		"tripType", k.TripType.String(),
	}
}

// PriceObservation is one observed fare for a key
type PriceObservation struct {
	RouteKey
	Price    decimal.Decimal
	Currency string
}

// CurrentPrice is the latest known price for a key
type CurrentPrice struct {
	ID uint
	RouteKey
	Price       decimal.Decimal
	Currency    string
	LastChecked time.Time
	FirstSeen   time.Time
}

// PriceChange is one immutable price transition
type PriceChange struct {
	ID uint
	RouteKey
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
	Currency  string
	ChangedAt time.Time
}

// DealFilter narrows a best-deals query. Zero values mean "no filter".
type DealFilter struct {
	Origin   string
	MaxPrice *decimal.Decimal
	Limit    int
}

// LatestFilter narrows a most-recently-checked query. Limit <= 0 means no limit.
type LatestFilter struct {
	Origin      string
	Destination string
	Limit       int
}
