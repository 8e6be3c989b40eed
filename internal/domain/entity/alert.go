package entity

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PriceAlert is one below-threshold fare queued for notification
type PriceAlert struct {
	RouteKey
	Price    decimal.Decimal
	Currency string
	Result   UpsertResult
}

// PendingAlertBuffer accumulates alerts during one orchestration pass,
// keyed destination -> departure date -> return date.
// It is owned by a single pass and is not safe for concurrent use.
type PendingAlertBuffer struct {
	alerts map[string]map[time.Time]map[time.Time]PriceAlert
	count  int
}

// NewPendingAlertBuffer creates an empty buffer
func NewPendingAlertBuffer() *PendingAlertBuffer {
	return &PendingAlertBuffer{
		alerts: make(map[string]map[time.Time]map[time.Time]PriceAlert),
	}
}

// Add records an alert. When two origins hit the same destination and dates
// in one pass, the cheaper fare is kept.
func (b *PendingAlertBuffer) Add(alert PriceAlert) {
	byDep, ok := b.alerts[alert.Destination]
	if !ok {
		byDep = make(map[time.Time]map[time.Time]PriceAlert)
		b.alerts[alert.Destination] = byDep
	}
	byRet, ok := byDep[alert.DepartureDate]
	if !ok {
		byRet = make(map[time.Time]PriceAlert)
		byDep[alert.DepartureDate] = byRet
	}
	existing, ok := byRet[alert.ReturnDate]
	if !ok {
		b.count++
	} else if existing.Price.LessThanOrEqual(alert.Price) {
		return
	}
	byRet[alert.ReturnDate] = alert
}

// Len returns the number of queued alerts
func (b *PendingAlertBuffer) Len() int {
	return b.count
}

// Drain returns all queued alerts ordered by destination, departure and return date,
// and leaves the buffer empty.
func (b *PendingAlertBuffer) Drain() []PriceAlert {
	out := make([]PriceAlert, 0, b.count)
	for _, byDep := range b.alerts {
		for _, byRet := range byDep {
			for _, alert := range byRet {
				out = append(out, alert)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Destination != out[j].Destination {
			return out[i].Destination < out[j].Destination
		}
		if !out[i].DepartureDate.Equal(out[j].DepartureDate) {
			return out[i].DepartureDate.Before(out[j].DepartureDate)
		}
		return out[i].ReturnDate.Before(out[j].ReturnDate)
	})

	b.alerts = make(map[string]map[time.Time]map[time.Time]PriceAlert)
	b.count = 0
	return out
}
