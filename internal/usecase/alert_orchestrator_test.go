package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/domain/repository"
	"flight-alert-service/pkg/logger"
	"flight-alert-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrices keeps current prices in memory with the same result semantics as the store
type fakePrices struct {
	mu      sync.Mutex
	current map[entity.RouteKey]decimal.Decimal
	calls   []entity.PriceObservation
	err     error
	deals   map[string][]*entity.CurrentPrice
}

func newFakePrices() *fakePrices {
	return &fakePrices{current: map[entity.RouteKey]decimal.Decimal{}}
}

func (f *fakePrices) Upsert(ctx context.Context, obs entity.PriceObservation) (entity.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, obs)
	if f.err != nil {
		return 0, f.err
	}
	old, ok := f.current[obs.RouteKey]
	f.current[obs.RouteKey] = obs.Price
	switch {
	case !ok:
		return entity.UpsertNew, nil
	case old.Equal(obs.Price):
		return entity.UpsertUnchanged, nil
	default:
		return entity.UpsertChanged, nil
	}
}

func (f *fakePrices) BestDeals(ctx context.Context, filter entity.DealFilter) ([]*entity.CurrentPrice, error) {
	return f.deals[filter.Origin], nil
}

func (f *fakePrices) History(ctx context.Context, key entity.RouteKey) ([]*entity.PriceChange, error) {
	return nil, nil
}

func (f *fakePrices) Latest(ctx context.Context, filter entity.LatestFilter) ([]*entity.CurrentPrice, error) {
	return nil, nil
}

func (f *fakePrices) Get(ctx context.Context, key entity.RouteKey) (*entity.CurrentPrice, error) {
	return nil, repository.ErrNotFound
}

func (f *fakePrices) DepartureOrigins(ctx context.Context) ([]*entity.Location, error) {
	return nil, nil
}

type fakeLocations struct {
	locations []*entity.Location
}

func (f *fakeLocations) GetByCode(ctx context.Context, code string) (*entity.Location, error) {
	for _, loc := range f.locations {
		if loc.Code == code {
			return loc, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeLocations) All(ctx context.Context) ([]*entity.Location, error) {
	return f.locations, nil
}

func (f *fakeLocations) EligibleDestinations(ctx context.Context) ([]string, error) {
	var codes []string
	for _, loc := range f.locations {
		if loc.Domestic {
			codes = append(codes, loc.Code)
		}
	}
	return codes, nil
}

func (f *fakeLocations) ReplaceAll(ctx context.Context, locations []*entity.Location) error {
	f.locations = locations
	return nil
}

type fakeFares struct {
	domestic      map[string]*entity.DomesticFares
	international map[string][]entity.InternationalFare
	lookups       []string
}

func (f *fakeFares) SearchDomestic(ctx context.Context, origin, destination string, tripType entity.TripType) (*entity.DomesticFares, error) {
	f.lookups = append(f.lookups, origin+"-"+destination+"-"+tripType.String())
	fares, ok := f.domestic[origin+"-"+destination]
	if !ok {
		return nil, repository.ErrNoFareData
	}
	return fares, nil
}

func (f *fakeFares) SearchInternational(ctx context.Context, origin, destination string) ([]entity.InternationalFare, error) {
	f.lookups = append(f.lookups, origin+"-"+destination+"-intl")
	fares, ok := f.international[origin+"-"+destination]
	if !ok {
		return nil, repository.ErrNoFareData
	}
	return fares, nil
}

type fakeNotifier struct {
	ok       bool
	messages []string
}

func (f *fakeNotifier) Send(ctx context.Context, title, message string) bool {
	f.messages = append(f.messages, message)
	return f.ok
}

type fakeAlertLog struct {
	dispatches []*entity.AlertDispatch
}

func (f *fakeAlertLog) Record(ctx context.Context, dispatch *entity.AlertDispatch) error {
	f.dispatches = append(f.dispatches, dispatch)
	return nil
}

func (f *fakeAlertLog) Recent(ctx context.Context, limit int) ([]*entity.AlertDispatch, error) {
	return f.dispatches, nil
}

// Thursday 2025-05-22 is "today" in these tests
var testToday = time.Date(2025, 5, 22, 9, 0, 0, 0, time.UTC)

type harness struct {
	orchestrator *AlertOrchestrator
	prices       *fakePrices
	fares        *fakeFares
	notifier     *fakeNotifier
	alertLog     *fakeAlertLog
	pauses       int
}

func newHarness(t *testing.T, settings AlertSettings) *harness {
	t.Helper()
	h := &harness{
		prices:   newFakePrices(),
		fares:    &fakeFares{domestic: map[string]*entity.DomesticFares{}, international: map[string][]entity.InternationalFare{}},
		notifier: &fakeNotifier{ok: true},
		alertLog: &fakeAlertLog{},
	}
	locations := &fakeLocations{locations: []*entity.Location{
		{Code: "SZX", Name: "Shenzhen", Domestic: true},
		{Code: "BJS", Name: "Beijing", Domestic: true},
		{Code: "SHA", Name: "Shanghai", Domestic: true},
		{Code: "TYO", Name: "Tokyo"},
	}}

	h.orchestrator = NewAlertOrchestrator(h.prices, locations, h.fares, h.notifier, h.alertLog,
		metrics.NewMetrics("test", prometheus.NewRegistry()), logger.NewNop(), settings)
	h.orchestrator.now = func() time.Time { return testToday }
	h.orchestrator.pause = func(ctx context.Context) error {
		h.pauses++
		return ctx.Err()
	}
	h.orchestrator.newRunID = func() string { return "run-1" }
	return h
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func baseSettings() AlertSettings {
	return AlertSettings{
		Origins:                  []string{"SZX"},
		Destinations:             []string{"BJS"},
		TargetPrice:              price("800"),
		InternationalTargetPrice: price("2500"),
	}
}

func TestRunPass_FiltersDatesAndAlertsBelowTarget(t *testing.T) {
	h := newHarness(t, baseSettings())
	h.fares.domestic["SZX-BJS"] = &entity.DomesticFares{RoundTrip: map[string]map[string]decimal.Decimal{
		"20250605": {"20250608": price("750"), "20250609": price("500")}, // Thu, +3 is 0608
		"20250606": {"20250609": price("900")},                           // Fri, above target
		"20250607": {"20250610": price("300")},                           // Sat
		"20250522": {"20250525": price("0")},                             // Thu today, no fare
		"20250703": {"20250706": price("400")},                           // Thu, 42 days out
		"20250515": {"20250518": price("400")},                           // past
	}}

	report, err := h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)

	require.Len(t, h.prices.calls, 2)
	assert.Equal(t, "20250608", h.prices.calls[0].ReturnDate.Format("20060102"))
	assert.True(t, h.prices.calls[1].Price.Equal(price("900")))

	assert.Equal(t, 1, report.PairsAttempted)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 1, report.AlertsQueued)
	assert.True(t, report.NotificationSent)

	require.Len(t, h.notifier.messages, 1)
	assert.Equal(t, "Shenzhen->Beijing, departure: 2025-06-05, return: 2025-06-08, price: 750\n", h.notifier.messages[0])

	require.Len(t, h.alertLog.dispatches, 1)
	assert.Equal(t, "run-1", h.alertLog.dispatches[0].RunID)
	assert.Equal(t, 1, h.alertLog.dispatches[0].AlertCount)
	assert.Empty(t, h.alertLog.dispatches[0].Error)
}

func TestRunPass_UnchangedPriceDoesNotAlert(t *testing.T) {
	h := newHarness(t, baseSettings())
	h.fares.domestic["SZX-BJS"] = &entity.DomesticFares{RoundTrip: map[string]map[string]decimal.Decimal{
		"20250605": {"20250608": price("750")},
	}}

	_, err := h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)
	require.Len(t, h.notifier.messages, 1)

	report, err := h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)
	assert.Zero(t, report.AlertsQueued)
	assert.Len(t, h.notifier.messages, 1, "no second notification")

	h.fares.domestic["SZX-BJS"].RoundTrip["20250605"]["20250608"] = price("680")
	report, err = h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	require.Len(t, h.notifier.messages, 2)
	assert.Contains(t, h.notifier.messages[1], "price: 680")
}

func TestRunPass_SkipsSameOriginAndDestination(t *testing.T) {
	settings := baseSettings()
	settings.Origins = []string{"SZX", "BJS"}
	settings.Destinations = []string{"SZX", "BJS", "SHA"}
	h := newHarness(t, settings)

	report, err := h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"SZX-BJS-roundtrip", "SZX-SHA-roundtrip", "BJS-SZX-roundtrip", "BJS-SHA-roundtrip",
	}, h.fares.lookups)
	assert.Equal(t, 4, report.PairsAttempted)
	assert.Equal(t, 4, report.PairsWithoutData)
	assert.Equal(t, 3, h.pauses, "pause between lookups only")
	assert.Empty(t, h.notifier.messages)
}

func TestRunPass_EligibleDestinationsOverrideConfig(t *testing.T) {
	settings := baseSettings()
	settings.Destinations = []string{"CTU"}
	settings.UseEligibleDestinations = true
	h := newHarness(t, settings)

	_, err := h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"SZX-BJS-roundtrip", "SZX-SHA-roundtrip"}, h.fares.lookups)
}

func TestRunPass_BufferClearedWhenSendFails(t *testing.T) {
	h := newHarness(t, baseSettings())
	h.notifier.ok = false
	h.fares.domestic["SZX-BJS"] = &entity.DomesticFares{RoundTrip: map[string]map[string]decimal.Decimal{
		"20250605": {"20250608": price("750")},
	}}

	report, err := h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)
	assert.False(t, report.NotificationSent)
	require.Len(t, h.alertLog.dispatches, 1)
	assert.False(t, h.alertLog.dispatches[0].Success)
	assert.Equal(t, "push send failed", h.alertLog.dispatches[0].Error)

	// Same price on the next pass is unchanged, so nothing is re-sent
	report, err = h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.AlertsQueued)
	assert.Len(t, h.notifier.messages, 1)
}

func TestRunPass_StoreErrorsAreCountedAndSkipped(t *testing.T) {
	h := newHarness(t, baseSettings())
	h.prices.err = errors.New("connection refused")
	h.fares.domestic["SZX-BJS"] = &entity.DomesticFares{RoundTrip: map[string]map[string]decimal.Decimal{
		"20250605": {"20250608": price("750")},
	}}

	report, err := h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.StoreErrors)
	assert.Zero(t, report.AlertsQueued)
	assert.Empty(t, h.notifier.messages)
}

func TestRunPass_CancelledContextStillFlushes(t *testing.T) {
	settings := baseSettings()
	settings.Destinations = []string{"BJS", "SHA"}
	h := newHarness(t, settings)
	h.fares.domestic["SZX-BJS"] = &entity.DomesticFares{RoundTrip: map[string]map[string]decimal.Decimal{
		"20250605": {"20250608": price("750")},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	h.orchestrator.pause = func(context.Context) error {
		cancel()
		return context.Canceled
	}

	report, err := h.orchestrator.RunPass(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.PairsAttempted)
	assert.Len(t, h.notifier.messages, 1)
}

func TestRunPass_RejectsOverlap(t *testing.T) {
	h := newHarness(t, baseSettings())
	h.orchestrator.running.Store(true)

	_, err := h.orchestrator.RunPass(context.Background())
	assert.ErrorIs(t, err, ErrPassInProgress)
}

func TestRunPass_OneWayTracking(t *testing.T) {
	settings := baseSettings()
	settings.TrackOneWay = true
	h := newHarness(t, settings)
	h.fares.domestic["SZX-BJS"] = &entity.DomesticFares{
		RoundTrip: map[string]map[string]decimal.Decimal{},
		OneWay:    map[string]decimal.Decimal{"20250605": price("420"), "20250604": price("300")},
	}

	report, err := h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)

	require.Len(t, h.prices.calls, 1)
	call := h.prices.calls[0]
	assert.Equal(t, entity.OneWay, call.TripType)
	assert.True(t, call.DepartureDate.Equal(call.ReturnDate))
	assert.Equal(t, 1, report.AlertsQueued)

	assert.Equal(t, []string{"SZX-BJS-roundtrip", "SZX-BJS-oneway"}, h.fares.lookups)
	assert.Equal(t, len(h.fares.lookups)-1, h.pauses, "one-way lookup waits like any other")
}

func TestRunPass_OneWayStopsWhenPauseCancelled(t *testing.T) {
	settings := baseSettings()
	settings.TrackOneWay = true
	h := newHarness(t, settings)

	ctx, cancel := context.WithCancel(context.Background())
	h.orchestrator.pause = func(context.Context) error {
		cancel()
		return context.Canceled
	}

	_, err := h.orchestrator.RunPass(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"SZX-BJS-roundtrip"}, h.fares.lookups)
}

func TestRunPass_CollisionKeepsCheaperOrigin(t *testing.T) {
	settings := baseSettings()
	settings.Origins = []string{"SZX", "SHA"}
	h := newHarness(t, settings)
	h.fares.domestic["SZX-BJS"] = &entity.DomesticFares{RoundTrip: map[string]map[string]decimal.Decimal{
		"20250605": {"20250608": price("750")},
	}}
	h.fares.domestic["SHA-BJS"] = &entity.DomesticFares{RoundTrip: map[string]map[string]decimal.Decimal{
		"20250605": {"20250608": price("600")},
	}}

	report, err := h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.AlertsQueued)
	require.Len(t, h.notifier.messages, 1)
	assert.Equal(t, "Shanghai->Beijing, departure: 2025-06-05, return: 2025-06-08, price: 600\n", h.notifier.messages[0])
}

func TestRunPass_InternationalDestinations(t *testing.T) {
	settings := baseSettings()
	settings.Destinations = nil
	settings.InternationalDestinations = []string{"TYO"}
	h := newHarness(t, settings)
	h.fares.international["SZX-TYO"] = []entity.InternationalFare{
		{DepartureDate: "20250710", ReturnDate: "20250714", Price: price("2300")}, // Thu, 49 days
		{DepartureDate: "20250801", ReturnDate: "20250805", Price: price("1200")}, // Fri, 71 days
		{DepartureDate: "20250606", ReturnDate: "20250609", Price: price("2600")}, // above target
	}

	report, err := h.orchestrator.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 1, report.AlertsQueued)
	require.Len(t, h.notifier.messages, 1)
	assert.Equal(t, "Shenzhen->Tokyo, departure: 2025-07-10, return: 2025-07-14, price: 2300\n", h.notifier.messages[0])
}

func TestCheckRoute_ReturnsAlertsWithoutSending(t *testing.T) {
	h := newHarness(t, baseSettings())
	h.fares.domestic["SZX-BJS"] = &entity.DomesticFares{RoundTrip: map[string]map[string]decimal.Decimal{
		"20250605": {"20250608": price("750")},
	}}

	report, alerts, err := h.orchestrator.CheckRoute(context.Background(), "szx", "bjs")
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	require.Len(t, alerts, 1)
	assert.Equal(t, "BJS", alerts[0].Destination)
	assert.Empty(t, h.notifier.messages)

	_, _, err = h.orchestrator.CheckRoute(context.Background(), "SZX", "SZX")
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestCheckRouteDates(t *testing.T) {
	h := newHarness(t, baseSettings())
	h.fares.domestic["SZX-BJS"] = &entity.DomesticFares{RoundTrip: map[string]map[string]decimal.Decimal{
		"20250607": {"20250611": price("750")}, // a Saturday, explicit mode ignores the weekday filter
	}}
	dep := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	ret := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	limit := price("700")
	report, err := h.orchestrator.CheckRouteDates(context.Background(), "SZX", "BJS", dep, ret, &limit)
	require.NoError(t, err)
	assert.Zero(t, report.Candidates, "above the explicit max price")

	report, err = h.orchestrator.CheckRouteDates(context.Background(), "SZX", "BJS", dep, ret, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	require.Len(t, h.notifier.messages, 1)
	assert.Contains(t, h.notifier.messages[0], "departure: 2025-06-07, return: 2025-06-11")

	_, err = h.orchestrator.CheckRouteDates(context.Background(), "SZX", "BJS", ret, dep, nil)
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = h.orchestrator.CheckRouteDates(context.Background(), "szx", "SZX", dep, ret, nil)
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestSingleRouteChecks_RejectOverlap(t *testing.T) {
	h := newHarness(t, baseSettings())
	h.orchestrator.running.Store(true)
	dep := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)

	_, _, err := h.orchestrator.CheckRoute(context.Background(), "SZX", "BJS")
	assert.ErrorIs(t, err, ErrPassInProgress)

	_, err = h.orchestrator.CheckRouteDates(context.Background(), "SZX", "BJS", dep, dep.AddDate(0, 0, 3), nil)
	assert.ErrorIs(t, err, ErrPassInProgress)

	_, err = h.orchestrator.CheckInternational(context.Background(), "SZX", "TYO")
	assert.ErrorIs(t, err, ErrPassInProgress)

	_, err = h.orchestrator.CheckAllOrigins(context.Background(), "BJS")
	assert.ErrorIs(t, err, ErrPassInProgress)

	assert.Empty(t, h.fares.lookups)

	h.orchestrator.running.Store(false)
	_, _, err = h.orchestrator.CheckRoute(context.Background(), "SZX", "BJS")
	require.NoError(t, err)
	assert.False(t, h.orchestrator.running.Load(), "released after the check")
}

func TestCheckAllOrigins(t *testing.T) {
	settings := baseSettings()
	settings.Origins = []string{"SZX", "SHA", "BJS"}
	h := newHarness(t, settings)

	report, err := h.orchestrator.CheckAllOrigins(context.Background(), "bjs")
	require.NoError(t, err)
	assert.Equal(t, []string{"SZX-BJS-roundtrip", "SHA-BJS-roundtrip"}, h.fares.lookups)
	assert.Equal(t, 2, report.PairsAttempted)
}

func TestCheckInternational(t *testing.T) {
	h := newHarness(t, baseSettings())
	h.fares.international["SZX-TYO"] = []entity.InternationalFare{
		{DepartureDate: "20250612", ReturnDate: "20250615", Price: price("2400")},
		{DepartureDate: "20250612", ReturnDate: "bad", Price: price("1000")},
	}

	report, err := h.orchestrator.CheckInternational(context.Background(), "SZX", "TYO")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	assert.True(t, report.NotificationSent)
}

func TestBestDeals_MergesOrigins(t *testing.T) {
	settings := baseSettings()
	settings.Origins = []string{"SZX", "CAN"}
	h := newHarness(t, settings)

	dep := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	deal := func(origin, dest, p string) *entity.CurrentPrice {
		return &entity.CurrentPrice{
			RouteKey: entity.RouteKey{Origin: origin, Destination: dest, DepartureDate: dep, ReturnDate: dep.AddDate(0, 0, 3)},
			Price:    price(p),
		}
	}
	h.prices.deals = map[string][]*entity.CurrentPrice{
		"SZX": {deal("SZX", "BJS", "500"), deal("SZX", "SHA", "700")},
		"CAN": {deal("CAN", "BJS", "450"), deal("CAN", "CTU", "650")},
	}

	deals, err := h.orchestrator.BestDeals(context.Background(), nil, nil, 3)
	require.NoError(t, err)
	require.Len(t, deals, 3)

	got := make([]string, 0, len(deals))
	for _, d := range deals {
		got = append(got, d.Origin+"-"+d.Destination)
	}
	assert.Equal(t, "CAN-BJS,SZX-BJS,CAN-CTU", strings.Join(got, ","))
}
