package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/domain/repository"
	"flight-alert-service/pkg/logger"
	"flight-alert-service/pkg/metrics"
	"flight-alert-service/pkg/utils"
	"flight-alert-service/templates"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrPassInProgress is returned when a pass is requested while another is running
var ErrPassInProgress = errors.New("orchestration pass already in progress")

const (
	DefaultDomesticWindowDays      = 28
	DefaultInternationalWindowDays = 60
	DefaultReturnOffsetDays        = 3
	DefaultDealLimit               = 5

	flushTimeout = 30 * time.Second
)

// AlertSettings is the tracking configuration for the orchestrator
type AlertSettings struct {
	Origins                   []string
	Destinations              []string
	InternationalDestinations []string
	TargetPrice               decimal.Decimal
	InternationalTargetPrice  decimal.Decimal

	// Replace Destinations with the location table's domestic codes when available
	UseEligibleDestinations bool
	TrackOneWay             bool

	DomesticWindowDays      int
	InternationalWindowDays int
	ReturnOffsetDays        int
}

func (s AlertSettings) withDefaults() AlertSettings {
	if s.DomesticWindowDays <= 0 {
		s.DomesticWindowDays = DefaultDomesticWindowDays
	}
	if s.InternationalWindowDays <= 0 {
		s.InternationalWindowDays = DefaultInternationalWindowDays
	}
	if s.ReturnOffsetDays <= 0 {
		s.ReturnOffsetDays = DefaultReturnOffsetDays
	}
	return s
}

// AlertOrchestrator runs fare lookups, records prices and dispatches alerts
type AlertOrchestrator struct {
	prices    repository.PriceRepository
	locations repository.LocationRepository
	fares     repository.FareRepository
	notifier  repository.NotificationRepository
	alertLog  repository.AlertLogRepository
	metrics   *metrics.Metrics
	logger    logger.Logger
	settings  AlertSettings

	running  atomic.Bool
	pause    func(ctx context.Context) error
	now      func() time.Time
	newRunID func() string
}

// NewAlertOrchestrator creates a new alert orchestrator. alertLog may be nil.
func NewAlertOrchestrator(
	prices repository.PriceRepository,
	locations repository.LocationRepository,
	fares repository.FareRepository,
	notifier repository.NotificationRepository,
	alertLog repository.AlertLogRepository,
	metrics *metrics.Metrics,
	logger logger.Logger,
	settings AlertSettings,
) *AlertOrchestrator {
	return &AlertOrchestrator{
		prices:    prices,
		locations: locations,
		fares:     fares,
		notifier:  notifier,
		alertLog:  alertLog,
		metrics:   metrics,
		logger:    logger,
		settings:  settings.withDefaults(),
		pause:     randomPause,
		now:       time.Now,
		newRunID:  func() string { return uuid.NewString() },
	}
}

// Settings returns the effective tracking settings
func (o *AlertOrchestrator) Settings() AlertSettings {
	return o.settings
}

// randomPause waits 1-3 whole seconds plus a random fraction between fare lookups
func randomPause(ctx context.Context) error {
	d := time.Duration(1+rand.IntN(3))*time.Second + time.Duration(rand.Float64()*float64(time.Second))
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// pass is the state of one orchestration run
type pass struct {
	report  *entity.RunReport
	buffer  *entity.PendingAlertBuffer
	names   entity.LocationNames
	lookups int
}

func (o *AlertOrchestrator) newPass(ctx context.Context) *pass {
	return &pass{
		report: &entity.RunReport{
			RunID:     o.newRunID(),
			StartedAt: o.now(),
		},
		buffer: entity.NewPendingAlertBuffer(),
		names:  o.LocationNames(ctx),
	}
}

// LocationNames loads the code to display name map. Lookup failures yield an empty map.
func (o *AlertOrchestrator) LocationNames(ctx context.Context) entity.LocationNames {
	locations, err := o.locations.All(ctx)
	if err != nil {
		o.logger.Error("Failed to load IATA codes", "error", err)
		return entity.LocationNames{}
	}
	o.logger.Debug("Loaded IATA codes", "count", len(locations))
	return entity.NewLocationNames(locations)
}

// destinations returns the domestic destinations for a pass
func (o *AlertOrchestrator) destinations(ctx context.Context) []string {
	if o.settings.UseEligibleDestinations {
		eligible, err := o.locations.EligibleDestinations(ctx)
		if err != nil {
			o.logger.Error("Failed to load eligible destinations, using configured list", "error", err)
		} else if len(eligible) > 0 {
			return eligible
		}
	}
	return o.settings.Destinations
}

// beforeLookup pauses between consecutive fare lookups of a pass
func (o *AlertOrchestrator) beforeLookup(ctx context.Context, p *pass) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.lookups > 0 {
		if err := o.pause(ctx); err != nil {
			return err
		}
	}
	p.lookups++
	return nil
}

// acquire marks a check as running. Every entry point holds it so fare
// lookups never overlap.
func (o *AlertOrchestrator) acquire() error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrPassInProgress
	}
	return nil
}

func (o *AlertOrchestrator) release() {
	o.running.Store(false)
}

// RunPass checks every configured origin against every destination, then
// dispatches the queued alerts as one notification.
func (o *AlertOrchestrator) RunPass(ctx context.Context) (*entity.RunReport, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	p := o.newPass(ctx)
	destinations := o.destinations(ctx)

	o.logger.Info("Starting price check pass",
		"runId", p.report.RunID,
		"origins", len(o.settings.Origins),
		"destinations", len(destinations),
		"international", len(o.settings.InternationalDestinations))

	err := o.checkPairs(ctx, p, o.settings.Origins, destinations, o.checkDomestic)
	if err == nil && len(o.settings.InternationalDestinations) > 0 {
		err = o.checkPairs(ctx, p, o.settings.Origins, o.settings.InternationalDestinations, o.checkInternational)
	}

	o.flush(ctx, p)
	o.finish(p)

	if err != nil {
		o.logger.Warn("Price check pass interrupted", "runId", p.report.RunID, "error", err)
		return p.report, err
	}
	return p.report, nil
}

// CheckRoute runs auto mode for one pair. Alerts are returned, not dispatched.
func (o *AlertOrchestrator) CheckRoute(ctx context.Context, origin, destination string) (*entity.RunReport, []entity.PriceAlert, error) {
	origin, destination = normalizeCode(origin), normalizeCode(destination)
	if origin == destination {
		return nil, nil, fmt.Errorf("%w: origin equals destination %s", repository.ErrInvalidInput, origin)
	}
	if err := o.acquire(); err != nil {
		return nil, nil, err
	}
	defer o.release()

	p := o.newPass(ctx)
	p.report.PairsAttempted++
	o.checkDomestic(ctx, p, origin, destination)

	alerts := p.buffer.Drain()
	p.report.AlertsQueued = len(alerts)
	o.finish(p)
	return p.report, alerts, nil
}

// CheckRouteDates checks one explicit departure/return pair. The price is
// recorded only when below maxPrice (targetPrice when nil), then alerts are dispatched.
func (o *AlertOrchestrator) CheckRouteDates(ctx context.Context, origin, destination string, dep, ret time.Time, maxPrice *decimal.Decimal) (*entity.RunReport, error) {
	origin, destination = normalizeCode(origin), normalizeCode(destination)
	if origin == destination {
		return nil, fmt.Errorf("%w: origin equals destination %s", repository.ErrInvalidInput, origin)
	}
	if ret.Before(dep) {
		return nil, fmt.Errorf("%w: return date before departure date", repository.ErrInvalidInput)
	}
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	target := o.settings.TargetPrice
	if maxPrice != nil {
		target = *maxPrice
	}

	p := o.newPass(ctx)
	p.report.PairsAttempted++

	fares, ok := o.searchDomestic(ctx, p, origin, destination, entity.RoundTrip)
	if ok {
		price := fares.RoundTrip[utils.FormatCompactDate(dep)][utils.FormatCompactDate(ret)]
		if price.IsPositive() && price.LessThan(target) {
			o.record(ctx, p, entity.RouteKey{
				Origin:        origin,
				Destination:   destination,
				DepartureDate: utils.TruncateToDate(dep),
				ReturnDate:    utils.TruncateToDate(ret),
				TripType:      entity.RoundTrip,
			}, price, target)
		} else {
			o.logger.Info("No qualifying fare for dates",
				"origin", origin, "destination", destination,
				"depDate", utils.FormatDate(dep), "retDate", utils.FormatDate(ret),
				"price", price.String(), "target", target.String())
		}
	}

	o.flush(ctx, p)
	o.finish(p)
	return p.report, nil
}

// CheckAllOrigins checks every configured origin against one destination, then dispatches alerts
func (o *AlertOrchestrator) CheckAllOrigins(ctx context.Context, destination string) (*entity.RunReport, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	p := o.newPass(ctx)
	err := o.checkPairs(ctx, p, o.settings.Origins, []string{normalizeCode(destination)}, o.checkDomestic)

	o.flush(ctx, p)
	o.finish(p)
	return p.report, err
}

// CheckInternational checks one international pair with the international
// window and threshold, then dispatches alerts.
func (o *AlertOrchestrator) CheckInternational(ctx context.Context, origin, destination string) (*entity.RunReport, error) {
	origin, destination = normalizeCode(origin), normalizeCode(destination)
	if origin == destination {
		return nil, fmt.Errorf("%w: origin equals destination %s", repository.ErrInvalidInput, origin)
	}
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	p := o.newPass(ctx)
	p.report.PairsAttempted++
	o.checkInternational(ctx, p, origin, destination)

	o.flush(ctx, p)
	o.finish(p)
	return p.report, nil
}

// BestDeals merges the cheapest records of each origin. Nil origins and
// maxPrice fall back to the configured origins and targetPrice.
func (o *AlertOrchestrator) BestDeals(ctx context.Context, origins []string, maxPrice *decimal.Decimal, limit int) ([]*entity.CurrentPrice, error) {
	if len(origins) == 0 {
		origins = o.settings.Origins
	}
	if maxPrice == nil {
		target := o.settings.TargetPrice
		maxPrice = &target
	}
	if limit <= 0 {
		limit = DefaultDealLimit
	}

	var all []*entity.CurrentPrice
	for _, origin := range origins {
		deals, err := o.prices.BestDeals(ctx, entity.DealFilter{
			Origin:   normalizeCode(origin),
			MaxPrice: maxPrice,
			Limit:    limit,
		})
		if err != nil {
			return nil, fmt.Errorf("best deals for %s: %w", origin, err)
		}
		all = append(all, deals...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Price.Equal(all[j].Price) {
			return all[i].Price.LessThan(all[j].Price)
		}
		if !all[i].DepartureDate.Equal(all[j].DepartureDate) {
			return all[i].DepartureDate.Before(all[j].DepartureDate)
		}
		return all[i].Destination < all[j].Destination
	})

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type pairCheck func(ctx context.Context, p *pass, origin, destination string)

func (o *AlertOrchestrator) checkPairs(ctx context.Context, p *pass, origins, destinations []string, check pairCheck) error {
	for _, origin := range origins {
		for _, destination := range destinations {
			if origin == destination {
				continue
			}
			if err := o.beforeLookup(ctx, p); err != nil {
				return err
			}

			o.logger.Info("Processing flights", "origin", origin, "destination", destination)
			p.report.PairsAttempted++
			check(ctx, p, origin, destination)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *AlertOrchestrator) searchDomestic(ctx context.Context, p *pass, origin, destination string, tripType entity.TripType) (*entity.DomesticFares, bool) {
	fares, err := o.fares.SearchDomestic(ctx, origin, destination, tripType)
	if err != nil {
		o.lookupFailed(p, "domestic", err)
		return nil, false
	}
	o.metrics.FareLookups.WithLabelValues("domestic", "ok").Inc()
	return fares, true
}

func (o *AlertOrchestrator) lookupFailed(p *pass, endpoint string, err error) {
	p.report.PairsWithoutData++
	if errors.Is(err, repository.ErrNoFareData) {
		o.metrics.FareLookups.WithLabelValues(endpoint, "no_data").Inc()
		return
	}
	o.metrics.FareLookups.WithLabelValues(endpoint, "error").Inc()
	o.metrics.ErrorsCount.WithLabelValues("fare_lookup").Inc()
}

// checkDomestic keeps Thursday/Friday departures inside the domestic window
// with a return ReturnOffsetDays later.
func (o *AlertOrchestrator) checkDomestic(ctx context.Context, p *pass, origin, destination string) {
	fares, ok := o.searchDomestic(ctx, p, origin, destination, entity.RoundTrip)
	if ok {
		today := utils.TruncateToDate(o.now())
		for _, depStr := range sortedKeys(fares.RoundTrip) {
			dep, ok := o.candidateDate(depStr, today, o.settings.DomesticWindowDays)
			if !ok {
				continue
			}
			ret := dep.AddDate(0, 0, o.settings.ReturnOffsetDays)
			price := fares.RoundTrip[depStr][utils.FormatCompactDate(ret)]
			if !price.IsPositive() {
				continue
			}
			o.record(ctx, p, entity.RouteKey{
				Origin:        origin,
				Destination:   destination,
				DepartureDate: dep,
				ReturnDate:    ret,
				TripType:      entity.RoundTrip,
			}, price, o.settings.TargetPrice)
		}
	}

	if o.settings.TrackOneWay {
		o.checkOneWay(ctx, p, origin, destination)
	}
}

func (o *AlertOrchestrator) checkOneWay(ctx context.Context, p *pass, origin, destination string) {
	if err := o.beforeLookup(ctx, p); err != nil {
		return
	}
	fares, ok := o.searchDomestic(ctx, p, origin, destination, entity.OneWay)
	if !ok {
		return
	}

	today := utils.TruncateToDate(o.now())
	for _, depStr := range sortedKeys(fares.OneWay) {
		dep, ok := o.candidateDate(depStr, today, o.settings.DomesticWindowDays)
		if !ok {
			continue
		}
		price := fares.OneWay[depStr]
		if !price.IsPositive() {
			continue
		}
		o.record(ctx, p, entity.RouteKey{
			Origin:        origin,
			Destination:   destination,
			DepartureDate: dep,
			ReturnDate:    dep,
			TripType:      entity.OneWay,
		}, price, o.settings.TargetPrice)
	}
}

func (o *AlertOrchestrator) checkInternational(ctx context.Context, p *pass, origin, destination string) {
	fares, err := o.fares.SearchInternational(ctx, origin, destination)
	if err != nil {
		o.lookupFailed(p, "international", err)
		return
	}
	o.metrics.FareLookups.WithLabelValues("international", "ok").Inc()

	today := utils.TruncateToDate(o.now())
	for _, fare := range fares {
		dep, ok := o.candidateDate(fare.DepartureDate, today, o.settings.InternationalWindowDays)
		if !ok {
			continue
		}
		ret, err := utils.ParseDate(fare.ReturnDate)
		if err != nil || ret.Before(dep) {
			o.logger.Debug("Skipping fare with bad return date",
				"origin", origin, "destination", destination, "retDate", fare.ReturnDate)
			continue
		}
		if !fare.Price.IsPositive() {
			continue
		}
		o.record(ctx, p, entity.RouteKey{
			Origin:        origin,
			Destination:   destination,
			DepartureDate: dep,
			ReturnDate:    ret,
			TripType:      entity.RoundTrip,
		}, fare.Price, o.settings.InternationalTargetPrice)
	}
}

// candidateDate parses a fare date and applies the weekday and lookahead filter
func (o *AlertOrchestrator) candidateDate(raw string, today time.Time, windowDays int) (time.Time, bool) {
	dep, err := utils.ParseDate(raw)
	if err != nil {
		o.logger.Debug("Skipping fare with bad departure date", "depDate", raw)
		return time.Time{}, false
	}
	if !utils.IsThursdayOrFriday(dep) || !utils.WithinLookahead(today, dep, windowDays) {
		return time.Time{}, false
	}
	return dep, true
}

// record upserts one candidate and queues an alert for new or changed prices below target
func (o *AlertOrchestrator) record(ctx context.Context, p *pass, key entity.RouteKey, price, target decimal.Decimal) {
	p.report.Candidates++

	result, err := o.prices.Upsert(ctx, entity.PriceObservation{
		RouteKey: key,
		Price:    price,
		Currency: entity.DefaultCurrency,
	})
	if err != nil {
		p.report.StoreErrors++
		o.metrics.ErrorsCount.WithLabelValues("upsert").Inc()
		o.logger.Error("Failed to record price", append(key.LogFields(), "price", price.String(), "error", err)...)
		return
	}

	p.report.Count(result)
	o.metrics.PriceUpserts.WithLabelValues(result.String()).Inc()

	if result.IsAlertable() && price.LessThan(target) {
		p.buffer.Add(entity.PriceAlert{
			RouteKey: key,
			Price:    price,
			Currency: entity.DefaultCurrency,
			Result:   result,
		})
		o.metrics.AlertsQueued.Inc()
	}
}

// flush sends the queued alerts as one notification and empties the buffer,
// whether or not the send succeeds. It runs even after ctx is cancelled.
func (o *AlertOrchestrator) flush(ctx context.Context, p *pass) {
	alerts := p.buffer.Drain()
	p.report.AlertsQueued = len(alerts)
	if len(alerts) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	message := templates.FormatAlerts(alerts, p.names)
	sent := o.notifier.Send(ctx, templates.AlertTitle, message)
	p.report.NotificationSent = sent

	outcome := "sent"
	if !sent {
		outcome = "failed"
		o.metrics.ErrorsCount.WithLabelValues("notify").Inc()
	}
	o.metrics.NotificationsSent.WithLabelValues(outcome).Inc()

	o.logger.Info("Dispatched price alerts",
		"runId", p.report.RunID,
		"alerts", len(alerts),
		"sent", sent)

	if o.alertLog == nil {
		return
	}
	dispatch := &entity.AlertDispatch{
		RunID:      p.report.RunID,
		Title:      templates.AlertTitle,
		Message:    message,
		AlertCount: len(alerts),
		Success:    sent,
		SentAt:     o.now().UTC(),
	}
	if !sent {
		dispatch.Error = "push send failed"
	}
	if err := o.alertLog.Record(ctx, dispatch); err != nil {
		o.metrics.ErrorsCount.WithLabelValues("alert_log").Inc()
		o.logger.Error("Failed to record alert dispatch", "runId", p.report.RunID, "error", err)
	}
}

func (o *AlertOrchestrator) finish(p *pass) {
	p.report.FinishedAt = o.now()
	o.metrics.PassDuration.Observe(p.report.FinishedAt.Sub(p.report.StartedAt).Seconds())

	o.logger.Info("Price check finished",
		"runId", p.report.RunID,
		"pairs", p.report.PairsAttempted,
		"noData", p.report.PairsWithoutData,
		"candidates", p.report.Candidates,
		"new", p.report.New,
		"changed", p.report.Changed,
		"unchanged", p.report.Unchanged,
		"storeErrors", p.report.StoreErrors,
		"alerts", p.report.AlertsQueued)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
