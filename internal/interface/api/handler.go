package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/domain/repository"
	"flight-alert-service/pkg/logger"
	"flight-alert-service/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const queryTimeout = 10 * time.Second

// Pinger checks database connectivity
type Pinger func(ctx context.Context) error

// FlightHandler serves the read-only price API
type FlightHandler struct {
	prices    repository.PriceRepository
	locations repository.LocationRepository
	alertLog  repository.AlertLogRepository
	ping      Pinger
	logger    logger.Logger
}

// NewFlightHandler creates a new flight handler. alertLog may be nil.
func NewFlightHandler(
	prices repository.PriceRepository,
	locations repository.LocationRepository,
	alertLog repository.AlertLogRepository,
	ping Pinger,
	logger logger.Logger,
) *FlightHandler {
	return &FlightHandler{
		prices:    prices,
		locations: locations,
		alertLog:  alertLog,
		ping:      ping,
		logger:    logger,
	}
}

// FlightResponse is one current price row with display names
type FlightResponse struct {
	PlaceFrom    string          `json:"place_from"`
	PlaceTo      string          `json:"place_to"`
	DepDate      string          `json:"dep_date"`
	ArrDate      string          `json:"arr_date"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	LastChecked  time.Time       `json:"last_checked"`
	IsRoundtrip  bool            `json:"is_roundtrip"`
	CityName     string          `json:"city_name"`
	FromCityName string          `json:"from_city_name"`
}

// HistoryResponse is one recorded price transition
type HistoryResponse struct {
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
	Currency  string          `json:"currency"`
	ChangedAt time.Time       `json:"changed_at"`
}

// DepartureCityResponse is one origin present in the price table
type DepartureCityResponse struct {
	IataCode string `json:"iata_code"`
	CityName string `json:"city_name"`
}

func (h *FlightHandler) fail(c *gin.Context, status int, operation string, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("API request failed", "operation", operation, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{
		"error":   operation,
		"message": err.Error(),
	})
}

// Root is a liveness text endpoint
func (h *FlightHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, "API server is running")
}

// Health reports process health
func (h *FlightHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "Healthy")
}

// TestDB pings the database
func (h *FlightHandler) TestDB(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "database connection failed",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "database connection ok"})
}

// DepartureCities lists the origins that have tracked prices
func (h *FlightHandler) DepartureCities(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	origins, err := h.prices.DepartureOrigins(ctx)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to load departure cities", err)
		return
	}

	out := make([]DepartureCityResponse, 0, len(origins))
	for _, origin := range origins {
		out = append(out, DepartureCityResponse{IataCode: origin.Code, CityName: origin.Name})
	}
	c.JSON(http.StatusOK, out)
}

// Flights lists current prices, most recently checked first. ?departure and ?destination filter.
func (h *FlightHandler) Flights(c *gin.Context) {
	departure := strings.ToUpper(strings.TrimSpace(c.Query("departure")))
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		h.fail(c, http.StatusBadRequest, "invalid limit", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	rows, err := h.prices.Latest(ctx, entity.LatestFilter{
		Origin:      departure,
		Destination: strings.ToUpper(strings.TrimSpace(c.Query("destination"))),
		Limit:       limit,
	})
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to load flights", err)
		return
	}

	c.JSON(http.StatusOK, h.toFlights(ctx, rows))
}

// Deals lists the cheapest current prices
func (h *FlightHandler) Deals(c *gin.Context) {
	filter := entity.DealFilter{
		Origin: strings.ToUpper(strings.TrimSpace(c.Query("departure"))),
	}

	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		h.fail(c, http.StatusBadRequest, "invalid limit", err)
		return
	}
	filter.Limit = limit

	if raw := c.Query("maxPrice"); raw != "" {
		maxPrice, err := decimal.NewFromString(raw)
		if err != nil {
			h.fail(c, http.StatusBadRequest, "invalid maxPrice", err)
			return
		}
		filter.MaxPrice = &maxPrice
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	rows, err := h.prices.BestDeals(ctx, filter)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to load deals", err)
		return
	}

	c.JSON(http.StatusOK, h.toFlights(ctx, rows))
}

// History lists the price transitions of one tracked fare
func (h *FlightHandler) History(c *gin.Context) {
	key, err := routeKeyFromQuery(c)
	if err != nil {
		h.fail(c, http.StatusBadRequest, "invalid route", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	changes, err := h.prices.History(ctx, key)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to load history", err)
		return
	}

	out := make([]HistoryResponse, 0, len(changes))
	for _, change := range changes {
		out = append(out, HistoryResponse{
			OldPrice:  change.OldPrice,
			NewPrice:  change.NewPrice,
			Currency:  change.Currency,
			ChangedAt: change.ChangedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Alerts lists recent notification dispatches
func (h *FlightHandler) Alerts(c *gin.Context) {
	if h.alertLog == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert log disabled", "message": "MONGODB_DSN is not configured"})
		return
	}

	limit, err := intQuery(c, "limit", 20)
	if err != nil {
		h.fail(c, http.StatusBadRequest, "invalid limit", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	dispatches, err := h.alertLog.Recent(ctx, limit)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to load alerts", err)
		return
	}
	c.JSON(http.StatusOK, dispatches)
}

func (h *FlightHandler) toFlights(ctx context.Context, rows []*entity.CurrentPrice) []FlightResponse {
	names := entity.LocationNames{}
	if locations, err := h.locations.All(ctx); err != nil {
		h.logger.Warn("Failed to load city names", "error", err)
	} else {
		names = entity.NewLocationNames(locations)
	}

	out := make([]FlightResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, FlightResponse{
			PlaceFrom:    row.Origin,
			PlaceTo:      row.Destination,
			DepDate:      utils.FormatDate(row.DepartureDate),
			ArrDate:      utils.FormatDate(row.ReturnDate),
			Price:        row.Price,
			Currency:     row.Currency,
			LastChecked:  row.LastChecked,
			IsRoundtrip:  row.TripType.IsRoundTrip(),
			CityName:     names.Name(row.Destination),
			FromCityName: names.Name(row.Origin),
		})
	}
	return out
}

func intQuery(c *gin.Context, name string, defaultValue int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return value, nil
}

func routeKeyFromQuery(c *gin.Context) (entity.RouteKey, error) {
	from := strings.ToUpper(strings.TrimSpace(c.Query("from")))
	to := strings.ToUpper(strings.TrimSpace(c.Query("to")))
	if from == "" || to == "" {
		return entity.RouteKey{}, errors.New("from and to are required")
	}

	dep, err := utils.ParseDate(c.Query("dep"))
	if err != nil {
		return entity.RouteKey{}, err
	}
	ret, err := utils.ParseDate(c.Query("ret"))
	if err != nil {
		return entity.RouteKey{}, err
	}

	tripType, err := entity.ParseTripType(c.Query("tripType"))
	if err != nil {
		return entity.RouteKey{}, err
	}

	return entity.RouteKey{
		Origin:        from,
		Destination:   to,
		DepartureDate: dep,
		ReturnDate:    ret,
		TripType:      tripType,
	}, nil
}
