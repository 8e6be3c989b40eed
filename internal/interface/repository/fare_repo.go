package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/domain/repository"
	"flight-alert-service/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	domesticFareTimeout      = 3 * time.Second
	internationalFareTimeout = 5 * time.Second

	// domestic endpoint: no data for the route
	domesticStatusNoData = 2
	// international endpoint: success
	internationalStatusOK = 0
)

// FareOptions controls the fare search query
type FareOptions struct {
	DomesticURL      string
	InternationalURL string
	UserAgent        string
	Direct           bool
	Army             bool
}

// HTTPFareRepository queries the public lowest-price fare endpoints
type HTTPFareRepository struct {
	logger   logger.Logger
	opts     FareOptions
	domestic *http.Client
	intl     *http.Client
}

// NewHTTPFareRepository creates a new fare search repository
func NewHTTPFareRepository(opts FareOptions, logger logger.Logger) repository.FareRepository {
	return &HTTPFareRepository{
		logger:   logger,
		opts:     opts,
		domestic: &http.Client{Timeout: domesticFareTimeout},
		intl:     &http.Client{Timeout: internationalFareTimeout},
	}
}

type domesticFareResponse struct {
	Status int `json:"status"`
	Data   *struct {
		RoundTripPrice map[string]map[string]decimal.Decimal `json:"roundTripPrice"`
		OneWayPrice    map[string]decimal.Decimal            `json:"oneWayPrice"`
	} `json:"data"`
}

type internationalFareResponse struct {
	Status int `json:"status"`
	Data   *struct {
		FlightItems []struct {
			DepDate string          `json:"depDate"`
			ArrDate string          `json:"arrDate"`
			Price   decimal.Decimal `json:"price"`
		} `json:"flightItems"`
	} `json:"data"`
}

func flightWay(tripType entity.TripType) string {
	if tripType == entity.OneWay {
		return "Oneway"
	}
	return "Roundtrip"
}

// SearchDomestic returns the price calendar for one domestic route
func (r *HTTPFareRepository) SearchDomestic(ctx context.Context, origin, destination string, tripType entity.TripType) (*entity.DomesticFares, error) {
	params := url.Values{}
	params.Set("flightWay", flightWay(tripType))
	params.Set("dcity", origin)
	params.Set("acity", destination)
	params.Set("direct", strconv.FormatBool(r.opts.Direct))
	params.Set("army", strconv.FormatBool(r.opts.Army))

	var response domesticFareResponse
	if err := r.get(ctx, r.domestic, r.opts.DomesticURL, params, &response); err != nil {
		r.logger.Error("Failed to get flight info",
			"origin", origin, "destination", destination, "error", err)
		return nil, err
	}

	if response.Status == domesticStatusNoData || response.Data == nil {
		r.logger.Debug("No fare data for route",
			"origin", origin, "destination", destination, "status", response.Status)
		return nil, repository.ErrNoFareData
	}

	fares := &entity.DomesticFares{
		RoundTrip: response.Data.RoundTripPrice,
		OneWay:    response.Data.OneWayPrice,
	}
	if fares.RoundTrip == nil {
		fares.RoundTrip = map[string]map[string]decimal.Decimal{}
	}
	if fares.OneWay == nil {
		fares.OneWay = map[string]decimal.Decimal{}
	}
	return fares, nil
}

// SearchInternational returns the round-trip fare items for one international route
func (r *HTTPFareRepository) SearchInternational(ctx context.Context, origin, destination string) ([]entity.InternationalFare, error) {
	params := url.Values{}
	params.Set("flightWay", flightWay(entity.RoundTrip))
	params.Set("dcity", origin)
	params.Set("acity", destination)
	params.Set("direct", strconv.FormatBool(r.opts.Direct))
	params.Set("currency", entity.DefaultCurrency)
	params.Set("searchIndex", "1")

	var response internationalFareResponse
	if err := r.get(ctx, r.intl, r.opts.InternationalURL, params, &response); err != nil {
		r.logger.Error("Failed to get international flight info",
			"origin", origin, "destination", destination, "error", err)
		return nil, err
	}

	if response.Status != internationalStatusOK || response.Data == nil {
		r.logger.Debug("No international fare data for route",
			"origin", origin, "destination", destination, "status", response.Status)
		return nil, repository.ErrNoFareData
	}

	fares := make([]entity.InternationalFare, 0, len(response.Data.FlightItems))
	for _, item := range response.Data.FlightItems {
		fares = append(fares, entity.InternationalFare{
			DepartureDate: item.DepDate,
			ReturnDate:    item.ArrDate,
			Price:         item.Price,
		})
	}
	return fares, nil
}

func (r *HTTPFareRepository) get(ctx context.Context, client *http.Client, endpoint string, params url.Values, out interface{}) error {
	if endpoint == "" {
		return fmt.Errorf("fare endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if r.opts.UserAgent != "" {
		req.Header.Set("User-Agent", r.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("fare service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
