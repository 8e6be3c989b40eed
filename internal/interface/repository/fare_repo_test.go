package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/domain/repository"
	"flight-alert-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fareServer(t *testing.T, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFareRepository_SearchDomestic(t *testing.T) {
	server := fareServer(t, `{
		"status": 0,
		"data": {
			"roundTripPrice": {"20250605": {"20250608": 750, "20250609": "810.5"}},
			"oneWayPrice": {"20250605": 420}
		}
	}`, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Roundtrip", q.Get("flightWay"))
		assert.Equal(t, "SZX", q.Get("dcity"))
		assert.Equal(t, "BJS", q.Get("acity"))
		assert.Equal(t, "true", q.Get("direct"))
		assert.Equal(t, "false", q.Get("army"))
		assert.Equal(t, "ua", r.Header.Get("User-Agent"))
	})

	repo := NewHTTPFareRepository(FareOptions{DomesticURL: server.URL, UserAgent: "ua", Direct: true}, logger.NewNop())
	fares, err := repo.SearchDomestic(context.Background(), "SZX", "BJS", entity.RoundTrip)
	require.NoError(t, err)

	assert.True(t, fares.RoundTrip["20250605"]["20250608"].Equal(decimal.NewFromInt(750)))
	assert.True(t, fares.RoundTrip["20250605"]["20250609"].Equal(decimal.RequireFromString("810.5")))
	assert.True(t, fares.OneWay["20250605"].Equal(decimal.NewFromInt(420)))
}

func TestFareRepository_SearchDomesticOneWayFlag(t *testing.T) {
	server := fareServer(t, `{"status": 0, "data": {"oneWayPrice": {}}}`, func(r *http.Request) {
		assert.Equal(t, "Oneway", r.URL.Query().Get("flightWay"))
	})

	repo := NewHTTPFareRepository(FareOptions{DomesticURL: server.URL}, logger.NewNop())
	fares, err := repo.SearchDomestic(context.Background(), "SZX", "BJS", entity.OneWay)
	require.NoError(t, err)
	assert.NotNil(t, fares.RoundTrip)
	assert.Empty(t, fares.OneWay)
}

func TestFareRepository_SearchDomesticNoData(t *testing.T) {
	server := fareServer(t, `{"status": 2, "data": null}`, nil)

	repo := NewHTTPFareRepository(FareOptions{DomesticURL: server.URL}, logger.NewNop())
	_, err := repo.SearchDomestic(context.Background(), "SZX", "BJS", entity.RoundTrip)
	assert.ErrorIs(t, err, repository.ErrNoFareData)
}

func TestFareRepository_SearchDomesticMalformed(t *testing.T) {
	server := fareServer(t, `{"status": 0, "data": {"roundTripPrice": {"20250605": "oops"}}}`, nil)

	repo := NewHTTPFareRepository(FareOptions{DomesticURL: server.URL}, logger.NewNop())
	_, err := repo.SearchDomestic(context.Background(), "SZX", "BJS", entity.RoundTrip)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNoFareData)
}

func TestFareRepository_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	repo := NewHTTPFareRepository(FareOptions{DomesticURL: server.URL}, logger.NewNop())
	_, err := repo.SearchDomestic(context.Background(), "SZX", "BJS", entity.RoundTrip)
	assert.ErrorContains(t, err, "503")
}

func TestFareRepository_SearchInternational(t *testing.T) {
	server := fareServer(t, `{
		"status": 0,
		"data": {"flightItems": [
			{"depDate": "20250605", "arrDate": "20250608", "price": 2300},
			{"depDate": "20250612", "arrDate": "20250615", "price": "1999.9"}
		]}
	}`, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "CNY", q.Get("currency"))
		assert.Equal(t, "1", q.Get("searchIndex"))
		assert.Equal(t, "TYO", q.Get("acity"))
	})

	repo := NewHTTPFareRepository(FareOptions{InternationalURL: server.URL}, logger.NewNop())
	fares, err := repo.SearchInternational(context.Background(), "SZX", "TYO")
	require.NoError(t, err)
	require.Len(t, fares, 2)
	assert.Equal(t, "20250605", fares[0].DepartureDate)
	assert.True(t, fares[1].Price.Equal(decimal.RequireFromString("1999.9")))
}

func TestFareRepository_SearchInternationalBadStatus(t *testing.T) {
	server := fareServer(t, `{"status": 1}`, nil)

	repo := NewHTTPFareRepository(FareOptions{InternationalURL: server.URL}, logger.NewNop())
	_, err := repo.SearchInternational(context.Background(), "SZX", "TYO")
	assert.ErrorIs(t, err, repository.ErrNoFareData)
}

func TestFareRepository_MissingEndpoint(t *testing.T) {
	repo := NewHTTPFareRepository(FareOptions{}, logger.NewNop())
	_, err := repo.SearchInternational(context.Background(), "SZX", "TYO")
	assert.Error(t, err)
}
