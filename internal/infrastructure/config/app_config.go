package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ErrAppConfigMissing is returned when the tracking config file does not exist
var ErrAppConfigMissing = errors.New("app config file not found")

// AppConfig is the fare tracking configuration read from config.json
type AppConfig struct {
	BaseURL                  string
	InternationalBaseURL     string
	TargetPrice              decimal.Decimal
	InternationalTargetPrice decimal.Decimal
	PlaceFrom                []string
	PlaceTo                  []string
	InternationalPlaceTo     []string

	// When true, PlaceTo is replaced by the domestic codes of the location table
	UseEligibleDestinations bool
	TrackOneWay             bool
	Direct                  bool
}

// LoadAppConfig reads the JSON tracking config at path
func LoadAppConfig(path string) (*AppConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrAppConfigMissing, path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("useEligibleDestinations", true)
	v.SetDefault("trackOneWay", false)
	v.SetDefault("direct", true)
	v.SetDefault("targetPrice", 0)
	v.SetDefault("internationalTargetPrice", 0)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read app config %s: %w", path, err)
	}

	targetPrice, err := decimalValue(v, "targetPrice")
	if err != nil {
		return nil, err
	}
	intlTargetPrice, err := decimalValue(v, "internationalTargetPrice")
	if err != nil {
		return nil, err
	}

	cfg := &AppConfig{
		BaseURL:                  v.GetString("baseUrl"),
		InternationalBaseURL:     v.GetString("internationalBaseUrl"),
		TargetPrice:              targetPrice,
		InternationalTargetPrice: intlTargetPrice,
		PlaceFrom:                codeList(v.Get("placeFrom")),
		PlaceTo:                  codeList(v.Get("placeTo")),
		InternationalPlaceTo:     codeList(v.Get("internationalPlaceTo")),
		UseEligibleDestinations:  v.GetBool("useEligibleDestinations"),
		TrackOneWay:              v.GetBool("trackOneWay"),
		Direct:                   v.GetBool("direct"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields every pass depends on
func (c *AppConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("app config: baseUrl is required")
	}
	if len(c.PlaceFrom) == 0 {
		return errors.New("app config: placeFrom is required")
	}
	if !c.TargetPrice.IsPositive() {
		return errors.New("app config: targetPrice must be positive")
	}
	if len(c.InternationalPlaceTo) > 0 {
		if c.InternationalBaseURL == "" {
			return errors.New("app config: internationalBaseUrl is required with internationalPlaceTo")
		}
		if !c.InternationalTargetPrice.IsPositive() {
			return errors.New("app config: internationalTargetPrice must be positive")
		}
	}
	return nil
}

// DefaultOrigin is the first configured origin
func (c *AppConfig) DefaultOrigin() string {
	if len(c.PlaceFrom) == 0 {
		return ""
	}
	return c.PlaceFrom[0]
}

func decimalValue(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(cast.ToString(v.Get(key)))
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("app config: %s: %w", key, err)
	}
	return d, nil
}

// codeList accepts a single code or a list of codes
func codeList(raw interface{}) []string {
	var items []string
	switch value := raw.(type) {
	case nil:
		return nil
	case string:
		items = []string{value}
	default:
		items = cast.ToStringSlice(value)
	}

	codes := make([]string, 0, len(items))
	for _, item := range items {
		code := strings.ToUpper(strings.TrimSpace(item))
		if code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}
