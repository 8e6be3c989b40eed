package app

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"flight-alert-service/internal/domain/entity"
)

// SampleLocations is the built-in location list used when no seed file is given
func SampleLocations() []*entity.Location {
	return []*entity.Location{
		{Code: "BJS", Name: "北京", Domestic: true},
		{Code: "SHA", Name: "上海", Domestic: true},
		{Code: "CAN", Name: "广州", Domestic: true},
		{Code: "SZX", Name: "深圳", Domestic: true},
		{Code: "CTU", Name: "成都", Domestic: true},
		{Code: "HGH", Name: "杭州", Domestic: true},
		{Code: "NKG", Name: "南京", Domestic: true},
		{Code: "XMN", Name: "厦门", Domestic: true},
		{Code: "CKG", Name: "重庆", Domestic: true},
		{Code: "TYN", Name: "太原", Domestic: true},
		{Code: "DLC", Name: "大连", Domestic: true},
		{Code: "TSN", Name: "天津", Domestic: true},
		{Code: "XIY", Name: "西安", Domestic: true},
		{Code: "TNA", Name: "济南", Domestic: true},
		{Code: "TAO", Name: "青岛", Domestic: true},
		{Code: "HKG", Name: "香港", Domestic: false},
		{Code: "TPE", Name: "台北", Domestic: false},
		{Code: "ICN", Name: "首尔", Domestic: false},
		{Code: "NRT", Name: "东京", Domestic: false},
		{Code: "SIN", Name: "新加坡", Domestic: false},
	}
}

// LoadLocationsFile reads a {"CODE": "name"} JSON object. Every entry is
// treated as domestic.
func LoadLocationsFile(path string) ([]*entity.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}

	var names map[string]string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse locations file %s: %w", path, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("locations file %s is empty", path)
	}

	codes := make([]string, 0, len(names))
	for code := range names {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	locations := make([]*entity.Location, 0, len(codes))
	for _, code := range codes {
		locations = append(locations, &entity.Location{
			Code:     strings.ToUpper(strings.TrimSpace(code)),
			Name:     strings.TrimSpace(names[code]),
			Domestic: true,
		})
	}
	return locations, nil
}
