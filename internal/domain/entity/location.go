package entity

// Location maps an IATA code to its display name
type Location struct {
	ID       uint
	Code     string
	Name     string
	Domestic bool
}

// LocationNames resolves IATA codes to display names
type LocationNames map[string]string

// NewLocationNames indexes locations by code
func NewLocationNames(locations []*Location) LocationNames {
	names := make(LocationNames, len(locations))
	for _, loc := range locations {
		names[loc.Code] = loc.Name
	}
	return names
}

// Name returns the display name for code, or the code itself when unknown
func (n LocationNames) Name(code string) string {
	if name, ok := n[code]; ok && name != "" {
		return name
	}
	return code
}
