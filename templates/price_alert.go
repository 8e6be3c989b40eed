package templates

import (
	"fmt"
	"strings"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/pkg/utils"
)

// AlertTitle is the push notification title for price alerts
const AlertTitle = "Flight Price Alert"

// FormatAlertLine renders one alert as
// "{from}->{to}, departure: YYYY-MM-DD, return: YYYY-MM-DD, price: {price}"
func FormatAlertLine(alert entity.PriceAlert, names entity.LocationNames) string {
	return fmt.Sprintf("%s->%s, departure: %s, return: %s, price: %s",
		names.Name(alert.Origin),
		names.Name(alert.Destination),
		utils.FormatDate(alert.DepartureDate),
		utils.FormatDate(alert.ReturnDate),
		alert.Price.String())
}

// FormatAlerts renders alerts one per line, each line newline-terminated
func FormatAlerts(alerts []entity.PriceAlert, names entity.LocationNames) string {
	var b strings.Builder
	for _, alert := range alerts {
		b.WriteString(FormatAlertLine(alert, names))
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatDealsTable renders best deals as a fixed-width table for terminal output
func FormatDealsTable(deals []*entity.CurrentPrice, names entity.LocationNames) string {
	rule := strings.Repeat("-", 80)

	var b strings.Builder
	fmt.Fprintf(&b, "\nCurrent %d best fares:\n", len(deals))
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%-10s %-10s %-12s %-12s %10s %-20s\n", "From", "To", "Departure", "Return", "Price", "Last checked")
	b.WriteString(rule + "\n")
	for _, deal := range deals {
		fmt.Fprintf(&b, "%-10s %-10s %-12s %-12s %10s %-20s\n",
			names.Name(deal.Origin),
			names.Name(deal.Destination),
			utils.FormatDate(deal.DepartureDate),
			utils.FormatDate(deal.ReturnDate),
			deal.Price.StringFixed(2),
			deal.LastChecked.Format("2006-01-02 15:04"))
	}
	b.WriteString(rule + "\n")
	return b.String()
}
