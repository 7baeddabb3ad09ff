package core

import "time"

const dateLayout = "2006-01-02"

// DetectFutureDates flags invoices dated strictly after the calendar date of now.
// Dates that do not parse as YYYY-MM-DD are ignored.
func DetectFutureDates(invoices []Invoice, now time.Time) []FutureDate {
	today := civilDate(now)
	flags := make([]FutureDate, 0)
	for _, inv := range invoices {
		d, err := time.Parse(dateLayout, inv.Date)
		if err != nil {
			continue
		}
		if d.After(today) {
			flags = append(flags, FutureDate{InvoiceID: inv.InvoiceID, Date: inv.Date})
		}
	}
	return flags
}

// civilDate drops the clock part of t, keeping the calendar date in t's own location,
// and returns it as UTC midnight so it compares against time.Parse results.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
