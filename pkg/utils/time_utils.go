package utils

import "time"

// Billing civil time location (Brasília, -03:00).
// All calendar math (due dates, cycle boundaries, day counts) runs here.
var brLoc = func() *time.Location {
	if loc, err := time.LoadLocation("America/Sao_Paulo"); err == nil {
		return loc
	}
	return time.FixedZone("BRT", -3*3600)
}()

// BillingLocation returns the civil timezone used for all billing math.
func BillingLocation() *time.Location { return brLoc }

// Store epoch seconds in the DB, always.
func NowUnixSeconds() int64 { return time.Now().Unix() }

// Convert an epoch value in seconds to billing time.
// Returns zero time if t<=0 to let callers decide how to render.
func FromUnixSecondsBR(t int64) time.Time {
	if t <= 0 {
		return time.Time{}
	}
	return time.Unix(t, 0).In(brLoc)
}

func FormatRFC3339BR(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(brLoc).Format(time.RFC3339)
}
