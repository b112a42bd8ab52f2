package order

import (
	"fmt"
	"time"
)

const numberPrefix = "FTC"

// DayKey returns the YYYYMMDD business day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("20060102")
}

// FormatNumber renders an order number such as FTC-20250314-0007. Sequences
// above 9999 keep all their digits.
func FormatNumber(day string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", numberPrefix, day, seq)
}
