// Package billing holds the flat per-minute metering rules used for parking receipts.
package billing

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Amount is money in minor units (öre for SEK).
type Amount int64

const (
	// DefaultRatePerMinute is 10 kr per minute.
	DefaultRatePerMinute Amount = 1000
	// DefaultCurrency is the ISO code receipts are issued in.
	DefaultCurrency = "SEK"

	minorPerMajor = 100
)

// AmountFromMajor converts a major-unit value (10.5 kr) to minor units, rounding half up.
func AmountFromMajor(major float64) Amount {
	return Amount(math.Floor(major*minorPerMajor + 0.5))
}

// Major returns the amount in major units.
func (a Amount) Major() float64 {
	return float64(a) / minorPerMajor
}

// String formats the amount with two decimals, e.g. "9.83".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/minorPerMajor, v%minorPerMajor)
}

// MarshalJSON encodes the amount as a two-decimal JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number in major units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	major, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("billing: invalid amount %s: %w", data, err)
	}
	*a = AmountFromMajor(major)
	return nil
}

// Cost prices elapsedSeconds at ratePerMinute: elapsed/60 * rate rounded half up to whole minor
// units (two decimals). The computation is exact integer arithmetic, so 59 s at 10.00/min is 9.83
// and 10 s at 0.03/min (0.005) is 0.01. Negative durations and non-positive rates cost nothing.
func Cost(elapsedSeconds int64, ratePerMinute Amount) Amount {
	if elapsedSeconds <= 0 || ratePerMinute <= 0 {
		return 0
	}
	numerator := 2*elapsedSeconds*int64(ratePerMinute) + 60
	return Amount(numerator / 120)
}

// ElapsedSeconds is the whole seconds between start and end, floored. A negative interval (clock
// skew between the stored start and the local clock) is clamped to zero and reported.
func ElapsedSeconds(start, end time.Time) (seconds int64, clamped bool) {
	d := end.Sub(start)
	if d < 0 {
		return 0, true
	}
	return int64(d / time.Second), false
}

// FormatDuration renders seconds as m:ss, the way the parking timer shows it.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
