package models

import (
	"fmt"
	"time"
)

// Period identifies a single billing month. Readings are stored against the
// first day of the month in UTC.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses a YYYY-MM billing period string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, &ValidationError{
			Field:   "period",
			Value:   s,
			Message: "invalid period format, expected YYYY-MM",
		}
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the billing period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Start returns the first instant of the period in UTC, the canonical value
// stored in the reading_period column.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the period n months after p (n may be negative).
func (p Period) AddMonths(n int) Period {
	return PeriodOf(p.Start().AddDate(0, n, 0))
}

// Before reports whether p precedes other.
func (p Period) Before(other Period) bool {
	return p.Start().Before(other.Start())
}

// String returns the YYYY-MM form of the period.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == 0
}
