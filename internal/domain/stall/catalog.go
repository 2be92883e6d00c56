package stall

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

type DayType string

const (
	DayTypeWeekendA DayType = "weekend-a" // Saturday
	DayTypeWeekendB DayType = "weekend-b" // Sunday
)

var (
	ErrInvalidDate  = errors.New("date must be formatted as YYYY-MM-DD")
	ErrNotMarketDay = errors.New("market is only open on Saturday and Sunday")
)

// Stall is a sellable unit of market space for one market day.
type Stall struct {
	ID    string          `json:"id"`
	Zone  string          `json:"zone"`
	Price decimal.Decimal `json:"price"`
}

type Zone struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Stalls int
}

var zones = []Zone{
	{ID: "A", Name: "Zone A", Price: decimal.NewFromInt(43), Stalls: 12},
	{ID: "B", Name: "Zone B", Price: decimal.NewFromInt(30), Stalls: 12},
	{ID: "C", Name: "Zone C", Price: decimal.NewFromInt(15), Stalls: 12},
}

var openZones = map[DayType][]string{
	DayTypeWeekendA: {"A", "B"},
	DayTypeWeekendB: {"A", "B", "C"},
}

// DayTypeOf classifies a market date. Weekdays are not sellable.
func DayTypeOf(date string) (DayType, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	switch t.Weekday() {
	case time.Saturday:
		return DayTypeWeekendA, nil
	case time.Sunday:
		return DayTypeWeekendB, nil
	default:
		return "", fmt.Errorf("%w: %s is a %s", ErrNotMarketDay, date, t.Weekday())
	}
}

// Generate returns the stalls open on the given day type, ordered by zone then number.
// The result is freshly allocated on every call.
func Generate(dayType DayType) []Stall {
	open, ok := openZones[dayType]
	if !ok {
		return nil
	}

	var out []Stall
	for _, z := range zones {
		if !contains(open, z.ID) {
			continue
		}
		for n := 1; n <= z.Stalls; n++ {
			out = append(out, Stall{
				ID:    fmt.Sprintf("%s%02d", z.ID, n),
				Zone:  z.ID,
				Price: z.Price,
			})
		}
	}
	return out
}

// ForDate is DayTypeOf followed by Generate.
func ForDate(date string) (DayType, []Stall, error) {
	dt, err := DayTypeOf(date)
	if err != nil {
		return "", nil, err
	}
	return dt, Generate(dt), nil
}

// Lookup resolves ids against the day's catalog. Ids that are not sold that day
// are returned in unknown, in input order.
func Lookup(dayType DayType, ids []string) (map[string]Stall, []string) {
	all := Generate(dayType)
	index := make(map[string]Stall, len(all))
	for _, s := range all {
		index[s.ID] = s
	}

	found := make(map[string]Stall, len(ids))
	var unknown []string
	for _, id := range ids {
		s, ok := index[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		found[id] = s
	}
	return found, unknown
}

// Zones lists the zone definitions open on a day type.
func Zones(dayType DayType) []Zone {
	var out []Zone
	for _, z := range zones {
		if contains(openZones[dayType], z.ID) {
			out = append(out, z)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
