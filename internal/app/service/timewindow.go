package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/feliven/qrpulse/internal/app/repository"
)

var (
	// ErrInvalidTimezone signals a timezone name the IANA database does
	// not know.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrInvalidRange signals an unrecognized range keyword.
	ErrInvalidRange = errors.New("invalid range keyword")
	// ErrInvalidDate signals a start/end date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidDateRange signals start/end dates that do not form a
	// window (one of them missing, or start after end).
	ErrInvalidDateRange = errors.New("invalid date range")
)

const dateLayout = "2006-01-02"

// ResolveWindow turns a range keyword or an explicit date pair into an
// absolute UTC interval, doing all calendar arithmetic in the requested
// timezone. Explicit dates take precedence over the keyword. now is the
// single reference instant of the surrounding aggregation call; every
// boundary here and in the headline counters derives from it, so a call
// that straddles midnight cannot drift.
func ResolveWindow(rangeKeyword, startDate, endDate, timezone string, now time.Time) (repository.Window, *time.Location, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return repository.Window{}, nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}

	if startDate != "" || endDate != "" {
		w, err := resolveExplicit(startDate, endDate, loc)
		return w, loc, err
	}

	switch rangeKeyword {
	case "", "all":
		return repository.Window{}, loc, nil
	case "today":
		start := startOfDay(now, loc)
		end := now.UTC()
		return repository.Window{Start: &start, End: &end}, loc, nil
	case "7days":
		return trailing(now, 7), loc, nil
	case "30days":
		return trailing(now, 30), loc, nil
	case "90days":
		return trailing(now, 90), loc, nil
	case "year":
		return trailing(now, 365), loc, nil
	default:
		return repository.Window{}, nil, fmt.Errorf("%w: %q", ErrInvalidRange, rangeKeyword)
	}
}

func resolveExplicit(startDate, endDate string, loc *time.Location) (repository.Window, error) {
	if startDate == "" || endDate == "" {
		return repository.Window{}, fmt.Errorf("%w: both start_date and end_date are required", ErrInvalidDateRange)
	}

	startDay, err := time.ParseInLocation(dateLayout, startDate, loc)
	if err != nil {
		return repository.Window{}, fmt.Errorf("%w: %q", ErrInvalidDate, startDate)
	}
	endDay, err := time.ParseInLocation(dateLayout, endDate, loc)
	if err != nil {
		return repository.Window{}, fmt.Errorf("%w: %q", ErrInvalidDate, endDate)
	}
	if startDay.After(endDay) {
		return repository.Window{}, fmt.Errorf("%w: start_date after end_date", ErrInvalidDateRange)
	}

	// [start-of-day(start), end-of-day(end)] in the target zone, then UTC.
	start := startDay.UTC()
	end := endDay.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC()
	return repository.Window{Start: &start, End: &end}, nil
}

// startOfDay is local midnight of now's calendar day in loc, as a UTC
// instant.
func startOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UTC()
}

func trailing(now time.Time, days int) repository.Window {
	start := now.Add(-time.Duration(days) * 24 * time.Hour).UTC()
	end := now.UTC()
	return repository.Window{Start: &start, End: &end}
}
