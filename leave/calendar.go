/*
calendar.go - Working-day arithmetic, holidays and blocked periods

PURPOSE:
  Answers two questions for the request state machine:
  1. How many working days does a date range cover?
  2. Does a date range intersect an administratively blocked period?

WORKING DAYS:
  Counted inclusively from From to To, excluding the calendar's weekend
  days and its public holidays. Weekend definitions are per country and
  year (e.g. Friday/Saturday in Egypt, Saturday/Sunday elsewhere).
  A half-day request covers exactly one date and counts as 0.5.

FALLBACK:
  If no calendar exists for a year, the service degrades to a
  Saturday/Sunday weekend with no holidays instead of failing the
  caller. There is no authoritative data to contradict the fallback.

BLOCKED PERIODS:
  FULL periods block every leave type. PARTIAL periods block only the
  leave types listed on the period. Inactive periods never block.

SEE ALSO:
  - request.go: Calls WorkingDays and CheckBlocked at submission time
  - store/sqlite: Persists calendars, holidays and blocked periods
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// CALENDAR - Per-country, per-year weekend and holiday definition
// =============================================================================

type Calendar struct {
	ID          CalendarID
	Name        string
	Country     string
	Year        int
	WeekendDays []time.Weekday
	IsDefault   bool
}

func (c Calendar) isWeekend(d time.Time) bool {
	for _, wd := range c.WeekendDays {
		if d.Weekday() == wd {
			return true
		}
	}
	return false
}

// PublicHoliday is a single non-working date within a calendar.
type PublicHoliday struct {
	CalendarID CalendarID
	Date       time.Time
	Name       string
}

// defaultCalendar is the Saturday/Sunday fallback used when no calendar
// covers a year.
func defaultCalendar(year int) Calendar {
	return Calendar{
		Name:        "default",
		Year:        year,
		WeekendDays: []time.Weekday{time.Saturday, time.Sunday},
	}
}

// =============================================================================
// BLOCKED PERIODS
// =============================================================================

type BlockType string

const (
	// BlockFull blocks all leave during the period.
	BlockFull BlockType = "FULL"
	// BlockPartial blocks only the leave types listed on the period.
	BlockPartial BlockType = "PARTIAL"
)

type BlockedPeriod struct {
	ID           string
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	Reason       string
	BlockType    BlockType
	LeaveTypeIDs []LeaveTypeID // restricted types; only consulted for PARTIAL
	Active       bool
}

func (bp BlockedPeriod) intersects(from, to time.Time) bool {
	return !to.Before(bp.StartDate) && !from.After(bp.EndDate)
}

func (bp BlockedPeriod) appliesTo(leaveTypeID LeaveTypeID) bool {
	if bp.BlockType == BlockFull {
		return true
	}
	for _, id := range bp.LeaveTypeIDs {
		if id == leaveTypeID {
			return true
		}
	}
	return false
}

// =============================================================================
// CALENDAR STORE - Persistence contract
// =============================================================================

type CalendarStore interface {
	// CalendarForYear returns the default calendar covering a year, or
	// ErrNotFound when none exists.
	CalendarForYear(ctx context.Context, year int) (*Calendar, error)

	// HolidaysInRange returns holiday dates of a calendar within [from, to].
	HolidaysInRange(ctx context.Context, calendarID CalendarID, from, to time.Time) ([]PublicHoliday, error)

	// ActiveBlockedPeriods returns active blocked periods intersecting
	// [from, to].
	ActiveBlockedPeriods(ctx context.Context, from, to time.Time) ([]BlockedPeriod, error)
}

// =============================================================================
// CALENDAR SERVICE
// =============================================================================

// CalendarService computes working days and blocked-period intersections.
type CalendarService struct {
	Store CalendarStore
}

func NewCalendarService(store CalendarStore) *CalendarService {
	return &CalendarService{Store: store}
}

// WorkingDays counts working days in [from, to] inclusive, excluding the
// year calendar's weekend days and public holidays. Returns zero when
// to < from. When halfDay is set the range must be a single date and the
// count is 0.5 (a half-day on a weekend or holiday counts zero).
func (cs *CalendarService) WorkingDays(ctx context.Context, from, to time.Time, halfDay bool) (Days, error) {
	from = truncateDay(from)
	to = truncateDay(to)
	if to.Before(from) {
		return ZeroDays(), nil
	}

	total := ZeroDays()
	for cursor := from; !cursor.After(to); {
		yearEnd := time.Date(cursor.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
		segmentEnd := to
		if yearEnd.Before(to) {
			segmentEnd = yearEnd
		}

		cal, holidays, err := cs.calendarFor(ctx, cursor.Year(), cursor, segmentEnd)
		if err != nil {
			return ZeroDays(), err
		}

		for d := cursor; !d.After(segmentEnd); d = d.AddDate(0, 0, 1) {
			if cal.isWeekend(d) || holidays[d] {
				continue
			}
			total = total.Add(DaysOfInt(1))
		}
		cursor = segmentEnd.AddDate(0, 0, 1)
	}

	if halfDay && from.Equal(to) && total.Equal(DaysOfInt(1)) {
		return HalfDay(), nil
	}
	return total, nil
}

// CheckBlocked returns the first active blocked period that intersects
// [from, to] and applies to the leave type, or nil.
func (cs *CalendarService) CheckBlocked(ctx context.Context, from, to time.Time, leaveTypeID LeaveTypeID) (*BlockedPeriod, error) {
	from, to = truncateDay(from), truncateDay(to)
	periods, err := cs.Store.ActiveBlockedPeriods(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for i := range periods {
		bp := periods[i]
		if bp.Active && bp.intersects(from, to) && bp.appliesTo(leaveTypeID) {
			return &bp, nil
		}
	}
	return nil, nil
}

func (cs *CalendarService) calendarFor(ctx context.Context, year int, from, to time.Time) (Calendar, map[time.Time]bool, error) {
	cal, err := cs.Store.CalendarForYear(ctx, year)
	if err != nil {
		if IsNotFound(err) {
			return defaultCalendar(year), map[time.Time]bool{}, nil
		}
		return Calendar{}, nil, err
	}

	holidays, err := cs.Store.HolidaysInRange(ctx, cal.ID, from, to)
	if err != nil {
		return Calendar{}, nil, err
	}
	set := make(map[time.Time]bool, len(holidays))
	for _, h := range holidays {
		set[truncateDay(h.Date)] = true
	}
	return *cal, set, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
