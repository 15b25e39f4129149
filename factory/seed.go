/*
seed.go - The built-in default catalog

PURPOSE:
  A ready-to-use leave taxonomy: fourteen leave types with their
  policies, a Friday/Saturday working calendar with the Egyptian
  public holidays, and the standard administrative blocked periods.
  The admin seed endpoint and fresh installations load this.

The catalog itself is JSON and goes through ParseCatalog, so the seed
path exercises exactly the parsing a customer-supplied catalog would.
*/
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/luminahr/leave-engine/leave"
)

// SeedStore is the subset of store operations seeding needs.
type SeedStore interface {
	SaveLeaveType(ctx context.Context, lt leave.LeaveType) error
	SavePolicy(ctx context.Context, p leave.LeavePolicy) error
	SaveCalendar(ctx context.Context, cal leave.Calendar) error
	SaveHoliday(ctx context.Context, h leave.PublicHoliday) error
	SaveBlockedPeriod(ctx context.Context, bp leave.BlockedPeriod) error
}

// DefaultCatalogJSON is the built-in taxonomy. IDs are fixed so
// re-seeding updates in place instead of duplicating.
const DefaultCatalogJSON = `[
  {
    "id": "annual", "name": "Annual Leave", "code": "ANNUAL", "category": "standard",
    "min_notice_days": 7, "max_duration_days": 21,
    "policy": {
      "id": "annual-policy", "annual_days": 21, "accrued_monthly": true,
      "carryover": {"allow": true, "max_days": 45, "expiry_months": 3, "can_encash": true},
      "rounding": {"method": "HALF_DAY"},
      "eligibility": {"min_tenure_months": 3},
      "approval": {"manager": true, "hr": true, "multi_level": true}
    }
  },
  {
    "id": "compensation", "name": "Compensation Leave", "code": "COMPENSATION", "category": "standard",
    "policy": {
      "id": "compensation-policy", "annual_days": 0,
      "rounding": {"method": "HALF_DAY"},
      "approval": {"manager": true, "hr": false}
    }
  },
  {
    "id": "sick", "name": "Sick Leave", "code": "SICK", "category": "medical",
    "deductible": false, "max_duration_days": 360,
    "requires_attachment": true, "attachment_kind": "MEDICAL_CERTIFICATE",
    "policy": {
      "id": "sick-policy", "annual_days": 0,
      "document_rules": {"requires_document_above_days": 2},
      "approval": {"manager": false, "hr": true, "allow_overlap": false}
    }
  },
  {
    "id": "accident", "name": "Work Accident Leave", "code": "ACCIDENT", "category": "medical",
    "deductible": false, "requires_attachment": true, "attachment_kind": "MEDICAL_CERTIFICATE",
    "policy": {
      "id": "accident-policy", "annual_days": 0,
      "approval": {"manager": false, "hr": true}
    }
  },
  {
    "id": "maternity", "name": "Maternity Leave", "code": "MATERNITY", "category": "parental",
    "deductible": false, "max_duration_days": 120, "eligibility_gender": "Female",
    "min_tenure_months": 10, "requires_attachment": true, "attachment_kind": "MEDICAL_CERTIFICATE",
    "policy": {
      "id": "maternity-policy", "annual_days": 0,
      "eligibility": {"gender": "Female", "min_tenure_months": 10},
      "approval": {"manager": false, "hr": true}
    }
  },
  {
    "id": "paternity", "name": "Paternity Leave", "code": "PATERNITY", "category": "parental",
    "deductible": false, "max_duration_days": 14, "eligibility_gender": "Male",
    "requires_attachment": true, "attachment_kind": "BIRTH_CERTIFICATE",
    "policy": {
      "id": "paternity-policy", "annual_days": 0,
      "eligibility": {"gender": "Male"},
      "approval": {"manager": true, "hr": false}
    }
  },
  {
    "id": "marriage", "name": "Marriage Leave", "code": "MARRIAGE", "category": "personal",
    "deductible": false, "max_duration_days": 5, "max_occurrences": 1,
    "requires_attachment": true, "attachment_kind": "MARRIAGE_CERTIFICATE",
    "policy": {
      "id": "marriage-policy", "annual_days": 0,
      "approval": {"manager": true, "hr": false}
    }
  },
  {
    "id": "bereavement", "name": "Bereavement Leave", "code": "BEREAVEMENT", "category": "personal",
    "deductible": false, "max_duration_days": 3,
    "requires_attachment": true, "attachment_kind": "DEATH_CERTIFICATE",
    "policy": {
      "id": "bereavement-policy", "annual_days": 0,
      "approval": {"manager": true, "hr": false, "allow_overlap": true}
    }
  },
  {
    "id": "emergency", "name": "Emergency Leave", "code": "EMERGENCY", "category": "personal",
    "max_duration_days": 6,
    "policy": {
      "id": "emergency-policy", "annual_days": 6,
      "rounding": {"method": "FULL_DAY"},
      "approval": {"manager": true, "hr": false, "allow_overlap": true}
    }
  },
  {
    "id": "hajj", "name": "Hajj Leave", "code": "HAJJ", "category": "religious",
    "deductible": false, "max_duration_days": 30, "max_occurrences": 1,
    "min_tenure_months": 60,
    "policy": {
      "id": "hajj-policy", "annual_days": 0,
      "eligibility": {"min_tenure_months": 60},
      "approval": {"manager": true, "hr": true, "multi_level": true}
    }
  },
  {
    "id": "study", "name": "Study Leave", "code": "STUDY", "category": "development",
    "min_notice_days": 14,
    "policy": {
      "id": "study-policy", "annual_days": 10,
      "rounding": {"method": "FULL_DAY"},
      "eligibility": {"min_tenure_months": 12, "employee_types": ["Full-Time"]},
      "approval": {"manager": true, "hr": true}
    }
  },
  {
    "id": "mission", "name": "Official Mission", "code": "MISSION", "category": "work",
    "deductible": false,
    "policy": {
      "id": "mission-policy", "annual_days": 0,
      "approval": {"manager": true, "hr": false, "allow_overlap": true}
    }
  },
  {
    "id": "unpaid", "name": "Unpaid Leave", "code": "UNPAID", "category": "standard",
    "paid": false, "deductible": false, "min_notice_days": 7,
    "policy": {
      "id": "unpaid-policy", "annual_days": 0,
      "approval": {"manager": true, "hr": true, "multi_level": true}
    }
  },
  {
    "id": "sabbatical", "name": "Sabbatical", "code": "SABBATICAL", "category": "development",
    "deductible": false, "min_notice_days": 60, "min_tenure_months": 60,
    "policy": {
      "id": "sabbatical-policy", "annual_days": 0,
      "eligibility": {"min_tenure_months": 60, "employee_types": ["Full-Time"]},
      "approval": {"manager": true, "hr": true, "multi_level": true}
    }
  }
]`

// DefaultCatalog parses the built-in taxonomy.
func DefaultCatalog() ([]LeaveTypeDef, error) {
	return ParseCatalog(DefaultCatalogJSON)
}

// SeedDefaults loads the default catalog, a Friday/Saturday calendar
// with the fixed Egyptian public holidays for the given year, and the
// standard blocked periods. Idempotent: fixed IDs upsert in place.
func SeedDefaults(ctx context.Context, store SeedStore, year int) error {
	defs, err := DefaultCatalog()
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := store.SaveLeaveType(ctx, def.Type); err != nil {
			return fmt.Errorf("seed leave type %s: %w", def.Type.Code, err)
		}
		if def.Policy != nil {
			if err := store.SavePolicy(ctx, *def.Policy); err != nil {
				return fmt.Errorf("seed policy for %s: %w", def.Type.Code, err)
			}
		}
	}

	cal := leave.Calendar{
		ID:          leave.CalendarID(fmt.Sprintf("egypt-%d", year)),
		Name:        fmt.Sprintf("Egypt %d", year),
		Country:     "EG",
		Year:        year,
		WeekendDays: []time.Weekday{time.Friday, time.Saturday},
		IsDefault:   true,
	}
	if err := store.SaveCalendar(ctx, cal); err != nil {
		return fmt.Errorf("seed calendar: %w", err)
	}

	// Fixed-date national holidays. Movable religious holidays shift
	// yearly and are entered through the holiday endpoint.
	holidays := []struct {
		month time.Month
		day   int
		name  string
	}{
		{time.January, 7, "Coptic Christmas"},
		{time.January, 25, "Revolution Day"},
		{time.April, 25, "Sinai Liberation Day"},
		{time.May, 1, "Labour Day"},
		{time.June, 30, "June 30 Revolution"},
		{time.July, 23, "Revolution Day 1952"},
		{time.October, 6, "Armed Forces Day"},
	}
	for _, h := range holidays {
		err := store.SaveHoliday(ctx, leave.PublicHoliday{
			CalendarID: cal.ID,
			Date:       time.Date(year, h.month, h.day, 0, 0, 0, 0, time.UTC),
			Name:       h.name,
		})
		if err != nil {
			return fmt.Errorf("seed holiday %s: %w", h.name, err)
		}
	}

	blocked := []leave.BlockedPeriod{
		{
			ID:        fmt.Sprintf("year-end-closing-%d", year),
			Name:      "Year-End Closing",
			StartDate: time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
			Reason:    "financial year-end closing",
			BlockType: leave.BlockFull,
			Active:    true,
		},
		{
			ID:           fmt.Sprintf("annual-audit-%d", year),
			Name:         "Annual Audit",
			StartDate:    time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC),
			EndDate:      time.Date(year, time.March, 15, 0, 0, 0, 0, time.UTC),
			Reason:       "external audit window",
			BlockType:    leave.BlockPartial,
			LeaveTypeIDs: []leave.LeaveTypeID{"annual", "study", "sabbatical"},
			Active:       true,
		},
	}
	for _, bp := range blocked {
		if err := store.SaveBlockedPeriod(ctx, bp); err != nil {
			return fmt.Errorf("seed blocked period %s: %w", bp.Name, err)
		}
	}
	return nil
}
