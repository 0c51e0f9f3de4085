// Package recurring turns standing rules ("rent, 800, monthly on the 1st")
// into real transactions. Rules live next to a house's budgets and
// transactions in the document store; a worker sweeps them on an interval.
package recurring

import (
	"errors"
	"time"

	"bilancio/internal/core"
)

var ErrInvalidFrequency = errors.New("invalid frequency")

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Rule is a template for a transaction that repeats on a schedule. StartDate
// anchors the day of month (and month, for yearly rules); a zero EndDate
// means the rule runs until deactivated. LastRunAt is the moment the rule
// last produced a transaction.
type Rule struct {
	ID          string
	Description string
	Amount      core.Money
	Type        core.TransactionType
	CategoryID  string
	Frequency   Frequency
	StartDate   time.Time
	EndDate     time.Time
	LastRunAt   time.Time
	Active      bool
	CreatedBy   string
}

func (r Rule) Validate() error {
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return core.ErrInvalidType
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	return nil
}

// Due reports whether the rule should produce a transaction at now. A rule
// that has never run is always due; after that each frequency has its own
// notion of "the next occurrence has arrived".
func (r Rule) Due(now time.Time) bool {
	if !r.Active {
		return false
	}
	if now.Before(r.StartDate) {
		return false
	}
	// EndDate is a date; the rule stays valid through the whole end day.
	if !r.EndDate.IsZero() && !now.Before(r.EndDate.AddDate(0, 0, 1)) {
		return false
	}
	if r.LastRunAt.IsZero() {
		return true
	}
	switch r.Frequency {
	case Daily:
		return dueDaily(r.LastRunAt, now)
	case Weekly:
		return dueWeekly(r.LastRunAt, now)
	case Monthly:
		return dueMonthly(r.LastRunAt, now, r.StartDate.Day())
	case Yearly:
		return dueYearly(r.LastRunAt, now, int(r.StartDate.Month()), r.StartDate.Day())
	default:
		return false
	}
}

func dueDaily(lastRun, now time.Time) bool {
	return lastRun.Format("2006-01-02") != now.Format("2006-01-02")
}

func dueWeekly(lastRun, now time.Time) bool {
	return now.Sub(lastRun).Hours()/24 >= 7
}

func dueMonthly(lastRun, now time.Time, targetDay int) bool {
	if lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
		return false
	}
	// Clamp the target day for short months (a rule anchored on the 31st
	// fires on Feb 28th).
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		targetDay = lastDayOfMonth
	}
	return now.Day() >= targetDay
}

func dueYearly(lastRun, now time.Time, targetMonth, targetDay int) bool {
	if lastRun.Year() == now.Year() {
		return false
	}
	if int(now.Month()) < targetMonth {
		return false
	}
	if int(now.Month()) == targetMonth {
		lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if targetDay > lastDayOfMonth {
			targetDay = lastDayOfMonth
		}
		return now.Day() >= targetDay
	}
	return true
}
