// Package charges works out when recurring fixed charges fall due.
package charges

import (
	"sort"
	"time"

	"github.com/NgigiN/momo-wallet/internal/storage"
)

const periodLayout = "2006-01"

// Occurrence is one due date of a charge.
type Occurrence struct {
	Charge storage.FixedCharge
	Due    time.Time
}

// Period formats the month t falls in, as stored in PaidThrough.
func Period(t time.Time) string {
	return t.Format(periodLayout)
}

// DueDate returns day in the given month, clamped to the month's last day.
func DueDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func paid(c storage.FixedCharge, due time.Time) bool {
	return c.PaidThrough != "" && c.PaidThrough >= Period(due)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Upcoming returns the first unpaid due date of c on or after today.
func Upcoming(c storage.FixedCharge, today time.Time) time.Time {
	today = startOfDay(today)
	year, month := today.Year(), today.Month()
	for {
		due := DueDate(year, month, c.DueDay, today.Location())
		if !due.Before(today) && !paid(c, due) {
			return due
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
}

// NextDue picks the earliest unpaid due date at or after today across
// list. Charges whose date this month has passed count from next month.
// Equal dates go to the lower id.
func NextDue(list []storage.FixedCharge, today time.Time) (Occurrence, bool) {
	var (
		best  Occurrence
		found bool
	)
	for _, c := range list {
		due := Upcoming(c, today)
		if !found || due.Before(best.Due) || (due.Equal(best.Due) && c.ID < best.Charge.ID) {
			best = Occurrence{Charge: c, Due: due}
			found = true
		}
	}
	return best, found
}

// Overdue lists charges whose due date this month has passed unpaid,
// oldest first.
func Overdue(list []storage.FixedCharge, today time.Time) []Occurrence {
	today = startOfDay(today)
	var out []Occurrence
	for _, c := range list {
		due := DueDate(today.Year(), today.Month(), c.DueDay, today.Location())
		if due.Before(today) && !paid(c, due) {
			out = append(out, Occurrence{Charge: c, Due: due})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Due.Equal(out[j].Due) {
			return out[i].Charge.ID < out[j].Charge.ID
		}
		return out[i].Due.Before(out[j].Due)
	})
	return out
}

// PayablePeriod is the period a payment made today settles: this month
// while it is overdue, otherwise the upcoming occurrence.
func PayablePeriod(c storage.FixedCharge, today time.Time) string {
	today = startOfDay(today)
	due := DueDate(today.Year(), today.Month(), c.DueDay, today.Location())
	if due.Before(today) && !paid(c, due) {
		return Period(due)
	}
	return Period(Upcoming(c, today))
}
