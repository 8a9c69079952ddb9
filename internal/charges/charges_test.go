package charges

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/NgigiN/momo-wallet/internal/storage"
)

func charge(id uint, label string, day int, paidThrough string) storage.FixedCharge {
	return storage.FixedCharge{Model: gorm.Model{ID: id}, Label: label, Amount: 1000, DueDay: day, PaidThrough: paidThrough}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDueDateClampsToMonthEnd(t *testing.T) {
	assert.Equal(t, date(2026, time.February, 28), DueDate(2026, time.February, 31, time.UTC))
	assert.Equal(t, date(2028, time.February, 29), DueDate(2028, time.February, 30, time.UTC))
	assert.Equal(t, date(2026, time.April, 30), DueDate(2026, time.April, 31, time.UTC))
	assert.Equal(t, date(2026, time.May, 31), DueDate(2026, time.May, 31, time.UTC))
}

func TestNextDue(t *testing.T) {
	today := time.Date(2026, time.October, 19, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		list    []storage.FixedCharge
		wantID  uint
		wantDue time.Time
	}{
		{
			name:    "later this month",
			list:    []storage.FixedCharge{charge(1, "Loyer", 25, ""), charge(2, "Canal+", 28, "")},
			wantID:  1,
			wantDue: date(2026, time.October, 25),
		},
		{
			name:    "due today counts",
			list:    []storage.FixedCharge{charge(1, "Loyer", 25, ""), charge(2, "SEEG", 19, "")},
			wantID:  2,
			wantDue: date(2026, time.October, 19),
		},
		{
			name:    "all passed wraps to next month",
			list:    []storage.FixedCharge{charge(1, "Loyer", 5, ""), charge(2, "SEEG", 10, "")},
			wantID:  1,
			wantDue: date(2026, time.November, 5),
		},
		{
			name:    "paid this month moves on",
			list:    []storage.FixedCharge{charge(1, "Loyer", 20, "2026-10"), charge(2, "SEEG", 28, "")},
			wantID:  2,
			wantDue: date(2026, time.October, 28),
		},
		{
			name:    "tie goes to lower id",
			list:    []storage.FixedCharge{charge(7, "B", 30, ""), charge(3, "A", 30, "")},
			wantID:  3,
			wantDue: date(2026, time.October, 30),
		},
		{
			name:    "year boundary",
			list:    []storage.FixedCharge{charge(1, "Assurance", 31, "2026-12")},
			wantID:  1,
			wantDue: date(2027, time.January, 31),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextDue(tt.list, today)
			require.True(t, ok)
			assert.Equal(t, tt.wantID, got.Charge.ID)
			assert.True(t, tt.wantDue.Equal(got.Due), "got %s, want %s", got.Due, tt.wantDue)
		})
	}
}

func TestNextDueEmpty(t *testing.T) {
	_, ok := NextDue(nil, time.Now())
	assert.False(t, ok)
}

func TestOverdue(t *testing.T) {
	today := date(2026, time.October, 19)
	list := []storage.FixedCharge{
		charge(1, "Loyer", 5, ""),
		charge(2, "SEEG", 10, "2026-10"),
		charge(3, "Ecole", 2, "2026-09"),
		charge(4, "Canal+", 25, ""),
	}

	got := Overdue(list, today)
	require.Len(t, got, 2)
	assert.Equal(t, uint(3), got[0].Charge.ID)
	assert.Equal(t, uint(1), got[1].Charge.ID)
}

func TestPayablePeriod(t *testing.T) {
	today := date(2026, time.October, 19)

	assert.Equal(t, "2026-10", PayablePeriod(charge(1, "Loyer", 5, ""), today), "overdue settles this month")
	assert.Equal(t, "2026-10", PayablePeriod(charge(2, "Canal+", 25, ""), today))
	assert.Equal(t, "2026-11", PayablePeriod(charge(3, "SEEG", 10, "2026-10"), today))
	assert.Equal(t, "2026-12", PayablePeriod(charge(4, "Canal+", 25, "2026-11"), today))
}
