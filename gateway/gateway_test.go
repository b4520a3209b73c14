package gateway

import (
	"testing"
	"time"
)

func TestCompositeKey(t *testing.T) {
	if got := CompositeKey("u1", "2024-03-05"); got != "u1_2024-03-05" {
		t.Errorf("CompositeKey = %q, want u1_2024-03-05", got)
	}
}

func TestMonthRange(t *testing.T) {
	tests := []struct {
		year       int
		month      time.Month
		start, end string
	}{
		{2024, time.February, "2024-02-01", "2024-02-29"},
		{2023, time.February, "2023-02-01", "2023-02-28"},
		{2024, time.December, "2024-12-01", "2024-12-31"},
		{2024, time.April, "2024-04-01", "2024-04-30"},
	}

	for _, tt := range tests {
		start, end := MonthRange(tt.year, tt.month)
		if start != tt.start || end != tt.end {
			t.Errorf("MonthRange(%d, %s) = %s..%s, want %s..%s", tt.year, tt.month, start, end, tt.start, tt.end)
		}
	}
}

func TestShiftStatus_Valid(t *testing.T) {
	for _, s := range ShiftStatuses {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if ShiftStatus("night").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestValidateDate(t *testing.T) {
	if err := ValidateDate("2024-03-05"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateDate("2024-3-5"); err == nil {
		t.Error("expected error for unpadded date")
	}
}
