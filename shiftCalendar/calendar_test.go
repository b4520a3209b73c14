package shiftCalendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shiftChat/cache"
	"github.com/shiftChat/gateway"
	"github.com/shiftChat/memoryGateway"
)

var march5 = func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) }

type failingStore struct {
	gateway.ShiftStore
	upsertErr error
	queryErr  error
}

func (f failingStore) UpsertShift(ctx context.Context, userID, date string, status gateway.ShiftStatus, comment string) (string, error) {
	if f.upsertErr != nil {
		return "", f.upsertErr
	}
	return f.ShiftStore.UpsertShift(ctx, userID, date, status, comment)
}

func (f failingStore) QueryShiftsInRange(ctx context.Context, userID, start, end string) ([]gateway.Shift, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.ShiftStore.QueryShiftsInRange(ctx, userID, start, end)
}

// shiftSource adapts a ShiftStore to the cache's source interface.
type shiftSource struct {
	gateway.ShiftStore
}

func (shiftSource) GetUser(ctx context.Context, uid string) (*gateway.User, error) { return nil, nil }
func (shiftSource) ListUsers(ctx context.Context) ([]gateway.User, error)          { return nil, nil }

func TestCalendar_Cursor(t *testing.T) {
	c := New(memoryGateway.New(), cache.New(memoryGateway.New()), "u1", func() time.Time {
		return time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	})

	c.NextMonth()
	if y, m := c.Cursor(); y != 2025 || m != time.January {
		t.Errorf("NextMonth = %d-%s, want 2025-January", y, m)
	}
	c.PrevMonth()
	c.PrevMonth()
	if y, m := c.Cursor(); y != 2024 || m != time.November {
		t.Errorf("PrevMonth = %d-%s, want 2024-November", y, m)
	}
	if err := c.SetView("day"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestCalendar_SaveTwiceKeepsOneShift(t *testing.T) {
	ctx := context.Background()
	gw := memoryGateway.New()
	c := New(gw, cache.New(gw), "u1", march5)

	if _, err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	form, err := c.OpenForm("2024-03-05")
	if err != nil {
		t.Fatalf("OpenForm: %v", err)
	}
	if !form.Open || form.Status != gateway.ShiftEarly || form.Comment != "" {
		t.Errorf("unexpected default form %+v", form)
	}
	first, err := c.Save(ctx, gateway.ShiftEarly, "")
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if c.Form().Open {
		t.Error("form should close after a successful save")
	}

	form, _ = c.OpenForm("2024-03-05")
	if form.Status != gateway.ShiftEarly {
		t.Errorf("form should be prefilled from the cache, got %+v", form)
	}
	second, err := c.Save(ctx, gateway.ShiftLate, "  swapped with Bob ")
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("upsert created a new record: %s != %s", first.ID, second.ID)
	}
	if gw.ShiftCount() != 1 {
		t.Errorf("store holds %d shifts, want 1", gw.ShiftCount())
	}
	stored, _ := gw.QueryShiftsInRange(ctx, "u1", "2024-03-01", "2024-03-31")
	if len(stored) != 1 || stored[0].Status != gateway.ShiftLate || stored[0].Comment != "swapped with Bob" {
		t.Errorf("stored shifts %+v", stored)
	}

	view := c.Render()
	if view.Month == nil {
		t.Fatal("expected month view")
	}
	var found bool
	for _, row := range view.Month.Rows {
		for _, cell := range row {
			if cell.Date == "2024-03-05" {
				found = cell.Shift != nil && cell.Shift.Status == gateway.ShiftLate
			}
		}
	}
	if !found {
		t.Error("grid should reflect the saved shift without a refetch")
	}
}

func TestCalendar_SaveFailureKeepsFormOpen(t *testing.T) {
	ctx := context.Background()
	gw := memoryGateway.New()
	store := failingStore{ShiftStore: gw, upsertErr: errors.New("permission denied")}
	c := New(store, cache.New(gw), "u1", march5)

	if _, err := c.OpenForm("2024-03-07"); err != nil {
		t.Fatalf("OpenForm: %v", err)
	}
	if _, err := c.Save(ctx, gateway.ShiftSwap, "please"); err == nil {
		t.Fatal("expected save error")
	}

	form := c.Form()
	if !form.Open || form.Status != gateway.ShiftSwap || form.Comment != "please" {
		t.Errorf("form should keep input after failure, got %+v", form)
	}
	if gw.ShiftCount() != 0 {
		t.Error("nothing should be stored")
	}
}

func TestCalendar_SaveGuards(t *testing.T) {
	ctx := context.Background()
	gw := memoryGateway.New()

	anonymous := New(gw, cache.New(gw), "", march5)
	if _, err := anonymous.OpenForm("2024-03-05"); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("OpenForm error = %v, want ErrNotSignedIn", err)
	}
	if _, err := anonymous.Save(ctx, gateway.ShiftEarly, ""); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("Save error = %v, want ErrNotSignedIn", err)
	}

	c := New(gw, cache.New(gw), "u1", march5)
	if _, err := c.Save(ctx, gateway.ShiftEarly, ""); !errors.Is(err, ErrNoDateSelected) {
		t.Errorf("Save error = %v, want ErrNoDateSelected", err)
	}
	if _, err := c.OpenForm("5 March"); err == nil {
		t.Error("expected error for malformed date")
	}
	c.OpenForm("2024-03-05")
	if _, err := c.Save(ctx, "night", ""); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Save error = %v, want ErrInvalidStatus", err)
	}
}

func TestCalendar_RefreshFailureRendersEmptyGrid(t *testing.T) {
	ctx := context.Background()
	gw := memoryGateway.New()
	gw.UpsertShift(ctx, "u1", "2024-03-05", gateway.ShiftEarly, "")
	store := failingStore{ShiftStore: gw, queryErr: errors.New("unavailable")}
	c := New(gw, cache.New(shiftSource{store}), "u1", march5)

	view, err := c.Refresh(ctx)
	if err == nil {
		t.Fatal("expected refresh error")
	}
	if view.Month == nil || len(view.Month.Rows) == 0 {
		t.Fatal("expected an empty grid")
	}
	for _, row := range view.Month.Rows {
		for _, cell := range row {
			if cell.Shift != nil {
				t.Errorf("unexpected shift on %s", cell.Date)
			}
		}
	}
}

func TestCalendar_RefreshWeek(t *testing.T) {
	ctx := context.Background()
	gw := memoryGateway.New()
	gw.UpsertShift(ctx, "u1", "2024-03-12", gateway.ShiftLate, "")
	gw.UpsertShift(ctx, "u2", "2024-03-12", gateway.ShiftEarly, "")
	c := New(gw, cache.New(gw), "u1", march5)
	c.SetView(ModeWeek)

	view, err := c.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if view.Week == nil || view.Month != nil || view.Title != "March 2024" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Week.Rows[1].Cells[2].Shift == nil {
		t.Error("expected u1's late shift on Tuesday")
	}
	if view.Week.Rows[0].Cells[2].Shift != nil {
		t.Error("u2's shift must not show on u1's calendar")
	}
}
