// Package shiftCalendar drives the shift scheduling screen: a month cursor, month
// and week grids built from cached shifts, and the single-day edit form.
package shiftCalendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shiftChat/gateway"
	"github.com/shiftChat/telemetry"
)

var (
	ErrNoDateSelected = errors.New("shiftCalendar: no date selected")
	ErrNotSignedIn    = errors.New("shiftCalendar: sign in to register shifts")
	ErrInvalidStatus  = errors.New("shiftCalendar: invalid shift status")
)

type Mode string

const (
	ModeMonth Mode = "month"
	ModeWeek  Mode = "week"
)

// MonthCache is the month-keyed shift cache. *cache.Cache satisfies it.
type MonthCache interface {
	GetShiftsForMonth(ctx context.Context, userID string, year int, month time.Month) (map[string]gateway.Shift, error)
	MonthSnapshot(year int, month time.Month) map[string]gateway.Shift
	PutShift(s gateway.Shift) error
}

// View is what the presentation layer draws. Exactly one of Month and Week is set.
type View struct {
	Title string
	Mode  Mode
	Month *MonthGrid
	Week  *WeekGrid
}

// Form is the state of the edit form for a single day.
type Form struct {
	Open    bool
	Date    string
	Status  gateway.ShiftStatus
	Comment string
}

type Calendar struct {
	store  gateway.ShiftStore
	cache  MonthCache
	userID string
	now    func() time.Time

	mu    sync.Mutex
	year  int
	month time.Month
	mode  Mode
	form  Form
}

// New returns a Calendar showing the current month for userID. An empty userID
// renders empty grids and refuses edits.
func New(store gateway.ShiftStore, cache MonthCache, userID string, now func() time.Time) *Calendar {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Calendar{
		store:  store,
		cache:  cache,
		userID: userID,
		now:    now,
		year:   t.Year(),
		month:  t.Month(),
		mode:   ModeMonth,
	}
}

// Cursor returns the displayed year and month.
func (c *Calendar) Cursor() (int, time.Month) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.year, c.month
}

// SetCursor jumps to the given month.
func (c *Calendar) SetCursor(year int, month time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	c.mu.Lock()
	c.year, c.month = t.Year(), t.Month()
	c.mu.Unlock()
}

func (c *Calendar) step(months int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Date(c.year, c.month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	c.year, c.month = t.Year(), t.Month()
}

func (c *Calendar) NextMonth() { c.step(1) }

func (c *Calendar) PrevMonth() { c.step(-1) }

func (c *Calendar) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Calendar) SetView(mode Mode) error {
	if mode != ModeMonth && mode != ModeWeek {
		return fmt.Errorf("shiftCalendar.SetView: unknown mode %q", mode)
	}
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	return nil
}

func (c *Calendar) build(year int, month time.Month, mode Mode, shifts map[string]gateway.Shift) View {
	v := View{
		Title: fmt.Sprintf("%s %d", month, year),
		Mode:  mode,
	}
	today := c.now()
	if mode == ModeWeek {
		g := BuildWeekGrid(year, month, shifts, today)
		v.Week = &g
	} else {
		g := BuildMonthGrid(year, month, shifts, today)
		v.Month = &g
	}
	return v
}

// Refresh loads the displayed month through the cache and builds its grid. When
// the fetch fails the grid is built empty and the error is returned alongside it.
func (c *Calendar) Refresh(ctx context.Context) (View, error) {
	c.mu.Lock()
	year, month, mode := c.year, c.month, c.mode
	c.mu.Unlock()

	if c.userID == "" {
		return c.build(year, month, mode, nil), nil
	}

	shifts, err := c.cache.GetShiftsForMonth(ctx, c.userID, year, month)
	if err != nil {
		log.WithField("userId", c.userID).Errorf("unable to load shifts: %s", err)
		return c.build(year, month, mode, nil), fmt.Errorf("shiftCalendar.Refresh: %w", err)
	}
	return c.build(year, month, mode, shifts), nil
}

// Render rebuilds the displayed grid from what is already cached.
func (c *Calendar) Render() View {
	c.mu.Lock()
	year, month, mode := c.year, c.month, c.mode
	c.mu.Unlock()
	return c.build(year, month, mode, c.cache.MonthSnapshot(year, month))
}

// OpenForm selects date for editing, prefilled from the cached shift or with the
// default status when the day is empty.
func (c *Calendar) OpenForm(date string) (Form, error) {
	if c.userID == "" {
		return Form{}, ErrNotSignedIn
	}
	t, err := time.Parse(gateway.DateLayout, date)
	if err != nil {
		return Form{}, fmt.Errorf("shiftCalendar.OpenForm: %w", err)
	}

	form := Form{Open: true, Date: date, Status: gateway.ShiftEarly}
	if s, ok := c.cache.MonthSnapshot(t.Year(), t.Month())[date]; ok {
		form.Status = s.Status
		form.Comment = s.Comment
	}

	c.mu.Lock()
	c.form = form
	c.mu.Unlock()
	return form, nil
}

// CloseForm hides the form; the selected date is kept as in the browser version.
func (c *Calendar) CloseForm() {
	c.mu.Lock()
	c.form.Open = false
	c.mu.Unlock()
}

func (c *Calendar) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// Save upserts the selected day's shift. On success the cache is updated and the
// form closes; on failure the form stays open with its values.
func (c *Calendar) Save(ctx context.Context, status gateway.ShiftStatus, comment string) (gateway.Shift, error) {
	if c.userID == "" {
		return gateway.Shift{}, ErrNotSignedIn
	}

	c.mu.Lock()
	date := c.form.Date
	c.mu.Unlock()
	if date == "" {
		return gateway.Shift{}, ErrNoDateSelected
	}
	if !status.Valid() {
		return gateway.Shift{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	comment = strings.TrimSpace(comment)

	c.mu.Lock()
	c.form.Status = status
	c.form.Comment = comment
	c.mu.Unlock()

	id, err := c.store.UpsertShift(ctx, c.userID, date, status, comment)
	if err != nil {
		telemetry.ShiftSaved(false)
		return gateway.Shift{}, fmt.Errorf("shiftCalendar.Save: %w", err)
	}
	telemetry.ShiftSaved(true)

	shift := gateway.Shift{
		ID:        id,
		UserID:    c.userID,
		Date:      date,
		Status:    status,
		Comment:   comment,
		UserDate:  gateway.CompositeKey(c.userID, date),
		CreatedAt: c.now(),
	}
	if err := c.cache.PutShift(shift); err != nil {
		log.Warnf("unable to cache saved shift: %s", err)
	}

	c.mu.Lock()
	if c.form.Date == date {
		c.form.Open = false
	}
	c.mu.Unlock()
	return shift, nil
}
