package shiftCalendar

import (
	"time"

	"github.com/shiftChat/gateway"
)

const (
	daysPerWeek  = 7
	maxMonthRows = 6
	weekAnchor   = 15
)

// Cell is one day of a grid. Blank cells pad the month out to whole weeks and
// have Day == 0.
type Cell struct {
	Date    string
	Day     int
	Shift   *gateway.Shift
	Today   bool
	Weekend bool
}

func (c Cell) Blank() bool { return c.Day == 0 }

// MonthGrid is a Sunday-first calendar of whole weeks.
type MonthGrid struct {
	Year  int
	Month time.Month
	Rows  [][daysPerWeek]Cell
}

// WeekRow holds the cells of one shift slot across the week. A cell carries a
// shift only when the day's status matches the slot.
type WeekRow struct {
	Status gateway.ShiftStatus
	Cells  [daysPerWeek]Cell
}

type WeekGrid struct {
	Year  int
	Month time.Month
	Days  [daysPerWeek]Cell
	Rows  []WeekRow
}

var weekSlots = []gateway.ShiftStatus{gateway.ShiftEarly, gateway.ShiftLate}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dayCell(day time.Time, shifts map[string]gateway.Shift, today time.Time, column int) Cell {
	date := day.Format(gateway.DateLayout)
	c := Cell{
		Date:    date,
		Day:     day.Day(),
		Today:   sameDay(day, today),
		Weekend: column == 0 || column == daysPerWeek-1,
	}
	if s, ok := shifts[date]; ok {
		s := s
		c.Shift = &s
	}
	return c
}

// BuildMonthGrid lays out the month with leading blanks up to the weekday of the
// first day. Rows stop once the days run out, so a month spans four to six rows.
func BuildMonthGrid(year int, month time.Month, shifts map[string]gateway.Shift, today time.Time) MonthGrid {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	startColumn := int(first.Weekday())

	grid := MonthGrid{Year: year, Month: month}
	day := 1
	for row := 0; row < maxMonthRows && day <= lastDay; row++ {
		var cells [daysPerWeek]Cell
		for col := 0; col < daysPerWeek; col++ {
			if (row == 0 && col < startColumn) || day > lastDay {
				continue
			}
			cells[col] = dayCell(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), shifts, today, col)
			day++
		}
		grid.Rows = append(grid.Rows, cells)
	}
	return grid
}

// BuildWeekGrid lays out the Sunday-first week containing the 15th of the month
// with one row per shift slot.
func BuildWeekGrid(year int, month time.Month, shifts map[string]gateway.Shift, today time.Time) WeekGrid {
	anchor := time.Date(year, month, weekAnchor, 0, 0, 0, 0, time.UTC)
	start := anchor.AddDate(0, 0, -int(anchor.Weekday()))

	grid := WeekGrid{Year: year, Month: month}
	for i := 0; i < daysPerWeek; i++ {
		grid.Days[i] = dayCell(start.AddDate(0, 0, i), shifts, today, i)
	}

	for _, status := range weekSlots {
		row := WeekRow{Status: status}
		for i, day := range grid.Days {
			cell := day
			if cell.Shift == nil || cell.Shift.Status != status {
				cell.Shift = nil
			}
			row.Cells[i] = cell
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid
}
