package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shiftChat/authProvider"
	"github.com/shiftChat/chatSync"
	"github.com/shiftChat/gateway"
	"github.com/shiftChat/prefs"
	"github.com/shiftChat/shiftCalendar"
)

// textPresenter prints the chat timeline and calendar as plain text.
type textPresenter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *textPresenter) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *textPresenter) Render(msg chatSync.RenderedMessage, replaced bool) {
	marker := ""
	if replaced {
		marker = " (updated)"
	}
	if msg.Edited {
		marker += " (edited)"
	}
	body := msg.Content
	if msg.Type == gateway.MessageTypeStamp {
		body = "[" + body + "]"
	}
	who := msg.Sender.DisplayName
	if msg.Self {
		who += " (you)"
	}
	p.printf("%s %s: %s%s  #%s\n", msg.CreatedAt.Local().Format("01/02 15:04"), who, body, marker, shortID(msg.ID))
}

func (p *textPresenter) Remove(id string) {
	p.printf("message #%s deleted\n", shortID(id))
}

func (p *textPresenter) Reset() {
	p.printf("---- chat ----\n")
}

func (p *textPresenter) Info(text string) {
	p.printf("[info] %s\n", text)
}

func (p *textPresenter) Error(text string) {
	p.printf("[error] %s\n", text)
}

func (p *textPresenter) ShowAccount(account *authProvider.Account) {
	if account == nil {
		p.printf("signed out. use /login or /signup\n")
		return
	}
	p.printf("signed in as %s <%s>\n", account.DisplayName, account.Email)
}

func (p *textPresenter) ShowTab(tab prefs.Tab) {
	p.printf("== %s ==\n", tab)
}

func (p *textPresenter) ShowCalendar(view shiftCalendar.View) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s view)\n", view.Title, view.Mode)
	b.WriteString("  Sun   Mon   Tue   Wed   Thu   Fri   Sat\n")

	if view.Month != nil {
		for _, row := range view.Month.Rows {
			for _, cell := range row {
				b.WriteString(formatCell(cell))
			}
			b.WriteString("\n")
		}
	}
	if view.Week != nil {
		for _, day := range view.Week.Days {
			fmt.Fprintf(&b, " %4d ", day.Day)
		}
		b.WriteString("\n")
		for _, row := range view.Week.Rows {
			for _, cell := range row.Cells {
				mark := "  .   "
				if cell.Shift != nil {
					mark = fmt.Sprintf(" %-5s", abbreviate(cell.Shift.Status))
				}
				b.WriteString(mark)
			}
			fmt.Fprintf(&b, " %s\n", row.Status)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	io.WriteString(p.out, b.String())
}

func formatCell(cell shiftCalendar.Cell) string {
	if cell.Blank() {
		return "      "
	}
	today := " "
	if cell.Today {
		today = "*"
	}
	status := "   "
	if cell.Shift != nil {
		status = abbreviate(cell.Shift.Status)
	}
	return fmt.Sprintf("%s%2d%s", today, cell.Day, status)
}

func abbreviate(status gateway.ShiftStatus) string {
	switch status {
	case gateway.ShiftEarly:
		return ":E "
	case gateway.ShiftLate:
		return ":L "
	case gateway.ShiftSwap:
		return ":S "
	case gateway.ShiftSpecialLeave:
		return ":SL"
	case gateway.ShiftOffSite:
		return ":O "
	}
	return ":? "
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// bell rings the terminal bell for mentions.
type bell struct {
	out io.Writer
}

func (b bell) PlayMention() error {
	_, err := io.WriteString(b.out, "\a")
	return err
}
