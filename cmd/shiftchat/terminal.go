package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	shiftChat "github.com/shiftChat"
	"github.com/shiftChat/authProvider"
	"github.com/shiftChat/chatSync"
	"github.com/shiftChat/gateway"
	"github.com/shiftChat/mention"
	"github.com/shiftChat/prefs"
	"github.com/shiftChat/shiftCalendar"
)

const helpText = `commands:
  /login <email> <password>        /signup <email> <password> <name>
  /logout                          /reset <email>
  /tab chat|shift                  /profile <name> [photoURL]   /avatars
  /edit <id> <text>                /delete <id>                 /who <partial>
  /next  /prev  /view month|week   /day <YYYY-MM-DD>
  /save <status> [comment]         /cancel
  /notifications                   /read <id>
  /help  /quit
statuses: early, late, swap, special-leave, off-site
anything else is sent as a chat message`

type terminal struct {
	app       *shiftChat.App
	auth      authenticator
	presenter *textPresenter
}

func (t *terminal) run(ctx context.Context, in io.Reader) {
	t.presenter.printf("%s\n", helpText)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := t.handle(ctx, line); quit {
				return
			}
		}
	}
}

func (t *terminal) report(err error) {
	if err == nil {
		return
	}
	var authErr *authProvider.AuthError
	if errors.As(err, &authErr) {
		t.presenter.Error(authErr.Error())
		return
	}
	t.presenter.Error(err.Error())
}

func (t *terminal) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		t.send(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	rest := func(from int) string {
		if len(args) <= from {
			return ""
		}
		return strings.Join(args[from:], " ")
	}

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		t.presenter.printf("%s\n", helpText)
	case "/login":
		if len(args) < 2 {
			t.presenter.Error("usage: /login <email> <password>")
			return false
		}
		_, err := t.auth.SignIn(ctx, args[0], args[1])
		t.report(err)
	case "/signup":
		if len(args) < 3 {
			t.presenter.Error("usage: /signup <email> <password> <name>")
			return false
		}
		_, err := t.auth.SignUp(ctx, args[0], args[1], rest(2))
		t.report(err)
	case "/logout":
		t.auth.SignOut()
	case "/reset":
		if len(args) < 1 {
			t.presenter.Error("usage: /reset <email>")
			return false
		}
		if err := t.auth.SendPasswordReset(ctx, args[0]); err != nil {
			t.report(err)
			return false
		}
		t.presenter.Info("Password reset email sent.")
	case "/tab":
		t.report(t.app.SwitchTab(ctx, prefs.Tab(rest(0))))
	case "/profile":
		if len(args) < 1 {
			t.presenter.Error("usage: /profile <name> [photoURL]")
			return false
		}
		photo := ""
		name := rest(0)
		if last := args[len(args)-1]; len(args) > 1 && strings.HasPrefix(last, "http") {
			photo = last
			name = strings.Join(args[:len(args)-1], " ")
		}
		if err := t.app.UpdateProfile(ctx, name, photo); err != nil {
			t.report(err)
			return false
		}
		t.presenter.Info("Profile updated.")
	case "/avatars":
		for _, a := range authProvider.Avatars() {
			t.presenter.printf("  %s\n", a)
		}
	case "/edit":
		t.withSession(func(s *shiftChat.Session) {
			if len(args) < 2 {
				t.presenter.Error("usage: /edit <id> <text>")
				return
			}
			t.report(s.Chat.Edit(ctx, resolveID(s, args[0]), rest(1)))
		})
	case "/delete":
		t.withSession(func(s *shiftChat.Session) {
			if len(args) < 1 {
				t.presenter.Error("usage: /delete <id>")
				return
			}
			t.report(s.Chat.Delete(ctx, resolveID(s, args[0])))
		})
	case "/who":
		t.withSession(func(s *shiftChat.Session) {
			for _, u := range mention.Candidates("@"+strings.TrimPrefix(rest(0), "@"), s.Cache.Users()) {
				t.presenter.printf("  @%s\n", u.DisplayName)
			}
		})
	case "/next", "/prev", "/view":
		t.withSession(func(s *shiftChat.Session) {
			switch cmd {
			case "/next":
				s.Calendar.NextMonth()
			case "/prev":
				s.Calendar.PrevMonth()
			default:
				if err := s.Calendar.SetView(shiftCalendar.Mode(rest(0))); err != nil {
					t.report(err)
					return
				}
			}
			view, err := s.Calendar.Refresh(ctx)
			t.presenter.ShowCalendar(view)
			if err != nil {
				t.presenter.Error("Failed to load shifts.")
			}
		})
	case "/day":
		t.withSession(func(s *shiftChat.Session) {
			form, err := s.Calendar.OpenForm(rest(0))
			if err != nil {
				t.report(err)
				return
			}
			t.presenter.printf("editing %s: status=%s comment=%q (use /save or /cancel)\n", form.Date, form.Status, form.Comment)
		})
	case "/save":
		t.withSession(func(s *shiftChat.Session) {
			if len(args) < 1 {
				t.presenter.Error("usage: /save <status> [comment]")
				return
			}
			if _, err := s.Calendar.Save(ctx, gateway.ShiftStatus(args[0]), rest(1)); err != nil {
				t.report(err)
				return
			}
			t.presenter.Info("Shift saved.")
			t.presenter.ShowCalendar(s.Calendar.Render())
		})
	case "/cancel":
		t.withSession(func(s *shiftChat.Session) { s.Calendar.CloseForm() })
	case "/notifications":
		notifications, err := t.app.UnreadNotifications(ctx)
		if err != nil {
			t.report(err)
			return false
		}
		for _, n := range notifications {
			t.presenter.printf("  %s %s mentioned you in #%s\n", n.ID, n.SenderID, shortID(n.MessageID))
		}
	case "/read":
		t.report(t.app.MarkNotificationRead(ctx, rest(0)))
	default:
		t.presenter.Error(fmt.Sprintf("unknown command %s, try /help", cmd))
	}
	return false
}

func (t *terminal) withSession(fn func(s *shiftChat.Session)) {
	s := t.app.Session()
	if s == nil {
		t.presenter.Error("Please sign in first.")
		return
	}
	fn(s)
}

func (t *terminal) send(ctx context.Context, text string) {
	t.withSession(func(s *shiftChat.Session) {
		_, err := s.Chat.Send(ctx, text)
		if errors.Is(err, chatSync.ErrEmptyMessage) {
			return
		}
		if err != nil {
			t.presenter.Error("Failed to send message: " + err.Error())
		}
	})
}

// resolveID expands a short id printed by the presenter to the full message id.
func resolveID(s *shiftChat.Session, prefix string) string {
	for _, m := range s.Chat.Messages() {
		if strings.HasPrefix(m.ID, prefix) {
			return m.ID
		}
	}
	return prefix
}
