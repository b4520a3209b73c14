package shiftChat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shiftChat/authProvider"
	"github.com/shiftChat/chatSync"
	"github.com/shiftChat/gateway"
	"github.com/shiftChat/memoryGateway"
	"github.com/shiftChat/prefs"
	"github.com/shiftChat/shiftCalendar"
)

type fakePresenter struct {
	mu        sync.Mutex
	rendered  []chatSync.RenderedMessage
	errors    []string
	infos     []string
	accounts  []*authProvider.Account
	tabs      []prefs.Tab
	calendars []shiftCalendar.View
}

func (p *fakePresenter) Render(msg chatSync.RenderedMessage, replaced bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !replaced {
		p.rendered = append(p.rendered, msg)
	}
}
func (p *fakePresenter) Remove(id string) {}
func (p *fakePresenter) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rendered = nil
}
func (p *fakePresenter) Info(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.infos = append(p.infos, text)
}
func (p *fakePresenter) Error(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, text)
}
func (p *fakePresenter) ShowAccount(account *authProvider.Account) {
	p.accounts = append(p.accounts, account)
}
func (p *fakePresenter) ShowTab(tab prefs.Tab) { p.tabs = append(p.tabs, tab) }
func (p *fakePresenter) ShowCalendar(view shiftCalendar.View) {
	p.calendars = append(p.calendars, view)
}

type fakeProfile struct {
	err   error
	calls int
}

func (f *fakeProfile) UpdateProfile(ctx context.Context, displayName, photoURL string) (*authProvider.Account, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &authProvider.Account{DisplayName: displayName, PhotoURL: photoURL}, nil
}

func newTestApp(t *testing.T) (*App, *memoryGateway.Client, *fakePresenter, prefs.Store, *fakeProfile) {
	t.Helper()
	gw := memoryGateway.New()
	presenter := &fakePresenter{}
	store := prefs.NewMemory()
	profile := &fakeProfile{}
	now := func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) }
	app := New(gw, profile, store, presenter, Options{
		Chat: chatSync.Options{Now: func() time.Time { return time.Time{} }},
		Now:  now,
	})
	t.Cleanup(app.Close)
	return app, gw, presenter, store, profile
}

func TestHandleAuthState_SignInDefaults(t *testing.T) {
	app, gw, presenter, _, _ := newTestApp(t)
	ctx := context.Background()

	if err := app.HandleAuthState(ctx, &authProvider.Account{UID: "u1", Email: "alice@example.com"}); err != nil {
		t.Fatalf("HandleAuthState: %v", err)
	}

	u, err := gw.GetUser(ctx, "u1")
	if err != nil || u == nil {
		t.Fatalf("GetUser = %v, %v", u, err)
	}
	if u.DisplayName != DefaultDisplayName || u.PhotoURL != authProvider.DefaultAvatar || u.LastLogin.IsZero() {
		t.Errorf("unexpected user record %+v", u)
	}

	s := app.Session()
	if s == nil || !s.Chat.Attached() {
		t.Fatal("expected a session with chat attached")
	}
	if len(presenter.tabs) != 1 || presenter.tabs[0] != prefs.TabChat {
		t.Errorf("tabs shown %v, want [chat]", presenter.tabs)
	}
	if len(presenter.accounts) != 1 || presenter.accounts[0].DisplayName != DefaultDisplayName {
		t.Errorf("accounts shown %+v", presenter.accounts)
	}
}

func TestHandleAuthState_RestoresShiftTab(t *testing.T) {
	app, _, presenter, store, _ := newTestApp(t)
	ctx := context.Background()
	store.SetActiveTab(ctx, prefs.TabShift)

	if err := app.HandleAuthState(ctx, &authProvider.Account{UID: "u1", DisplayName: "Alice"}); err != nil {
		t.Fatalf("HandleAuthState: %v", err)
	}
	if len(presenter.calendars) != 1 || presenter.calendars[0].Title != "March 2024" {
		t.Errorf("calendars shown %+v", presenter.calendars)
	}
	if app.Session().Chat.Attached() {
		t.Error("chat should not attach when the shift tab is active")
	}
}

func TestHandleAuthState_SignOutDisposesSession(t *testing.T) {
	app, gw, presenter, _, _ := newTestApp(t)
	ctx := context.Background()

	app.HandleAuthState(ctx, &authProvider.Account{UID: "u1", DisplayName: "Alice"})
	s := app.Session()

	if err := app.HandleAuthState(ctx, nil); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if app.Session() != nil {
		t.Error("session should be cleared")
	}
	if s.Chat.Attached() {
		t.Error("chat should be detached")
	}
	if last := presenter.accounts[len(presenter.accounts)-1]; last != nil {
		t.Errorf("expected sign-in screen, got %+v", last)
	}

	gw.PushMessage(ctx, "u2", "anyone?", gateway.MessageTypeText)
	if len(s.Chat.Messages()) != 0 {
		t.Error("disposed session must not receive messages")
	}
}

func TestSwitchTab(t *testing.T) {
	app, _, presenter, store, _ := newTestApp(t)
	ctx := context.Background()

	if err := app.SwitchTab(ctx, prefs.TabShift); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("SwitchTab signed out = %v, want ErrNotSignedIn", err)
	}

	app.HandleAuthState(ctx, &authProvider.Account{UID: "u1", DisplayName: "Alice"})
	if err := app.SwitchTab(ctx, prefs.TabShift); err != nil {
		t.Fatalf("SwitchTab: %v", err)
	}
	if tab, _ := store.ActiveTab(ctx); tab != prefs.TabShift {
		t.Errorf("persisted tab = %s, want shift", tab)
	}
	if len(presenter.calendars) != 1 {
		t.Errorf("expected the calendar to render, got %d views", len(presenter.calendars))
	}

	if err := app.SwitchTab(ctx, "settings"); err == nil {
		t.Error("expected error for unknown tab")
	}
}

func TestUpdateProfile(t *testing.T) {
	app, gw, _, _, profile := newTestApp(t)
	ctx := context.Background()
	app.HandleAuthState(ctx, &authProvider.Account{UID: "u1", DisplayName: "Alice"})

	if err := app.UpdateProfile(ctx, "  ", ""); err == nil {
		t.Error("expected error for blank display name")
	}
	if profile.calls != 0 {
		t.Error("blank name must not reach the auth service")
	}

	if err := app.UpdateProfile(ctx, "Ally", "https://robohash.org/Alice?set=set3"); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	u, _ := gw.GetUser(ctx, "u1")
	if u.DisplayName != "Ally" || u.PhotoURL != "https://robohash.org/Alice?set=set3" {
		t.Errorf("user record %+v", u)
	}
	if cached, _ := app.Session().Cache.Lookup("u1"); cached.DisplayName != "Ally" {
		t.Errorf("cache not updated: %+v", cached)
	}

	profile.err = &authProvider.AuthError{Op: "UpdateProfile", Message: "TOKEN_EXPIRED"}
	err := app.UpdateProfile(ctx, "Al", "")
	var authErr *authProvider.AuthError
	if !errors.As(err, &authErr) || authErr.Error() != "TOKEN_EXPIRED" {
		t.Errorf("UpdateProfile error = %v", err)
	}
}

func TestNotifications(t *testing.T) {
	app, gw, _, _, _ := newTestApp(t)
	ctx := context.Background()

	if _, err := app.UnreadNotifications(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("UnreadNotifications signed out = %v", err)
	}

	app.HandleAuthState(ctx, &authProvider.Account{UID: "u1", DisplayName: "Alice"})
	id, _ := gw.CreateNotification(ctx, gateway.Notification{UserID: "u1", SenderID: "u2", MessageID: "m1", Type: gateway.NotificationMention})
	gw.CreateNotification(ctx, gateway.Notification{UserID: "u2", SenderID: "u1", MessageID: "m2", Type: gateway.NotificationMention})

	unread, err := app.UnreadNotifications(ctx)
	if err != nil || len(unread) != 1 || unread[0].ID != id {
		t.Fatalf("UnreadNotifications = %+v, %v", unread, err)
	}
	if err := app.MarkNotificationRead(ctx, id); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if unread, _ := app.UnreadNotifications(ctx); len(unread) != 0 {
		t.Errorf("expected no unread notifications, got %+v", unread)
	}
}
