// Package shiftChat ties the chat and shift screens to the signed-in account: it
// builds a Session when a user signs in, tears it down on sign-out, and routes tab
// switches and profile edits.
package shiftChat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shiftChat/authProvider"
	"github.com/shiftChat/cache"
	"github.com/shiftChat/chatSync"
	"github.com/shiftChat/gateway"
	"github.com/shiftChat/prefs"
	"github.com/shiftChat/shiftCalendar"
)

const DefaultDisplayName = "No name"

var ErrNotSignedIn = errors.New("shiftChat: no signed-in user")

// Presenter is the presentation layer driven by the App.
type Presenter interface {
	chatSync.Renderer
	chatSync.Notifier
	// ShowAccount switches between the signed-in screens and the sign-in form
	// (account == nil).
	ShowAccount(account *authProvider.Account)
	ShowTab(tab prefs.Tab)
	ShowCalendar(view shiftCalendar.View)
}

// ProfileUpdater changes the auth profile. *authProvider.Provider satisfies it.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, displayName, photoURL string) (*authProvider.Account, error)
}

type Options struct {
	Chat      chatSync.Options
	Sound     chatSync.SoundPlayer
	Mentioner chatSync.Mentioner
	Now       func() time.Time
}

// Session holds everything that lives between sign-in and sign-out.
type Session struct {
	Account  authProvider.Account
	Cache    *cache.Cache
	Chat     *chatSync.Synchronizer
	Calendar *shiftCalendar.Calendar

	ctx    context.Context
	cancel context.CancelFunc
}

func (s *Session) close() {
	if _, err := s.Chat.Detach(); err != nil {
		log.Warnf("detaching chat: %s", err)
	}
	s.cancel()
}

type App struct {
	gw        gateway.Gateway
	auth      ProfileUpdater
	prefs     prefs.Store
	presenter Presenter
	opts      Options

	mu      sync.Mutex
	session *Session
}

func New(gw gateway.Gateway, auth ProfileUpdater, store prefs.Store, presenter Presenter, opts Options) *App {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &App{gw: gw, auth: auth, prefs: store, presenter: presenter, opts: opts}
}

// Session returns the active session or nil.
func (a *App) Session() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *App) dispose() {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()
	if s != nil {
		s.close()
	}
}

// HandleAuthState reacts to sign-in (account != nil) and sign-out (nil). Use it as
// the authProvider state observer.
func (a *App) HandleAuthState(ctx context.Context, account *authProvider.Account) error {
	a.dispose()
	if account == nil {
		a.presenter.ShowAccount(nil)
		return nil
	}

	acct := *account
	if acct.DisplayName == "" {
		acct.DisplayName = DefaultDisplayName
	}
	if acct.PhotoURL == "" {
		acct.PhotoURL = authProvider.DefaultAvatar
	}

	if err := a.gw.UpsertUser(ctx, acct.UID, gateway.UserFields{
		DisplayName: acct.DisplayName,
		Email:       acct.Email,
		PhotoURL:    acct.PhotoURL,
	}); err != nil {
		log.WithField("uid", acct.UID).Errorf("unable to save user data: %s", err)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := cache.New(a.gw)
	c.PutUser(gateway.User{UID: acct.UID, DisplayName: acct.DisplayName, Email: acct.Email, PhotoURL: acct.PhotoURL})
	if err := c.LoadUsers(sctx); err != nil {
		log.Warnf("continuing without the user list: %s", err)
	}

	s := &Session{
		Account: acct,
		Cache:   c,
		Chat: chatSync.New(a.gw, c, a.presenter, a.presenter, a.opts.Sound, a.opts.Mentioner,
			chatSync.Identity{UID: acct.UID, DisplayName: acct.DisplayName, PhotoURL: acct.PhotoURL}, a.opts.Chat),
		Calendar: shiftCalendar.New(a.gw, c, acct.UID, a.opts.Now),
		ctx:      sctx,
		cancel:   cancel,
	}

	a.mu.Lock()
	a.session = s
	a.mu.Unlock()

	a.presenter.ShowAccount(&acct)

	tab, err := a.prefs.ActiveTab(ctx)
	if err != nil {
		log.Warnf("unable to read active tab: %s", err)
		tab = prefs.TabChat
	}
	return a.start(s, tab)
}

func (a *App) start(s *Session, tab prefs.Tab) error {
	a.presenter.ShowTab(tab)

	if tab == prefs.TabShift {
		view, err := s.Calendar.Refresh(s.ctx)
		a.presenter.ShowCalendar(view)
		if err != nil {
			a.presenter.Error("Failed to load shifts.")
		}
		return nil
	}

	if err := s.Chat.Attach(s.ctx); err != nil {
		a.presenter.Error("Failed to connect to chat.")
		return fmt.Errorf("shiftChat.start: %w", err)
	}
	return nil
}

// SwitchTab persists tab and starts its module. It is ignored while signed out.
func (a *App) SwitchTab(ctx context.Context, tab prefs.Tab) error {
	s := a.Session()
	if s == nil {
		return ErrNotSignedIn
	}
	if err := a.prefs.SetActiveTab(ctx, tab); err != nil {
		return fmt.Errorf("shiftChat.SwitchTab: %w", err)
	}
	return a.start(s, tab)
}

// UpdateProfile changes the display name and avatar on the auth account and the
// user record. A blank display name is rejected.
func (a *App) UpdateProfile(ctx context.Context, displayName, photoURL string) error {
	s := a.Session()
	if s == nil {
		return ErrNotSignedIn
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return errors.New("shiftChat.UpdateProfile: display name is required")
	}

	if _, err := a.auth.UpdateProfile(ctx, displayName, photoURL); err != nil {
		return err
	}
	if err := a.gw.UpsertUser(ctx, s.Account.UID, gateway.UserFields{DisplayName: displayName, PhotoURL: photoURL}); err != nil {
		return fmt.Errorf("shiftChat.UpdateProfile: %w", err)
	}

	a.mu.Lock()
	if a.session == s {
		s.Account.DisplayName = displayName
		if photoURL != "" {
			s.Account.PhotoURL = photoURL
		}
	}
	acct := s.Account
	a.mu.Unlock()

	s.Cache.PutUser(gateway.User{UID: acct.UID, DisplayName: acct.DisplayName, PhotoURL: acct.PhotoURL})
	s.Chat.SetIdentity(chatSync.Identity{UID: acct.UID, DisplayName: acct.DisplayName, PhotoURL: acct.PhotoURL})
	a.presenter.ShowAccount(&acct)
	return nil
}

func (a *App) UnreadNotifications(ctx context.Context) ([]gateway.Notification, error) {
	s := a.Session()
	if s == nil {
		return nil, ErrNotSignedIn
	}
	notifications, err := a.gw.QueryUnreadNotifications(ctx, s.Account.UID)
	if err != nil {
		log.Errorf("unable to fetch notifications: %s", err)
		return []gateway.Notification{}, fmt.Errorf("shiftChat.UnreadNotifications: %w", err)
	}
	return notifications, nil
}

func (a *App) MarkNotificationRead(ctx context.Context, id string) error {
	if a.Session() == nil {
		return ErrNotSignedIn
	}
	if err := a.gw.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("shiftChat.MarkNotificationRead: %w", err)
	}
	return nil
}

// Close disposes the session.
func (a *App) Close() {
	a.dispose()
}
