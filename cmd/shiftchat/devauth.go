package main

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shiftChat/authProvider"
)

// authenticator is the part of *authProvider.Provider the terminal uses.
type authenticator interface {
	SignIn(ctx context.Context, email, password string) (*authProvider.Account, error)
	SignUp(ctx context.Context, email, password, displayName string) (*authProvider.Account, error)
	SignOut()
	SendPasswordReset(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, displayName, photoURL string) (*authProvider.Account, error)
	OnAuthStateChange(fn func(*authProvider.Account)) authProvider.Listener
	Current() *authProvider.Account
}

type devAccount struct {
	account  authProvider.Account
	password string
}

// devAuth keeps accounts in memory for -dev runs. Errors use the identity
// service's codes so the terminal behaves the same in both modes.
type devAuth struct {
	mu        sync.Mutex
	accounts  map[string]*devAccount
	current   *authProvider.Account
	listeners map[int]func(*authProvider.Account)
	nextID    int
}

func newDevAuth() *devAuth {
	return &devAuth{
		accounts:  make(map[string]*devAccount),
		listeners: make(map[int]func(*authProvider.Account)),
	}
}

type devListener struct {
	a    *devAuth
	id   int
	once sync.Once
}

func (l *devListener) Close() {
	l.once.Do(func() {
		l.a.mu.Lock()
		delete(l.a.listeners, l.id)
		l.a.mu.Unlock()
	})
}

func (a *devAuth) OnAuthStateChange(fn func(*authProvider.Account)) authProvider.Listener {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	cur := a.current
	a.mu.Unlock()

	fn(cur)
	return &devListener{a: a, id: id}
}

func (a *devAuth) set(account *authProvider.Account) {
	a.mu.Lock()
	a.current = account
	var fns []func(*authProvider.Account)
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(account)
	}
}

func (a *devAuth) Current() *authProvider.Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	c := *a.current
	return &c
}

func (a *devAuth) SignIn(ctx context.Context, email, password string) (*authProvider.Account, error) {
	a.mu.Lock()
	acct, ok := a.accounts[strings.ToLower(email)]
	a.mu.Unlock()
	if !ok {
		return nil, &authProvider.AuthError{Op: "SignIn", Code: 400, Message: "EMAIL_NOT_FOUND"}
	}
	if acct.password != password {
		return nil, &authProvider.AuthError{Op: "SignIn", Code: 400, Message: "INVALID_PASSWORD"}
	}
	account := acct.account
	a.set(&account)
	return &account, nil
}

func (a *devAuth) SignUp(ctx context.Context, email, password, displayName string) (*authProvider.Account, error) {
	if len(password) < 6 {
		return nil, &authProvider.AuthError{Op: "SignUp", Code: 400, Message: "WEAK_PASSWORD : Password should be at least 6 characters"}
	}
	key := strings.ToLower(email)
	avatars := authProvider.Avatars()

	a.mu.Lock()
	if _, exists := a.accounts[key]; exists {
		a.mu.Unlock()
		return nil, &authProvider.AuthError{Op: "SignUp", Code: 400, Message: "EMAIL_EXISTS"}
	}
	acct := &devAccount{
		account: authProvider.Account{
			UID:         uuid.NewString(),
			Email:       email,
			DisplayName: displayName,
			PhotoURL:    avatars[len(a.accounts)%len(avatars)],
		},
		password: password,
	}
	a.accounts[key] = acct
	a.mu.Unlock()

	account := acct.account
	a.set(&account)
	return &account, nil
}

func (a *devAuth) SignOut() {
	if a.Current() == nil {
		return
	}
	a.set(nil)
}

func (a *devAuth) SendPasswordReset(ctx context.Context, email string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.accounts[strings.ToLower(email)]; !ok {
		return &authProvider.AuthError{Op: "SendPasswordReset", Code: 400, Message: "EMAIL_NOT_FOUND"}
	}
	return nil
}

func (a *devAuth) UpdateProfile(ctx context.Context, displayName, photoURL string) (*authProvider.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil, authProvider.ErrNotSignedIn
	}
	acct := a.accounts[strings.ToLower(a.current.Email)]
	acct.account.DisplayName = displayName
	if photoURL != "" {
		acct.account.PhotoURL = photoURL
	}
	updated := acct.account
	a.current = &updated
	c := updated
	return &c, nil
}
