// Package authProvider signs users in and out against the hosted identity service
// and tells observers when the signed-in account changes.
package authProvider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

var ErrNotSignedIn = errors.New("authProvider: no signed-in user")

// AuthError carries the identity service's message unchanged, e.g.
// "EMAIL_NOT_FOUND" or "WEAK_PASSWORD : Password should be at least 6 characters".
type AuthError struct {
	Op      string
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func authError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Error()
		}
		return &AuthError{Op: op, Code: gerr.Code, Message: msg}
	}
	return &AuthError{Op: op, Message: err.Error()}
}

// Account is the signed-in identity.
type Account struct {
	UID          string
	Email        string
	DisplayName  string
	PhotoURL     string
	IDToken      string
	RefreshToken string
}

// Listener is returned by OnAuthStateChange; Close stops notifications.
type Listener interface {
	Close()
}

type listener struct {
	p    *Provider
	id   int
	once sync.Once
}

func (l *listener) Close() {
	l.once.Do(func() {
		l.p.mu.Lock()
		delete(l.p.listeners, l.id)
		l.p.mu.Unlock()
	})
}

type Provider struct {
	svc *identitytoolkit.Service

	mu        sync.Mutex
	rnd       *rand.Rand
	current   *Account
	listeners map[int]func(*Account)
	nextID    int
}

// New builds a Provider for the project identified by apiKey. Extra options are
// appended, which tests use to point the client at a local server.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Provider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing identity toolkit: %w", err)
	}
	return &Provider{
		svc:       svc,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		listeners: make(map[int]func(*Account)),
	}, nil
}

func copyAccount(a *Account) *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Current returns the signed-in account or nil.
func (p *Provider) Current() *Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyAccount(p.current)
}

// OnAuthStateChange registers fn and calls it once with the current state.
func (p *Provider) OnAuthStateChange(fn func(*Account)) Listener {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := copyAccount(p.current)
	p.mu.Unlock()

	fn(current)
	return &listener{p: p, id: id}
}

func (p *Provider) setCurrent(a *Account) {
	p.mu.Lock()
	p.current = copyAccount(a)
	fns := make([]func(*Account), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(copyAccount(a))
	}
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*Account, error) {
	resp, err := p.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		log.WithField("email", email).Warnf("sign in failed: %s", err)
		return nil, authError("SignIn", err)
	}

	account := &Account{
		UID:          resp.LocalId,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		PhotoURL:     resp.PhotoUrl,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}
	p.setCurrent(account)
	return copyAccount(account), nil
}

func (p *Provider) randomAvatar() string {
	avatars := Avatars()
	p.mu.Lock()
	defer p.mu.Unlock()
	return avatars[p.rnd.Intn(len(avatars))]
}

// SignUp creates an account with a random catalog avatar and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*Account, error) {
	avatar := p.randomAvatar()
	resp, err := p.svc.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
		PhotoUrl:    avatar,
	}).Context(ctx).Do()
	if err != nil {
		log.WithField("email", email).Warnf("sign up failed: %s", err)
		return nil, authError("SignUp", err)
	}

	account := &Account{
		UID:          resp.LocalId,
		Email:        email,
		DisplayName:  displayName,
		PhotoURL:     avatar,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.Email != "" {
		account.Email = resp.Email
	}
	p.setCurrent(account)
	return copyAccount(account), nil
}

// SignOut forgets the local session. Observers are notified with nil.
func (p *Provider) SignOut() {
	if p.Current() == nil {
		return
	}
	p.setCurrent(nil)
}

func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	_, err := p.svc.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		Email:       email,
		RequestType: "PASSWORD_RESET",
	}).Context(ctx).Do()
	if err != nil {
		return authError("SendPasswordReset", err)
	}
	return nil
}

// UpdateProfile changes the signed-in account's display name and photo.
func (p *Provider) UpdateProfile(ctx context.Context, displayName, photoURL string) (*Account, error) {
	current := p.Current()
	if current == nil {
		return nil, ErrNotSignedIn
	}

	resp, err := p.svc.Relyingparty.SetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken:     current.IDToken,
		DisplayName: displayName,
		PhotoUrl:    photoURL,
	}).Context(ctx).Do()
	if err != nil {
		return nil, authError("UpdateProfile", err)
	}

	current.DisplayName = displayName
	current.PhotoURL = photoURL
	if resp.IdToken != "" {
		current.IDToken = resp.IdToken
	}
	if resp.RefreshToken != "" {
		current.RefreshToken = resp.RefreshToken
	}

	p.mu.Lock()
	if p.current != nil && p.current.UID == current.UID {
		p.current = copyAccount(current)
	}
	p.mu.Unlock()
	return current, nil
}
