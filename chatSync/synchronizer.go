// Package chatSync keeps a rendered chat timeline in step with the remote message
// log: an initial batch of recent history followed by a live subscription, with
// duplicates collapsed by message id.
package chatSync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shiftChat/gateway"
	"github.com/shiftChat/mention"
	"github.com/shiftChat/telemetry"
)

const (
	DefaultHistoryLimit = 50
	DefaultGrace        = 5 * time.Second

	loadFailedText = "Failed to load messages. Please reload the page."
)

var (
	ErrEmptyMessage = errors.New("chatSync: empty message")
	ErrNotSignedIn  = errors.New("chatSync: no signed-in user")
)

// RenderedMessage is a message paired with its resolved sender.
type RenderedMessage struct {
	gateway.Message
	Sender gateway.User
	Self   bool
}

// Renderer is the presentation layer for the timeline. Render is called with
// replaced set when a message already on screen changed.
type Renderer interface {
	Render(msg RenderedMessage, replaced bool)
	Remove(id string)
	Reset()
}

type Notifier interface {
	Info(text string)
	Error(text string)
}

type SoundPlayer interface {
	PlayMention() error
}

// Directory resolves senders and lists mention candidates. *cache.Cache satisfies it.
type Directory interface {
	GetUser(ctx context.Context, uid string) gateway.User
	Users() []gateway.User
}

// Mentioner fans a sent message out to the users it mentions.
type Mentioner interface {
	NotifyMentions(ctx context.Context, messageID string, sender gateway.User, content string, users []gateway.User) int
}

// Identity is the signed-in user the timeline is rendered for.
type Identity struct {
	UID         string
	DisplayName string
	PhotoURL    string
}

type Options struct {
	HistoryLimit int
	// Grace is subtracted from the subscription watermark so messages written
	// between the history fetch and the subscription are not lost.
	Grace       time.Duration
	EscapeNames bool
	Now         func() time.Time
}

type Synchronizer struct {
	store     gateway.MessageStore
	directory Directory
	renderer  Renderer
	notifier  Notifier
	sound     SoundPlayer
	mentioner Mentioner
	opts      Options

	mu       sync.Mutex
	self     Identity
	sub      gateway.Subscription
	attached bool
	gen      uint64
	order    []string
	messages map[string]RenderedMessage
}

// New returns a detached Synchronizer. notifier, sound and mentioner may be nil.
func New(store gateway.MessageStore, directory Directory, renderer Renderer, notifier Notifier, sound SoundPlayer, mentioner Mentioner, self Identity, opts Options) *Synchronizer {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Synchronizer{
		store:     store,
		directory: directory,
		renderer:  renderer,
		notifier:  notifier,
		sound:     sound,
		mentioner: mentioner,
		opts:      opts,
		self:      self,
		messages:  make(map[string]RenderedMessage),
	}
}

func (s *Synchronizer) identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// SetIdentity updates the signed-in user, e.g. after a profile change.
func (s *Synchronizer) SetIdentity(self Identity) {
	s.mu.Lock()
	s.self = self
	s.mu.Unlock()
}

// Attached reports whether a live subscription is held.
func (s *Synchronizer) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// Attach replaces any existing subscription, renders the most recent history in
// creation order and subscribes to new messages. ctx bounds the subscription's
// lifetime. A failed history fetch is reported through the notifier; only a failed
// subscription is returned as an error.
func (s *Synchronizer) Attach(ctx context.Context) error {
	if _, err := s.Detach(); err != nil {
		log.Warnf("closing previous message subscription: %s", err)
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.order = nil
	s.messages = make(map[string]RenderedMessage)
	s.mu.Unlock()
	s.renderer.Reset()

	since := s.opts.Now().Add(-s.opts.Grace)

	history, err := s.store.QueryRecentMessages(ctx, s.opts.HistoryLimit)
	if err != nil {
		log.Errorf("unable to fetch messages: %s", err)
		telemetry.ReadError("QueryRecentMessages")
		if s.notifier != nil {
			s.notifier.Error(loadFailedText)
		}
	} else {
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].CreatedAt.Before(history[j].CreatedAt)
		})
		for _, m := range history {
			s.render(ctx, gen, m)
		}
	}

	sub, err := s.store.SubscribeNewMessages(ctx, since, func(m gateway.Message) {
		if s.render(ctx, gen, m) {
			s.checkMention(ctx, m)
		}
	})
	if err != nil {
		return fmt.Errorf("chatSync.Attach: %w", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		// detached while subscribing
		s.mu.Unlock()
		return sub.Close()
	}
	s.sub = sub
	s.attached = true
	s.mu.Unlock()

	telemetry.SetAttached(1)
	log.WithField("history", len(history)).Debug("message stream attached")
	return nil
}

// Detach closes the live subscription. It reports false when nothing was attached.
// Callbacks already in flight for the closed subscription are dropped.
func (s *Synchronizer) Detach() (bool, error) {
	s.mu.Lock()
	s.gen++
	if !s.attached {
		s.mu.Unlock()
		return false, nil
	}
	sub := s.sub
	s.sub = nil
	s.attached = false
	s.mu.Unlock()

	telemetry.SetAttached(-1)
	if err := sub.Close(); err != nil {
		return true, fmt.Errorf("chatSync.Detach: %w", err)
	}
	return true, nil
}

// render shows m, replacing the entry with the same id if present. It reports
// whether m was new to the timeline.
func (s *Synchronizer) render(ctx context.Context, gen uint64, m gateway.Message) bool {
	if m.ID == "" {
		return false
	}

	self := s.identity()
	rm := RenderedMessage{
		Message: m,
		Sender:  s.directory.GetUser(ctx, m.SenderID),
		Self:    self.UID != "" && m.SenderID == self.UID,
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	_, exists := s.messages[m.ID]
	s.messages[m.ID] = rm
	if !exists {
		s.order = append(s.order, m.ID)
	}
	s.mu.Unlock()

	s.renderer.Render(rm, exists)
	if exists {
		telemetry.MessageMerged()
		return false
	}
	telemetry.MessageRendered()

	if self.UID != "" && !rm.Self && !m.ReadBy[self.UID] {
		if err := s.store.SetReadFlag(ctx, m.ID, self.UID); err != nil {
			log.Warnf("unable to mark message %s as read: %s", m.ID, err)
		}
	}
	return true
}

func (s *Synchronizer) checkMention(ctx context.Context, m gateway.Message) {
	self := s.identity()
	if self.UID == "" || m.SenderID == self.UID || m.Type != gateway.MessageTypeText || self.DisplayName == "" {
		return
	}
	if !mention.Matches(m.Content, self.DisplayName, s.opts.EscapeNames) {
		return
	}

	telemetry.MentionDetected()
	sender := s.directory.GetUser(ctx, m.SenderID)
	if s.notifier != nil {
		s.notifier.Info(sender.DisplayName + " mentioned you")
	}
	s.playMentionSound()
}

func (s *Synchronizer) playMentionSound() {
	if s.sound == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Debugf("mention sound panicked: %v", r)
		}
	}()
	if err := s.sound.PlayMention(); err != nil {
		log.Debugf("unable to play mention sound: %s", err)
	}
}

// Send pushes trimmed content as a text or stamp message and notifies mentioned
// users. Empty input returns ErrEmptyMessage and sends nothing.
func (s *Synchronizer) Send(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	self := s.identity()
	if self.UID == "" {
		return "", ErrNotSignedIn
	}

	messageType := mention.Classify(content)
	id, err := s.store.PushMessage(ctx, self.UID, content, messageType)
	if err != nil {
		return "", fmt.Errorf("chatSync.Send: %w", err)
	}

	if s.mentioner != nil && messageType == gateway.MessageTypeText {
		sender := gateway.User{UID: self.UID, DisplayName: self.DisplayName, PhotoURL: self.PhotoURL}
		s.mentioner.NotifyMentions(ctx, id, sender, content, s.directory.Users())
	}
	return id, nil
}

// Edit replaces a message's content and flags it as edited. The change reaches the
// timeline through the subscription.
func (s *Synchronizer) Edit(ctx context.Context, id, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	edited := true
	if err := s.store.UpdateMessage(ctx, id, gateway.MessageUpdate{Content: &content, Edited: &edited}); err != nil {
		return fmt.Errorf("chatSync.Edit: %w", err)
	}
	return nil
}

// Delete removes a message remotely and from the timeline.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("chatSync.Delete: %w", err)
	}

	s.mu.Lock()
	_, ok := s.messages[id]
	if ok {
		delete(s.messages, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if ok {
		s.renderer.Remove(id)
	}
	return nil
}

// Messages returns the timeline in display order.
func (s *Synchronizer) Messages() []RenderedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RenderedMessage, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.messages[id])
	}
	return out
}
