// Package memoryGateway is an in-process gateway used in dev mode and tests. It keeps
// the same ordering and upsert semantics as the hosted store and delivers subscription
// callbacks synchronously on the writer's goroutine.
package memoryGateway

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shiftChat/gateway"
)

type subscriber struct {
	since  time.Time
	fn     func(gateway.Message)
	closed bool
}

type subscription struct {
	c    *Client
	sub  *subscriber
	once sync.Once
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.c.mu.Lock()
		s.sub.closed = true
		delete(s.c.subscribers, s.sub)
		s.c.mu.Unlock()
	})
	return nil
}

type Option func(*Client)

// WithClock replaces the server clock used for createdAt/lastLogin stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

type Client struct {
	mu            sync.RWMutex
	now           func() time.Time
	messages      map[string]gateway.Message
	users         map[string]gateway.User
	shifts        map[string]gateway.Shift
	notifications map[string]gateway.Notification
	subscribers   map[*subscriber]struct{}
}

func New(opts ...Option) *Client {
	c := &Client{
		now:           time.Now,
		messages:      make(map[string]gateway.Message),
		users:         make(map[string]gateway.User),
		shifts:        make(map[string]gateway.Shift),
		notifications: make(map[string]gateway.Notification),
		subscribers:   make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.subscribers {
		s.closed = true
	}
	c.subscribers = make(map[*subscriber]struct{})
	return nil
}

func copyMessage(m gateway.Message) gateway.Message {
	readBy := make(map[string]bool, len(m.ReadBy))
	for k, v := range m.ReadBy {
		readBy[k] = v
	}
	m.ReadBy = readBy
	return m
}

// targets returns the live subscribers interested in a message created at createdAt.
// Callers must hold c.mu.
func (c *Client) targets(createdAt time.Time) []*subscriber {
	var out []*subscriber
	for s := range c.subscribers {
		if !s.closed && !createdAt.Before(s.since) {
			out = append(out, s)
		}
	}
	return out
}

func (c *Client) deliver(subs []*subscriber, m gateway.Message) {
	for _, s := range subs {
		c.mu.RLock()
		closed := s.closed
		c.mu.RUnlock()
		if closed {
			continue
		}
		s.fn(copyMessage(m))
	}
}

func (c *Client) PushMessage(ctx context.Context, senderID, content string, messageType gateway.MessageType) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	m := gateway.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Content:   content,
		Type:      messageType,
		CreatedAt: c.now(),
		ReadBy:    map[string]bool{},
	}
	c.messages[m.ID] = m
	subs := c.targets(m.CreatedAt)
	c.mu.Unlock()

	c.deliver(subs, m)
	return m.ID, nil
}

func (c *Client) QueryRecentMessages(ctx context.Context, limit int) ([]gateway.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	messages := make([]gateway.Message, 0, len(c.messages))
	for _, m := range c.messages {
		messages = append(messages, copyMessage(m))
	}
	c.mu.RUnlock()

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (c *Client) SubscribeNewMessages(ctx context.Context, since time.Time, fn func(gateway.Message)) (gateway.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &subscriber{since: since, fn: fn}
	c.mu.Lock()
	c.subscribers[s] = struct{}{}
	var backlog []gateway.Message
	for _, m := range c.messages {
		if !m.CreatedAt.Before(since) {
			backlog = append(backlog, copyMessage(m))
		}
	}
	c.mu.Unlock()

	// The hosted store replays matching documents as "added" on attach.
	sort.SliceStable(backlog, func(i, j int) bool {
		return backlog[i].CreatedAt.Before(backlog[j].CreatedAt)
	})
	for _, m := range backlog {
		c.deliver([]*subscriber{s}, m)
	}

	return &subscription{c: c, sub: s}, nil
}

func (c *Client) SetReadFlag(ctx context.Context, messageID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	m, ok := c.messages[messageID]
	if !ok {
		c.mu.Unlock()
		return gateway.ErrNotFound
	}
	if m.ReadBy[userID] {
		c.mu.Unlock()
		return nil
	}
	m = copyMessage(m)
	m.ReadBy[userID] = true
	c.messages[messageID] = m
	subs := c.targets(m.CreatedAt)
	c.mu.Unlock()

	c.deliver(subs, m)
	return nil
}

func (c *Client) UpdateMessage(ctx context.Context, messageID string, update gateway.MessageUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	m, ok := c.messages[messageID]
	if !ok {
		c.mu.Unlock()
		return gateway.ErrNotFound
	}
	if update.Content != nil {
		m.Content = *update.Content
	}
	if update.Edited != nil {
		m.Edited = *update.Edited
	}
	c.messages[messageID] = m
	subs := c.targets(m.CreatedAt)
	c.mu.Unlock()

	c.deliver(subs, m)
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.messages, messageID)
	return nil
}

func (c *Client) UpsertUser(ctx context.Context, uid string, fields gateway.UserFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	u := c.users[uid]
	u.UID = uid
	if fields.DisplayName != "" {
		u.DisplayName = fields.DisplayName
	}
	if fields.Email != "" {
		u.Email = fields.Email
	}
	if fields.PhotoURL != "" {
		u.PhotoURL = fields.PhotoURL
	}
	if fields.PushToken != "" {
		u.PushToken = fields.PushToken
	}
	u.LastLogin = c.now()
	c.users[uid] = u
	return nil
}

func (c *Client) GetUser(ctx context.Context, uid string) (*gateway.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[uid]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]gateway.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	users := make([]gateway.User, 0, len(c.users))
	for _, u := range c.users {
		users = append(users, u)
	}
	c.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].UID < users[j].UID })
	return users, nil
}

func (c *Client) UpsertShift(ctx context.Context, userID, date string, status gateway.ShiftStatus, comment string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := gateway.CompositeKey(userID, date)

	c.mu.Lock()
	defer c.mu.Unlock()
	id := ""
	for shiftID, s := range c.shifts {
		if s.UserDate == key {
			id = shiftID
			break
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	c.shifts[id] = gateway.Shift{
		ID:        id,
		UserID:    userID,
		Date:      date,
		Status:    status,
		Comment:   comment,
		UserDate:  key,
		CreatedAt: c.now(),
	}
	return id, nil
}

func (c *Client) QueryShiftsInRange(ctx context.Context, userID, start, end string) ([]gateway.Shift, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	var shifts []gateway.Shift
	for _, s := range c.shifts {
		if userID != "" && s.UserID != userID {
			continue
		}
		if s.Date < start || s.Date > end {
			continue
		}
		shifts = append(shifts, s)
	}
	c.mu.RUnlock()

	sort.Slice(shifts, func(i, j int) bool {
		return strings.Compare(shifts[i].UserDate, shifts[j].UserDate) < 0
	})
	return shifts, nil
}

// ShiftCount reports how many shift records are stored.
func (c *Client) ShiftCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shifts)
}

func (c *Client) CreateNotification(ctx context.Context, n gateway.Notification) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n.ID = uuid.NewString()
	n.IsRead = false
	n.CreatedAt = c.now()
	c.notifications[n.ID] = n
	return n.ID, nil
}

func (c *Client) QueryUnreadNotifications(ctx context.Context, userID string) ([]gateway.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	var out []gateway.Notification
	for _, n := range c.notifications {
		if n.UserID == userID && !n.IsRead {
			out = append(out, n)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.notifications[id]
	if !ok {
		return gateway.ErrNotFound
	}
	n.IsRead = true
	c.notifications[id] = n
	return nil
}
