// Package gateway describes the hosted realtime data store the client synchronizes
// against: an append-only message log plus keyed user, shift and notification records.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrNotFound           = errors.New("gateway: not found")
	ErrSubscriptionClosed = errors.New("gateway: subscription closed")
)

// Subscription is the handle for a live query. Close stops future callbacks and
// may be called more than once.
type Subscription interface {
	Close() error
}

type MessageStore interface {
	PushMessage(ctx context.Context, senderID, content string, messageType MessageType) (string, error)
	QueryRecentMessages(ctx context.Context, limit int) ([]Message, error)
	// SubscribeNewMessages delivers messages created at or after since, and later
	// modifications of those messages, in creation order for new items.
	SubscribeNewMessages(ctx context.Context, since time.Time, fn func(Message)) (Subscription, error)
	SetReadFlag(ctx context.Context, messageID, userID string) error
	UpdateMessage(ctx context.Context, messageID string, update MessageUpdate) error
	DeleteMessage(ctx context.Context, messageID string) error
}

type UserStore interface {
	UpsertUser(ctx context.Context, uid string, fields UserFields) error
	// GetUser returns nil and no error when the user does not exist.
	GetUser(ctx context.Context, uid string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

type ShiftStore interface {
	UpsertShift(ctx context.Context, userID, date string, status ShiftStatus, comment string) (string, error)
	// QueryShiftsInRange returns shifts with start <= date <= end. An empty userID
	// queries every user.
	QueryShiftsInRange(ctx context.Context, userID, start, end string) ([]Shift, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n Notification) (string, error)
	QueryUnreadNotifications(ctx context.Context, userID string) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

type Gateway interface {
	MessageStore
	UserStore
	ShiftStore
	NotificationStore
	Close() error
}

// CompositeKey emulates a (userID, date) uniqueness constraint on a store that
// only indexes single fields.
func CompositeKey(userID, date string) string {
	return userID + "_" + date
}

// MonthRange returns the first and last calendar day of the month as date strings.
func MonthRange(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(DateLayout), last.Format(DateLayout)
}

func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}
	return nil
}
