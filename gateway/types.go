package gateway

import (
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeStamp MessageType = "stamp"
)

type ShiftStatus string

const (
	ShiftEarly        ShiftStatus = "early"
	ShiftLate         ShiftStatus = "late"
	ShiftSwap         ShiftStatus = "swap"
	ShiftSpecialLeave ShiftStatus = "special-leave"
	ShiftOffSite      ShiftStatus = "off-site"
)

var ShiftStatuses = []ShiftStatus{ShiftEarly, ShiftLate, ShiftSwap, ShiftSpecialLeave, ShiftOffSite}

func (s ShiftStatus) Valid() bool {
	for _, status := range ShiftStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Message struct {
	ID        string          `json:"id" firestore:"-"`
	SenderID  string          `json:"senderId" firestore:"senderId"`
	Content   string          `json:"content" firestore:"content"`
	Type      MessageType     `json:"type" firestore:"type"`
	CreatedAt time.Time       `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	ReadBy    map[string]bool `json:"readBy" firestore:"readBy"`
	Edited    bool            `json:"edited,omitempty" firestore:"edited,omitempty"`
}

// MessageUpdate carries the mutable fields of a message. Nil fields are left untouched.
type MessageUpdate struct {
	Content *string
	Edited  *bool
}

type User struct {
	UID         string    `json:"uid" firestore:"-"`
	DisplayName string    `json:"displayName" firestore:"displayName"`
	Email       string    `json:"email" firestore:"email"`
	PhotoURL    string    `json:"photoURL" firestore:"photoURL"`
	LastLogin   time.Time `json:"lastLogin" firestore:"lastLogin"`
	PushToken   string    `json:"pushToken,omitempty" firestore:"pushToken,omitempty"`
}

// UserFields is the upsert payload for a user record. Empty strings are not written.
type UserFields struct {
	DisplayName string
	Email       string
	PhotoURL    string
	PushToken   string
}

type Shift struct {
	ID        string      `json:"id" firestore:"-"`
	UserID    string      `json:"userId" firestore:"userId"`
	Date      string      `json:"date" firestore:"date"`
	Status    ShiftStatus `json:"status" firestore:"status"`
	Comment   string      `json:"comment" firestore:"comment"`
	UserDate  string      `json:"userId_date" firestore:"userId_date"`
	CreatedAt time.Time   `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}

const NotificationMention = "mention"

type Notification struct {
	ID        string    `json:"id" firestore:"-"`
	UserID    string    `json:"userId" firestore:"userId"`
	SenderID  string    `json:"senderId" firestore:"senderId"`
	MessageID string    `json:"messageId" firestore:"messageId"`
	Type      string    `json:"type" firestore:"type"`
	IsRead    bool      `json:"isRead" firestore:"isRead"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}
