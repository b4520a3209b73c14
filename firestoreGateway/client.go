package firestoreGateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shiftChat/gateway"
)

const (
	messageCollection      = "messages"
	userCollection         = "users"
	shiftCollection        = "shifts"
	notificationCollection = "notifications"

	// rangeSentinel closes a prefix range on the composite key.
	rangeSentinel = "\uf8ff"
)

type Config struct {
	ProjectID       string
	DatabaseURL     string
	CredentialsFile string
}

type Client struct {
	fs *firestore.Client
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	firebaseApp, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	firestoreClient, err := firebaseApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firestore client: %w", err)
	}

	return &Client{fs: firestoreClient}, nil
}

// NewFromClient wraps an existing Firestore client, e.g. one pointed at the emulator.
func NewFromClient(fs *firestore.Client) *Client {
	return &Client{fs: fs}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

func (c *Client) messages() *firestore.CollectionRef {
	return c.fs.Collection(messageCollection)
}

func (c *Client) users() *firestore.CollectionRef {
	return c.fs.Collection(userCollection)
}

func (c *Client) shifts() *firestore.CollectionRef {
	return c.fs.Collection(shiftCollection)
}

func (c *Client) notifications() *firestore.CollectionRef {
	return c.fs.Collection(notificationCollection)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func wrap(op string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", op, gateway.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func decodeMessage(doc *firestore.DocumentSnapshot) (gateway.Message, error) {
	var m gateway.Message
	if err := doc.DataTo(&m); err != nil {
		return gateway.Message{}, fmt.Errorf("decoding message %s: %w", doc.Ref.ID, err)
	}
	m.ID = doc.Ref.ID
	if m.ReadBy == nil {
		m.ReadBy = map[string]bool{}
	}
	return m, nil
}

// ---- messages ----

func (c *Client) PushMessage(ctx context.Context, senderID, content string, messageType gateway.MessageType) (string, error) {
	ref := c.messages().NewDoc()
	_, err := ref.Create(ctx, gateway.Message{
		SenderID: senderID,
		Content:  content,
		Type:     messageType,
		ReadBy:   map[string]bool{},
	})
	if err != nil {
		return "", wrap("firestoreGateway.PushMessage", err)
	}
	return ref.ID, nil
}

func (c *Client) QueryRecentMessages(ctx context.Context, limit int) ([]gateway.Message, error) {
	docs, err := c.messages().OrderBy("createdAt", firestore.Desc).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap("firestoreGateway.QueryRecentMessages", err)
	}

	messages := make([]gateway.Message, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		m, err := decodeMessage(docs[i])
		if err != nil {
			log.Error(err)
			continue
		}
		messages = append(messages, m)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

type subscription struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Close cancels the snapshot listener. It does not wait for the listener
// goroutine so that it is safe to call from inside the callback.
func (s *subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

func (c *Client) SubscribeNewMessages(ctx context.Context, since time.Time, fn func(gateway.Message)) (gateway.Subscription, error) {
	listenCtx, cancel := context.WithCancel(ctx)
	it := c.messages().
		Where("createdAt", ">=", since).
		OrderBy("createdAt", firestore.Asc).
		Snapshots(listenCtx)

	s := &subscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if listenCtx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				log.WithError(err).Error("message subscription stopped")
				return
			}

			for _, change := range snap.Changes {
				if change.Kind == firestore.DocumentRemoved {
					continue
				}
				m, err := decodeMessage(change.Doc)
				if err != nil {
					log.Error(err)
					continue
				}
				if listenCtx.Err() != nil {
					return
				}
				fn(m)
			}
		}
	}()

	return s, nil
}

func (c *Client) SetReadFlag(ctx context.Context, messageID, userID string) error {
	_, err := c.messages().Doc(messageID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"readBy", userID}, Value: true},
	})
	if err != nil {
		return wrap("firestoreGateway.SetReadFlag", err)
	}
	return nil
}

func (c *Client) UpdateMessage(ctx context.Context, messageID string, update gateway.MessageUpdate) error {
	var updates []firestore.Update
	if update.Content != nil {
		updates = append(updates, firestore.Update{Path: "content", Value: *update.Content})
	}
	if update.Edited != nil {
		updates = append(updates, firestore.Update{Path: "edited", Value: *update.Edited})
	}
	if len(updates) == 0 {
		return nil
	}

	if _, err := c.messages().Doc(messageID).Update(ctx, updates); err != nil {
		return wrap("firestoreGateway.UpdateMessage", err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	if _, err := c.messages().Doc(messageID).Delete(ctx); err != nil {
		return wrap("firestoreGateway.DeleteMessage", err)
	}
	return nil
}

// ---- users ----

func userData(fields gateway.UserFields) map[string]interface{} {
	data := map[string]interface{}{
		"lastLogin": firestore.ServerTimestamp,
	}
	if fields.DisplayName != "" {
		data["displayName"] = fields.DisplayName
	}
	if fields.Email != "" {
		data["email"] = fields.Email
	}
	if fields.PhotoURL != "" {
		data["photoURL"] = fields.PhotoURL
	}
	if fields.PushToken != "" {
		data["pushToken"] = fields.PushToken
	}
	return data
}

func (c *Client) UpsertUser(ctx context.Context, uid string, fields gateway.UserFields) error {
	if _, err := c.users().Doc(uid).Set(ctx, userData(fields), firestore.MergeAll); err != nil {
		return wrap("firestoreGateway.UpsertUser", err)
	}
	return nil
}

func (c *Client) GetUser(ctx context.Context, uid string) (*gateway.User, error) {
	docSnap, err := c.users().Doc(uid).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("firestoreGateway.GetUser", err)
	}

	var user gateway.User
	if err := docSnap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("firestoreGateway.GetUser: unable to unmarshal user data: %w", err)
	}
	user.UID = docSnap.Ref.ID
	return &user, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]gateway.User, error) {
	it := c.users().Documents(ctx)
	defer it.Stop()

	var users []gateway.User
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrap("firestoreGateway.ListUsers", err)
		}

		var user gateway.User
		if err := doc.DataTo(&user); err != nil {
			log.Errorf("unable to unmarshal user data for %s", doc.Ref.ID)
			continue
		}
		user.UID = doc.Ref.ID
		users = append(users, user)
	}
	return users, nil
}

// ---- shifts ----

func (c *Client) UpsertShift(ctx context.Context, userID, date string, status gateway.ShiftStatus, comment string) (string, error) {
	key := gateway.CompositeKey(userID, date)

	var shiftID string
	err := c.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(c.shifts().Where("userId_date", "==", key).Limit(1)).GetAll()
		if err != nil {
			return err
		}

		ref := c.shifts().NewDoc()
		if len(docs) > 0 {
			ref = docs[0].Ref
		}
		shiftID = ref.ID

		return tx.Set(ref, gateway.Shift{
			UserID:   userID,
			Date:     date,
			Status:   status,
			Comment:  comment,
			UserDate: key,
		})
	})
	if err != nil {
		return "", wrap("firestoreGateway.UpsertShift", err)
	}
	return shiftID, nil
}

// shiftRange returns the indexed field and inclusive bounds for a shift range query.
func shiftRange(userID, start, end string) (field, lo, hi string) {
	if userID == "" {
		return "date", start, end
	}
	return "userId_date", gateway.CompositeKey(userID, start), gateway.CompositeKey(userID, end) + rangeSentinel
}

func (c *Client) QueryShiftsInRange(ctx context.Context, userID, start, end string) ([]gateway.Shift, error) {
	field, lo, hi := shiftRange(userID, start, end)
	it := c.shifts().Where(field, ">=", lo).Where(field, "<=", hi).OrderBy(field, firestore.Asc).Documents(ctx)
	defer it.Stop()

	var shifts []gateway.Shift
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrap("firestoreGateway.QueryShiftsInRange", err)
		}

		var shift gateway.Shift
		if err := doc.DataTo(&shift); err != nil {
			log.Errorf("unable to unmarshal shift data for %s", doc.Ref.ID)
			continue
		}
		shift.ID = doc.Ref.ID
		shifts = append(shifts, shift)
	}
	return shifts, nil
}

// ---- notifications ----

func (c *Client) CreateNotification(ctx context.Context, n gateway.Notification) (string, error) {
	ref := c.notifications().NewDoc()
	n.IsRead = false
	n.CreatedAt = time.Time{}
	if _, err := ref.Create(ctx, n); err != nil {
		return "", wrap("firestoreGateway.CreateNotification", err)
	}
	return ref.ID, nil
}

func (c *Client) QueryUnreadNotifications(ctx context.Context, userID string) ([]gateway.Notification, error) {
	it := c.notifications().Where("userId", "==", userID).Documents(ctx)
	defer it.Stop()

	var notifications []gateway.Notification
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrap("firestoreGateway.QueryUnreadNotifications", err)
		}

		var n gateway.Notification
		if err := doc.DataTo(&n); err != nil {
			log.Errorf("unable to unmarshal notification data for %s", doc.Ref.ID)
			continue
		}
		// filtered client side: the store only indexes userId
		if n.IsRead {
			continue
		}
		n.ID = doc.Ref.ID
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := c.notifications().Doc(id).Update(ctx, []firestore.Update{{Path: "isRead", Value: true}})
	if err != nil {
		return wrap("firestoreGateway.MarkNotificationRead", err)
	}
	return nil
}

var _ gateway.Gateway = (*Client)(nil)
