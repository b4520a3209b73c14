// Package chatNotification fans a chat message out to the users it mentions: one
// notification record per recipient and an Expo push to every recipient that has
// registered a device.
package chatNotification

import (
	"context"
	"net/http"
	"strings"
	"sync"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	log "github.com/sirupsen/logrus"

	"github.com/shiftChat/gateway"
	"github.com/shiftChat/mention"
	"github.com/shiftChat/telemetry"
)

const category = "mention"

// Publisher sends a single push message. *expo.PushClient satisfies it.
type Publisher interface {
	Publish(message *expo.PushMessage) (expo.PushResponse, error)
}

// Store records notifications for later display.
type Store interface {
	CreateNotification(ctx context.Context, n gateway.Notification) (string, error)
}

type Dispatcher struct {
	store     Store
	publisher Publisher
}

// NewDispatcher returns a Dispatcher. A nil publisher only records notifications.
func NewDispatcher(store Store, publisher Publisher) *Dispatcher {
	return &Dispatcher{store: store, publisher: publisher}
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

// NewPushClient builds the Expo client, authenticating when accessToken is set.
func NewPushClient(accessToken string) *expo.PushClient {
	if accessToken == "" {
		return expo.NewPushClient(nil)
	}
	return expo.NewPushClient(&expo.ClientConfig{
		HTTPClient: &http.Client{
			Transport: &bearerTransport{token: accessToken, base: http.DefaultTransport},
		},
	})
}

// Recipients returns the users mentioned by an @token in content, matched to
// display names ignoring case. The sender is never a recipient.
func Recipients(senderID, content string, users []gateway.User) []gateway.User {
	tokens := mention.Tokens(content)
	if len(tokens) == 0 {
		return nil
	}

	var out []gateway.User
	for _, user := range users {
		// Because we should not send notification to the same user
		if user.UID == senderID || user.DisplayName == "" {
			continue
		}
		for _, token := range tokens {
			if strings.EqualFold(token, user.DisplayName) {
				out = append(out, user)
				break
			}
		}
	}
	return out
}

// NotifyMentions records and pushes a mention notification for every user mentioned
// in content. Failures are logged; the number of recorded notifications is returned.
func (d *Dispatcher) NotifyMentions(ctx context.Context, messageID string, sender gateway.User, content string, users []gateway.User) int {
	recipients := Recipients(sender.UID, content, users)
	if len(recipients) == 0 {
		return 0
	}

	recorded := 0
	var tokens []expo.ExponentPushToken
	for _, user := range recipients {
		telemetry.MentionDetected()

		_, err := d.store.CreateNotification(ctx, gateway.Notification{
			UserID:    user.UID,
			SenderID:  sender.UID,
			MessageID: messageID,
			Type:      gateway.NotificationMention,
		})
		if err != nil {
			log.Errorf("unable to create notification for %s: %s", user.UID, err)
		} else {
			recorded++
		}

		if user.PushToken == "" {
			continue
		}
		token, err := expo.NewExponentPushToken(user.PushToken)
		if err != nil {
			log.Errorf("invalid expo token. user id: %s", user.UID)
			continue
		}
		tokens = append(tokens, token)
	}

	if d.publisher != nil && len(tokens) > 0 {
		d.push(messageID, sender, content, tokens)
	}
	return recorded
}

func (d *Dispatcher) push(messageID string, sender gateway.User, content string, tokens []expo.ExponentPushToken) {
	title := sender.DisplayName + " mentioned you"

	var wg sync.WaitGroup
	for _, token := range tokens {
		wg.Add(1)
		go func(token expo.ExponentPushToken) {
			defer wg.Done()

			response, err := d.publisher.Publish(&expo.PushMessage{
				To:       []expo.ExponentPushToken{token},
				Body:     content,
				Sound:    "default",
				Title:    title,
				Priority: expo.HighPriority,
				Data: map[string]string{
					"category":  category,
					"messageId": messageID,
				},
			})
			if err != nil {
				log.Error(err)
				telemetry.PushFailed()
				return
			}

			if response.ValidateResponse() != nil {
				log.Error(response.PushMessage.To, "failed")
				telemetry.PushFailed()
			}
		}(token)
	}
	wg.Wait()
}
