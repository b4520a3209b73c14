package memoryGateway

import (
	"context"
	"testing"
	"time"

	"github.com/shiftChat/gateway"
)

func steppingClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestClient_QueryRecentMessages_OrderAndLimit(t *testing.T) {
	ctx := context.Background()
	c := New(WithClock(steppingClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))))

	for _, content := range []string{"one", "two", "three", "four"} {
		if _, err := c.PushMessage(ctx, "u1", content, gateway.MessageTypeText); err != nil {
			t.Fatalf("PushMessage: %v", err)
		}
	}

	got, err := c.QueryRecentMessages(ctx, 3)
	if err != nil {
		t.Fatalf("QueryRecentMessages: %v", err)
	}
	want := []string{"two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.Content != want[i] {
			t.Errorf("message %d = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestClient_UpsertShift_SingleRecordPerUserDate(t *testing.T) {
	ctx := context.Background()
	c := New()

	first, err := c.UpsertShift(ctx, "u1", "2024-03-05", gateway.ShiftEarly, "")
	if err != nil {
		t.Fatalf("UpsertShift: %v", err)
	}
	second, err := c.UpsertShift(ctx, "u1", "2024-03-05", gateway.ShiftLate, "swapped")
	if err != nil {
		t.Fatalf("UpsertShift: %v", err)
	}

	if first != second {
		t.Errorf("expected id to be preserved, got %s then %s", first, second)
	}
	if c.ShiftCount() != 1 {
		t.Fatalf("expected 1 stored shift, got %d", c.ShiftCount())
	}

	shifts, err := c.QueryShiftsInRange(ctx, "u1", "2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("QueryShiftsInRange: %v", err)
	}
	if len(shifts) != 1 || shifts[0].Status != gateway.ShiftLate || shifts[0].Comment != "swapped" {
		t.Errorf("unexpected shifts: %+v", shifts)
	}
}

func TestClient_QueryShiftsInRange_AllUsers(t *testing.T) {
	ctx := context.Background()
	c := New()

	c.UpsertShift(ctx, "u1", "2024-03-05", gateway.ShiftEarly, "")
	c.UpsertShift(ctx, "u2", "2024-03-06", gateway.ShiftLate, "")
	c.UpsertShift(ctx, "u2", "2024-04-01", gateway.ShiftLate, "")

	shifts, err := c.QueryShiftsInRange(ctx, "", "2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("QueryShiftsInRange: %v", err)
	}
	if len(shifts) != 2 {
		t.Errorf("expected 2 shifts in March, got %d", len(shifts))
	}
}

func TestClient_Subscription_DeliversNewAndStopsAfterClose(t *testing.T) {
	ctx := context.Background()
	c := New(WithClock(steppingClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))))

	c.PushMessage(ctx, "u1", "before", gateway.MessageTypeText)

	var got []string
	sub, err := c.SubscribeNewMessages(ctx, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), func(m gateway.Message) {
		got = append(got, m.Content)
	})
	if err != nil {
		t.Fatalf("SubscribeNewMessages: %v", err)
	}

	c.PushMessage(ctx, "u1", "ignored-old", gateway.MessageTypeText)
	if len(got) != 0 {
		t.Fatalf("expected messages before watermark to be skipped, got %v", got)
	}

	c2 := New(WithClock(func() time.Time { return time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC) }))
	var live []string
	sub2, _ := c2.SubscribeNewMessages(ctx, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), func(m gateway.Message) {
		live = append(live, m.Content)
	})
	c2.PushMessage(ctx, "u1", "hello", gateway.MessageTypeText)
	if len(live) != 1 || live[0] != "hello" {
		t.Fatalf("expected live delivery, got %v", live)
	}

	if err := sub2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub2.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	c2.PushMessage(ctx, "u1", "after", gateway.MessageTypeText)
	if len(live) != 1 {
		t.Errorf("expected no delivery after close, got %v", live)
	}
	sub.Close()
}

func TestClient_Notifications(t *testing.T) {
	ctx := context.Background()
	c := New()

	id, err := c.CreateNotification(ctx, gateway.Notification{UserID: "u2", SenderID: "u1", MessageID: "m1", Type: gateway.NotificationMention})
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	unread, _ := c.QueryUnreadNotifications(ctx, "u2")
	if len(unread) != 1 {
		t.Fatalf("expected 1 unread, got %d", len(unread))
	}

	if err := c.MarkNotificationRead(ctx, id); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	unread, _ = c.QueryUnreadNotifications(ctx, "u2")
	if len(unread) != 0 {
		t.Errorf("expected 0 unread, got %d", len(unread))
	}

	if err := c.MarkNotificationRead(ctx, "missing"); err != gateway.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_GetUser_Missing(t *testing.T) {
	c := New()
	u, err := c.GetUser(context.Background(), "nobody")
	if err != nil || u != nil {
		t.Errorf("expected nil user and nil error, got %+v, %v", u, err)
	}
}
