package firestoreGateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shiftChat/gateway"
)

func TestShiftRange(t *testing.T) {
	tests := []struct {
		name               string
		userID             string
		wantField, lo, hi string
	}{
		{"single user uses composite key", "u1", "userId_date", "u1_2024-02-01", "u1_2024-02-29\uf8ff"},
		{"all users uses date", "", "date", "2024-02-01", "2024-02-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, lo, hi := shiftRange(tt.userID, "2024-02-01", "2024-02-29")
			if field != tt.wantField || lo != tt.lo || hi != tt.hi {
				t.Errorf("shiftRange = (%s, %s, %s), want (%s, %s, %s)", field, lo, hi, tt.wantField, tt.lo, tt.hi)
			}
		})
	}
}

func TestWrap_NotFound(t *testing.T) {
	err := wrap("op", status.Error(codes.NotFound, "no document"))
	if !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	err = wrap("op", fmt.Errorf("boom"))
	if errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("did not expect ErrNotFound for %v", err)
	}
}

func TestUserData_SkipsEmptyFields(t *testing.T) {
	data := userData(gateway.UserFields{DisplayName: "Alice"})
	if data["displayName"] != "Alice" {
		t.Errorf("displayName = %v", data["displayName"])
	}
	if _, ok := data["email"]; ok {
		t.Error("expected empty email to be skipped")
	}
	if data["lastLogin"] != firestore.ServerTimestamp {
		t.Error("expected lastLogin to be a server timestamp")
	}
}

// Runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST is set.
func TestClient_Emulator_ShiftUpsertAndSubscription(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	fs, err := firestore.NewClient(ctx, fmt.Sprintf("shiftchat-test-%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("firestore.NewClient: %v", err)
	}
	c := NewFromClient(fs)
	defer c.Close()

	first, err := c.UpsertShift(ctx, "u1", "2024-03-05", gateway.ShiftEarly, "")
	if err != nil {
		t.Fatalf("UpsertShift: %v", err)
	}
	second, err := c.UpsertShift(ctx, "u1", "2024-03-05", gateway.ShiftLate, "")
	if err != nil {
		t.Fatalf("UpsertShift: %v", err)
	}
	if first != second {
		t.Errorf("expected shift id to be preserved: %s vs %s", first, second)
	}

	shifts, err := c.QueryShiftsInRange(ctx, "u1", "2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("QueryShiftsInRange: %v", err)
	}
	if len(shifts) != 1 || shifts[0].Status != gateway.ShiftLate {
		t.Errorf("unexpected shifts: %+v", shifts)
	}

	received := make(chan gateway.Message, 4)
	sub, err := c.SubscribeNewMessages(ctx, time.Now().Add(-time.Minute), func(m gateway.Message) {
		received <- m
	})
	if err != nil {
		t.Fatalf("SubscribeNewMessages: %v", err)
	}
	defer sub.Close()

	id, err := c.PushMessage(ctx, "u1", "hello", gateway.MessageTypeText)
	if err != nil {
		t.Fatalf("PushMessage: %v", err)
	}

	select {
	case m := <-received:
		if m.ID != id || m.Content != "hello" {
			t.Errorf("unexpected message: %+v", m)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for subscription delivery")
	}
}
