package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHelpers_NoopBeforeInit(t *testing.T) {
	if MessagesRendered != nil {
		t.Skip("metrics already initialized by another test")
	}
	// must not panic
	MessageRendered()
	CacheLookup("user", true)
	ReadError("ListUsers")
	SetAttached(1)
}

func TestInit_Idempotent(t *testing.T) {
	Init()
	first := MessagesRendered
	Init()
	if MessagesRendered != first {
		t.Error("expected Init to register metrics only once")
	}
}

func TestCounters(t *testing.T) {
	Init()

	before := testutil.ToFloat64(MessagesRendered)
	MessageRendered()
	if got := testutil.ToFloat64(MessagesRendered); got != before+1 {
		t.Errorf("MessagesRendered = %v, want %v", got, before+1)
	}

	hits := testutil.ToFloat64(CacheLookups.WithLabelValues("shift", "hit"))
	CacheLookup("shift", true)
	if got := testutil.ToFloat64(CacheLookups.WithLabelValues("shift", "hit")); got != hits+1 {
		t.Errorf("shift hits = %v, want %v", got, hits+1)
	}

	attached := testutil.ToFloat64(SubscriptionsAttached)
	SetAttached(1)
	SetAttached(-1)
	if got := testutil.ToFloat64(SubscriptionsAttached); got != attached {
		t.Errorf("SubscriptionsAttached = %v, want %v", got, attached)
	}
}
