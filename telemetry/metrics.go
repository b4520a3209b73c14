// Package telemetry provides Prometheus metrics for message sync and cache behavior.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesRendered   prometheus.Counter
	MessagesMerged     prometheus.Counter
	MentionsDetected   prometheus.Counter
	PushFailures       prometheus.Counter
	GatewayReadErrors  *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	ShiftSaves         *prometheus.CounterVec

	// Gauges
	SubscriptionsAttached prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesRendered = promauto.NewCounter(prometheus.CounterOpts{Name: "shiftchat_messages_rendered_total", Help: "Messages appended to the rendered list"})
		MessagesMerged = promauto.NewCounter(prometheus.CounterOpts{Name: "shiftchat_messages_merged_total", Help: "Messages whose id was already rendered and were replaced in place"})
		MentionsDetected = promauto.NewCounter(prometheus.CounterOpts{Name: "shiftchat_mentions_detected_total", Help: "Mentions detected in sent and received messages"})
		PushFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "shiftchat_push_failures_total", Help: "Mention pushes that could not be delivered"})
		GatewayReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{Name: "shiftchat_gateway_read_errors_total", Help: "Gateway reads that failed and degraded to empty data"}, []string{"op"})
		CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{Name: "shiftchat_cache_lookups_total", Help: "Cache lookups by cache and result"}, []string{"cache", "result"})
		ShiftSaves = promauto.NewCounterVec(prometheus.CounterOpts{Name: "shiftchat_shift_saves_total", Help: "Shift saves by result"}, []string{"result"})
		SubscriptionsAttached = promauto.NewGauge(prometheus.GaugeOpts{Name: "shiftchat_subscriptions_attached", Help: "Live message subscriptions currently attached"})
	})
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

func MessageRendered() { inc(MessagesRendered) }

func MessageMerged() { inc(MessagesMerged) }

func MentionDetected() { inc(MentionsDetected) }

func PushFailed() { inc(PushFailures) }

// ReadError records a gateway read that degraded to an empty result.
func ReadError(op string) {
	if GatewayReadErrors != nil {
		GatewayReadErrors.WithLabelValues(op).Inc()
	}
}

// CacheLookup records a hit or miss on the named cache ("user", "shift").
func CacheLookup(cache string, hit bool) {
	if CacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

func ShiftSaved(ok bool) {
	if ShiftSaves == nil {
		return
	}
	if ok {
		ShiftSaves.WithLabelValues("ok").Inc()
	} else {
		ShiftSaves.WithLabelValues("error").Inc()
	}
}

// SetAttached adjusts the attached-subscription gauge by delta.
func SetAttached(delta float64) {
	if SubscriptionsAttached != nil {
		SubscriptionsAttached.Add(delta)
	}
}
