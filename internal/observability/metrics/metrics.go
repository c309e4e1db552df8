// Package metrics holds the Prometheus collectors for the periodic tasks.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without an ops server.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventbot"

type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	tickDuration    *prometheus.HistogramVec
	ticksTotal      *prometheus.CounterVec
	eventsReaped    prometheus.Counter
	cleanupTotal    *prometheus.CounterVec
	deliveryTotal   *prometheus.CounterVec
	remindersSent   *prometheus.CounterVec
	claimsLost      *prometheus.CounterVec
	digestSendTotal *prometheus.CounterVec
	telegramSends   *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	tickDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of one periodic task tick",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task"})

	ticksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Periodic task ticks by outcome",
	}, []string{"task", "result"})

	eventsReaped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_reaped_total",
		Help:      "Expired event rows deleted",
	})

	cleanupTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resource_cleanup_total",
		Help:      "Side-effect channel cleanup attempts by outcome",
	}, []string{"result"})

	deliveryTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminder_delivery_total",
		Help:      "Reminder delivery attempts by kind, route and outcome",
	}, []string{"kind", "route", "result"})

	remindersSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_sent_total",
		Help:      "Reminders marked sent",
	}, []string{"kind"})

	claimsLost := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminder_claims_lost_total",
		Help:      "Reminders skipped because another dispatcher claimed them first",
	}, []string{"kind"})

	digestSendTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "digest_send_total",
		Help:      "Daily digest posts by outcome",
	}, []string{"result"})

	telegramSends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "telegram_requests_total",
		Help:      "Telegram Bot API calls by method and outcome",
	}, []string{"method", "result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "goroutines",
		Help:      "Number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(tickDuration, ticksTotal, eventsReaped, cleanupTotal, deliveryTotal,
		remindersSent, claimsLost, digestSendTotal, telegramSends, goroutines)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		tickDuration:    tickDuration,
		ticksTotal:      ticksTotal,
		eventsReaped:    eventsReaped,
		cleanupTotal:    cleanupTotal,
		deliveryTotal:   deliveryTotal,
		remindersSent:   remindersSent,
		claimsLost:      claimsLost,
		digestSendTotal: digestSendTotal,
		telegramSends:   telegramSends,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (m *Metrics) ObserveTick(task string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.tickDuration.WithLabelValues(task).Observe(d.Seconds())
	m.ticksTotal.WithLabelValues(task, result(err == nil)).Inc()
}

func (m *Metrics) EventsReaped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsReaped.Add(float64(n))
}

func (m *Metrics) ResourceCleanup(ok bool) {
	if m == nil {
		return
	}
	m.cleanupTotal.WithLabelValues(result(ok)).Inc()
}

// Delivery records one attempt. route is "direct" or "channel".
func (m *Metrics) Delivery(kind, route string, ok bool) {
	if m == nil {
		return
	}
	m.deliveryTotal.WithLabelValues(kind, route, result(ok)).Inc()
}

func (m *Metrics) ReminderSent(kind string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) ClaimLost(kind string) {
	if m == nil {
		return
	}
	m.claimsLost.WithLabelValues(kind).Inc()
}

func (m *Metrics) DigestSend(ok bool) {
	if m == nil {
		return
	}
	m.digestSendTotal.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) TelegramCall(method string, ok bool) {
	if m == nil {
		return
	}
	m.telegramSends.WithLabelValues(method, result(ok)).Inc()
}
