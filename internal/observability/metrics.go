package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/phonebook/internal/strbuf"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phonebook",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"device", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phonebook",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"device", "method", "path", "status"},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phonebook",
			Subsystem: "directory",
			Name:      "commands_total",
			Help:      "Applied commands by operation and resulting status.",
		},
		[]string{"op", "status"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phonebook",
			Subsystem: "directory",
			Name:      "command_duration_seconds",
			Help:      "Command parse and dispatch duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
		},
		[]string{"op"},
	)
	surnames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "phonebook",
			Subsystem: "directory",
			Name:      "surnames",
			Help:      "Surname groups currently stored.",
		},
	)
	contacts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "phonebook",
			Subsystem: "directory",
			Name:      "contacts",
			Help:      "Contact records currently stored.",
		},
	)
	liveBuffers = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "phonebook",
			Subsystem: "strbuf",
			Name:      "outstanding",
			Help:      "String buffers allocated and not yet released.",
		},
		func() float64 { return float64(strbuf.Outstanding()) },
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phonebook",
			Subsystem: "tcp",
			Name:      "frames_total",
			Help:      "Frames exchanged on the TCP transport.",
		},
		[]string{"direction", "type"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, commands, commandDuration,
			surnames, contacts, liveBuffers, frames)
	})
}

func RecordHTTPRequest(device, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(device, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(device, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordCommand(op, status string, duration time.Duration) {
	RegisterMetrics()
	commands.WithLabelValues(op, status).Inc()
	commandDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordDirectorySize(groups, records int) {
	RegisterMetrics()
	surnames.Set(float64(groups))
	contacts.Set(float64(records))
}

func RecordFrame(direction, messageType string) {
	RegisterMetrics()
	frames.WithLabelValues(direction, messageType).Inc()
}
