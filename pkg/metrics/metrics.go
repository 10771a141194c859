// Package metrics exposes Prometheus instrumentation for the director
// runtime: connection lifecycle, dispatch volume, permission decisions,
// broadcast fan-out, and the memory handler's cache occupancy.
//
// Metrics are opt-in: InitRegistry must be called before any of the
// recording helpers have an effect. Uninitialized helpers are no-ops so
// the director packages can call them unconditionally.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
	enabled  atomic.Bool

	m *directorMetrics
)

type directorMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsEjected  *prometheus.CounterVec // by kick reason
	connectionsActive   prometheus.Gauge

	datagramsDispatched *prometheus.CounterVec // by special message name
	objectUpdates       *prometheus.CounterVec // by class number, field name
	permissionDenials   prometheus.Counter

	broadcastFanout prometheus.Histogram // members reached per broadcast
	zonePopulation  *prometheus.GaugeVec // by zone

	memoryCacheObjects prometheus.Gauge
	memoryCacheFields  prometheus.Gauge

	objectRequestsDeduped prometheus.Counter
}

// InitRegistry creates and installs the Prometheus registry used by all
// recording helpers in this package. Calling it more than once replaces
// the previous registry (used by tests to get a clean collector set).
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	reg := prometheus.NewRegistry()
	registry = reg
	m = newDirectorMetrics(reg)
	enabled.Store(true)
	return reg
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the active Prometheus registry, or nil if metrics
// are not enabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

func newDirectorMetrics(reg *prometheus.Registry) *directorMetrics {
	f := promauto.With(reg)
	return &directorMetrics{
		connectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "libpuns_connections_accepted_total",
			Help: "Total TCP connections accepted by the server director.",
		}),
		connectionsEjected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "libpuns_connections_ejected_total",
			Help: "Total connections ejected, by kick reason.",
		}, []string{"reason"}),
		connectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "libpuns_connections_active",
			Help: "Currently identified connections.",
		}),
		datagramsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "libpuns_datagrams_dispatched_total",
			Help: "Total datagrams dispatched, by special-message name (or 'object_update').",
		}, []string{"special"}),
		objectUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "libpuns_object_updates_total",
			Help: "Total object-addressed field updates, by class number and field name.",
		}, []string{"class", "field"}),
		permissionDenials: f.NewCounter(prometheus.CounterOpts{
			Name: "libpuns_permission_denials_total",
			Help: "Total field updates rejected by the permission gate.",
		}),
		broadcastFanout: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "libpuns_broadcast_fanout_members",
			Help:    "Number of zone members reached per broadcast send.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
		zonePopulation: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "libpuns_zone_population",
			Help: "Current member count, by zone.",
		}, []string{"zone"}),
		memoryCacheObjects: f.NewGauge(prometheus.GaugeOpts{
			Name: "libpuns_memory_cache_objects",
			Help: "Distinct object IDs present in the server memory cache.",
		}),
		memoryCacheFields: f.NewGauge(prometheus.GaugeOpts{
			Name: "libpuns_memory_cache_fields",
			Help: "Total cached (object, field) entries across the memory cache.",
		}),
		objectRequestsDeduped: f.NewCounter(prometheus.CounterOpts{
			Name: "libpuns_object_requests_deduped_total",
			Help: "Client-side ObjectRequest sends suppressed by the in-flight dedup window.",
		}),
	}
}

// ConnectionAccepted records a newly accepted TCP connection.
func ConnectionAccepted() {
	if !IsEnabled() {
		return
	}
	m.connectionsAccepted.Inc()
	m.connectionsActive.Inc()
}

// ConnectionEjected records an ejection by kick reason name and
// decrements the active-connection gauge.
func ConnectionEjected(reason string) {
	if !IsEnabled() {
		return
	}
	m.connectionsEjected.WithLabelValues(reason).Inc()
	m.connectionsActive.Dec()
}

// DatagramDispatched records one dispatched datagram, labeled by its
// special-message name, or "object_update" for class-addressed traffic.
func DatagramDispatched(special string) {
	if !IsEnabled() {
		return
	}
	m.datagramsDispatched.WithLabelValues(special).Inc()
}

// ObjectUpdate records one object field update accepted by the
// permission gate and routed to a node handler.
func ObjectUpdate(classNumber uint16, field string) {
	if !IsEnabled() {
		return
	}
	m.objectUpdates.WithLabelValues(classNumberLabel(classNumber), field).Inc()
}

// PermissionDenied records one field update rejected by the permission gate.
func PermissionDenied() {
	if !IsEnabled() {
		return
	}
	m.permissionDenials.Inc()
}

// BroadcastFanout records the number of members a broadcast was sent to.
func BroadcastFanout(members int) {
	if !IsEnabled() {
		return
	}
	m.broadcastFanout.Observe(float64(members))
}

// SetZonePopulation reports the current member count of a zone.
func SetZonePopulation(zone uint32, count int) {
	if !IsEnabled() {
		return
	}
	m.zonePopulation.WithLabelValues(zoneLabel(zone)).Set(float64(count))
}

// SetMemoryCacheSize reports the memory handler's current occupancy.
func SetMemoryCacheSize(objects, fields int) {
	if !IsEnabled() {
		return
	}
	m.memoryCacheObjects.Set(float64(objects))
	m.memoryCacheFields.Set(float64(fields))
}

// ObjectRequestDeduped records a suppressed duplicate ObjectRequest.
func ObjectRequestDeduped() {
	if !IsEnabled() {
		return
	}
	m.objectRequestsDeduped.Inc()
}
