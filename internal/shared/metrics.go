package shared

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics instruments the persistence layer. All methods are
// nil-receiver safe so wiring metrics stays optional in tests.
type StorageMetrics struct {
	saveTotal       *prometheus.CounterVec
	loadTotal       *prometheus.CounterVec
	quotaEvents     prometheus.Counter
	evictedKeys     prometheus.Counter
	fallbackActive  prometheus.Gauge
	droppedRecords  *prometheus.CounterVec
	repairedRecords *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

func NewStorageMetrics(registry prometheus.Registerer) *StorageMetrics {
	metrics := &StorageMetrics{
		saveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_save_total",
				Help: "Total number of gateway save operations by result",
			},
			[]string{"result"},
		),
		loadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_load_total",
				Help: "Total number of gateway load operations by result",
			},
			[]string{"result"},
		),
		quotaEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storage_quota_events_total",
				Help: "Total number of quota-exceeded errors from the durable store",
			},
		),
		evictedKeys: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storage_evicted_keys_total",
				Help: "Total number of keys evicted by quota cleanup",
			},
		),
		fallbackActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storage_fallback_active",
				Help: "1 while the gateway serves from the in-memory fallback store",
			},
		),
		droppedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_dropped_records_total",
				Help: "Total number of corrupted records dropped during load",
			},
			[]string{"entity"},
		),
		repairedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_repaired_records_total",
				Help: "Total number of records removed by integrity repair",
			},
			[]string{"entity"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"path"},
		),
	}

	registry.MustRegister(
		metrics.saveTotal,
		metrics.loadTotal,
		metrics.quotaEvents,
		metrics.evictedKeys,
		metrics.fallbackActive,
		metrics.droppedRecords,
		metrics.repairedRecords,
		metrics.requestDuration,
		metrics.requestTotal,
		metrics.rateLimited,
	)

	return metrics
}

func (m *StorageMetrics) RecordSave(result string) {
	if m == nil {
		return
	}
	m.saveTotal.WithLabelValues(result).Inc()
}

func (m *StorageMetrics) RecordLoad(result string) {
	if m == nil {
		return
	}
	m.loadTotal.WithLabelValues(result).Inc()
}

func (m *StorageMetrics) RecordQuotaEvent() {
	if m == nil {
		return
	}
	m.quotaEvents.Inc()
}

func (m *StorageMetrics) RecordEvictions(count int) {
	if m == nil {
		return
	}
	m.evictedKeys.Add(float64(count))
}

func (m *StorageMetrics) SetFallbackActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.fallbackActive.Set(1)
	} else {
		m.fallbackActive.Set(0)
	}
}

func (m *StorageMetrics) RecordDroppedRecord(entity string) {
	if m == nil {
		return
	}
	m.droppedRecords.WithLabelValues(entity).Inc()
}

func (m *StorageMetrics) RecordRepairedRecords(entity string, count int) {
	if m == nil {
		return
	}
	m.repairedRecords.WithLabelValues(entity).Add(float64(count))
}

func (m *StorageMetrics) RecordRateLimited(path string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(path).Inc()
}

func (m *StorageMetrics) RecordRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, status).Inc()
}
