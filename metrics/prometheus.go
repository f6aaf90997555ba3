package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pixport"

type metricDesc struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(Snapshot) int64
}

// PrometheusBridge exposes a Collector's snapshot as Prometheus metrics.
// Values are read at scrape time, so the Collector stays the single source
// of truth.
type PrometheusBridge struct {
	collector *Collector
	metrics   []metricDesc
}

// NewPrometheusBridge creates a bridge for c.
func NewPrometheusBridge(c *Collector) *PrometheusBridge {
	labels := []string{"session_id", "mode", "encoder", "storage_backend"}
	counter := func(name, help string, fn func(Snapshot) int64) metricDesc {
		return metricDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil),
			kind:  prometheus.CounterValue,
			value: fn,
		}
	}
	gauge := func(name, help string, fn func(Snapshot) int64) metricDesc {
		m := counter(name, help, fn)
		m.kind = prometheus.GaugeValue
		return m
	}

	return &PrometheusBridge{
		collector: c,
		metrics: []metricDesc{
			counter("frames_in_total", "Frames received from the host.", func(s Snapshot) int64 { return s.FramesIn }),
			counter("frames_out_total", "Frames written to the host.", func(s Snapshot) int64 { return s.FramesOut }),
			counter("bytes_in_total", "Bytes received from the host.", func(s Snapshot) int64 { return s.BytesIn }),
			counter("bytes_out_total", "Bytes written to the host.", func(s Snapshot) int64 { return s.BytesOut }),
			counter("transport_errors_total", "Connection-terminating failures.", func(s Snapshot) int64 { return s.TransportErrors }),
			counter("protocol_errors_total", "Undecodable or unknown messages.", func(s Snapshot) int64 { return s.ProtocolErrors }),
			counter("host_events_total", "Host-originated events.", func(s Snapshot) int64 { return s.HostEvents }),
			counter("requests_sent_total", "Correlated requests sent.", func(s Snapshot) int64 { return s.RequestsSent }),
			counter("requests_resolved_total", "Correlated requests resolved.", func(s Snapshot) int64 { return s.RequestsResolved }),
			counter("requests_rejected_total", "Correlated requests rejected.", func(s Snapshot) int64 { return s.RequestsRejected }),
			counter("requests_timed_out_total", "Multi-part requests rejected by the watchdog.", func(s Snapshot) int64 { return s.RequestsTimedOut }),
			gauge("requests_pending", "Requests awaiting a response.", func(s Snapshot) int64 { return s.RequestsPending }),
			counter("pixmaps_fetched_total", "Pixmaps acquired from the host.", func(s Snapshot) int64 { return s.PixmapsFetched }),
			counter("pixmap_bytes_total", "Pixel bytes acquired from the host.", func(s Snapshot) int64 { return s.PixmapBytes }),
			counter("pixmaps_repaired_total", "Pixmaps padded to document size.", func(s Snapshot) int64 { return s.PixmapsRepaired }),
			counter("outputs_encoded_total", "Outputs encoded successfully.", func(s Snapshot) int64 { return s.OutputsEncoded }),
			counter("outputs_failed_total", "Outputs that failed.", func(s Snapshot) int64 { return s.OutputsFailed }),
			counter("sink_writes_total", "Successful output store writes.", func(s Snapshot) int64 { return s.SinkWriteSuccess }),
			counter("sink_write_failures_total", "Failed output store writes.", func(s Snapshot) int64 { return s.SinkWriteFailure }),
		},
	}
}

// Describe implements prometheus.Collector.
func (b *PrometheusBridge) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range b.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (b *PrometheusBridge) Collect(ch chan<- prometheus.Metric) {
	s := b.collector.Snapshot()
	for _, m := range b.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, float64(m.value(s)),
			s.SessionID, s.Mode, s.Encoder, s.StorageBackend)
	}
}

// Handler returns an HTTP handler serving c in the Prometheus exposition
// format from a dedicated registry.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewPrometheusBridge(c)); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
