// Package metrics exposes fabric counters to Prometheus. Collectors read
// the components' own stats on scrape, so nothing is double counted.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skorotkiewicz/gnunet-social/internal/eventbus"
	"github.com/skorotkiewicz/gnunet-social/internal/gateway"
	"github.com/skorotkiewicz/gnunet-social/internal/media"
	"github.com/skorotkiewicz/gnunet-social/internal/multiplexer"
	"github.com/skorotkiewicz/gnunet-social/internal/relay"
	"github.com/skorotkiewicz/gnunet-social/internal/repositories"
)

const namespace = "social"

// Sources are the components whose stats are exported. Nil entries are
// skipped.
type Sources struct {
	Multiplexer func() multiplexer.Stats
	Bus         func() eventbus.Stats
	Gateway     func() gateway.Stats
	Ingestor    func() media.IngestorStats
	Archiver    func() repositories.ArchiverStats
	Relay       func() relay.Stats
}

// Registry owns a Prometheus registry populated from Sources.
type Registry struct {
	reg *prometheus.Registry
}

// New registers collectors for every non-nil source.
func New(src Sources) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())

	if src.Multiplexer != nil {
		stats := src.Multiplexer
		reg.MustRegister(
			counter("multiplexer", "sent_total", "Messages delivered to a port mailbox.", func() float64 { return float64(stats().Sent) }),
			counter("multiplexer", "dropped_total", "Messages dropped because a mailbox was full.", func() float64 { return float64(stats().Dropped) }),
			counter("multiplexer", "unroutable_total", "Messages addressed to a missing channel or port.", func() float64 { return float64(stats().Unroutable) }),
			gauge("multiplexer", "channels", "Open channels.", func() float64 { return float64(stats().Channels) }),
			gauge("multiplexer", "ports", "Open ports.", func() float64 { return float64(stats().Ports) }),
		)
	}
	if src.Bus != nil {
		stats := src.Bus
		reg.MustRegister(
			counter("eventbus", "published_total", "Events published.", func() float64 { return float64(stats().Published) }),
			counter("eventbus", "dropped_total", "Events discarded from lagging subscriber backlogs.", func() float64 { return float64(stats().Dropped) }),
			gauge("eventbus", "subscribers", "Live subscriptions.", func() float64 { return float64(stats().Subscribers) }),
		)
	}
	if src.Gateway != nil {
		stats := src.Gateway
		reg.MustRegister(
			gauge("gateway", "connections", "Open websocket connections.", func() float64 { return float64(stats().Connections) }),
			counter("gateway", "accepted_total", "Accepted websocket connections.", func() float64 { return float64(stats().Accepted) }),
			counter("gateway", "decode_failures_total", "Frames that could not be decoded.", func() float64 { return float64(stats().DecodeFailures) }),
		)
	}
	if src.Ingestor != nil {
		stats := src.Ingestor
		reg.MustRegister(
			counter("media", "stored_total", "Payloads written to asset storage.", func() float64 { return float64(stats().Stored) }),
			counter("media", "failed_total", "Payloads that could not be stored.", func() float64 { return float64(stats().Failed) }),
			gauge("media", "pending", "Payloads waiting in the fileshare mailbox.", func() float64 { return float64(stats().Pending) }),
		)
	}
	if src.Archiver != nil {
		stats := src.Archiver
		reg.MustRegister(
			counter("archive", "archived_total", "Events written to the activity log.", func() float64 { return float64(stats().Archived) }),
			counter("archive", "failed_total", "Events that failed to archive.", func() float64 { return float64(stats().Failed) }),
			counter("archive", "skipped_total", "Events skipped because the archive lagged.", func() float64 { return float64(stats().Skipped) }),
		)
	}
	if src.Relay != nil {
		stats := src.Relay
		reg.MustRegister(
			gauge("relay", "links", "Peer channels bound to relay ports.", func() float64 { return float64(stats().Links) }),
			counter("relay", "relayed_total", "Relays drained from the social and chat ports.", func() float64 { return float64(stats().Relayed) }),
			counter("relay", "malformed_total", "Relay payloads that failed to decode.", func() float64 { return float64(stats().Malformed) }),
		)
	}

	return &Registry{reg: reg}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func counter(subsystem, name, help string, fn func() float64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

func gauge(subsystem, name, help string, fn func() float64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}
