package monitoring

import (
	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/TuringBitChain/TBCNODE/peer"
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is the per command view of the delivered messages.
// peer.NodeCallbacks implements it.
type StatsSource interface {
	// Snapshot returns a copy of the statistics of every command seen.
	Snapshot() map[hnwire.Command]peer.MessageStats

	// Connected reports whether the connection is open.
	Connected() bool

	// VerackReceived reports whether the handshake completed.
	VerackReceived() bool
}

// A compile time check to ensure NodeCallbacks implements StatsSource.
var _ StatsSource = (*peer.NodeCallbacks)(nil)

// MessageCollector exports the message statistics of a connection. We use
// a custom collector so that every scrape reads one consistent snapshot.
type MessageCollector struct {
	source StatsSource

	countDesc     *prometheus.Desc
	indexDesc     *prometheus.Desc
	timestampDesc *prometheus.Desc
	connectedDesc *prometheus.Desc
	verackDesc    *prometheus.Desc
}

// NewMessageCollector creates a collector over source.
func NewMessageCollector(source StatsSource) *MessageCollector {
	labels := []string{"command"}

	return &MessageCollector{
		source: source,
		countDesc: prometheus.NewDesc(
			"halfnode_messages_received",
			"Number of messages received per command since the "+
				"statistics were last cleared",
			labels, nil,
		),
		indexDesc: prometheus.NewDesc(
			"halfnode_message_last_index",
			"Position of the latest message of a command among "+
				"every message delivered",
			labels, nil,
		),
		timestampDesc: prometheus.NewDesc(
			"halfnode_message_last_timestamp_seconds",
			"Delivery time of the latest message of a command",
			labels, nil,
		),
		connectedDesc: prometheus.NewDesc(
			"halfnode_connected",
			"Whether the connection to the node is open",
			nil, nil,
		),
		verackDesc: prometheus.NewDesc(
			"halfnode_handshake_complete",
			"Whether the node acknowledged our version",
			nil, nil,
		),
	}
}

// Describe sends the descriptors of every metric to ch.
func (c *MessageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.countDesc
	ch <- c.indexDesc
	ch <- c.timestampDesc
	ch <- c.connectedDesc
	ch <- c.verackDesc
}

// Collect sends the current value of every metric to ch.
func (c *MessageCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(
		c.connectedDesc, prometheus.GaugeValue,
		boolToFloat(c.source.Connected()),
	)
	ch <- prometheus.MustNewConstMetric(
		c.verackDesc, prometheus.GaugeValue,
		boolToFloat(c.source.VerackReceived()),
	)

	for cmd, stats := range c.source.Snapshot() {
		label := cmd.String()

		// Counts go back to zero on ClearMessages, so they are
		// exported as gauges.
		ch <- prometheus.MustNewConstMetric(
			c.countDesc, prometheus.GaugeValue,
			float64(stats.Count), label,
		)
		ch <- prometheus.MustNewConstMetric(
			c.indexDesc, prometheus.GaugeValue,
			float64(stats.Index), label,
		)

		var ts float64
		if !stats.Timestamp.IsZero() {
			ts = float64(stats.Timestamp.UnixNano()) / 1e9
		}
		ch <- prometheus.MustNewConstMetric(
			c.timestampDesc, prometheus.GaugeValue, ts, label,
		)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
