// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the streaming session.
// A nil *Metrics is valid and records nothing, which keeps tests and
// metrics-disabled runs free of registry bookkeeping.
type Metrics struct {
	ChunksSent        prometheus.Counter
	BytesSent         prometheus.Counter
	AcksReceived      prometheus.Counter
	PendingDeliveries prometheus.Gauge
	Reconnects        prometheus.Counter
	ReplayedChunks    prometheus.Counter
	Transcripts       *prometheus.CounterVec
}

// New registers all session metrics on the default registry. Call once
// per process.
func New() *Metrics {
	return &Metrics{
		ChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "buffered_chunks_sent_total",
			Help: "Audio chunks handed to the transport",
		}),
		BytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "buffered_audio_bytes_sent_total",
			Help: "PCM bytes handed to the transport",
		}),
		AcksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "buffered_acks_received_total",
			Help: "AudioAdded acknowledgments received",
		}),
		PendingDeliveries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "buffered_pending_deliveries",
			Help: "Sent chunks awaiting acknowledgment",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "buffered_reconnects_total",
			Help: "Reconnection attempts triggered",
		}),
		ReplayedChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "buffered_replayed_chunks_total",
			Help: "Chunks resent from the replay buffer after reconnect",
		}),
		Transcripts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "buffered_transcript_messages_total",
			Help: "Transcript messages received by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) RecordChunkSent(bytes int) {
	if m == nil {
		return
	}
	m.ChunksSent.Inc()
	m.BytesSent.Add(float64(bytes))
}

func (m *Metrics) RecordAck() {
	if m == nil {
		return
	}
	m.AcksReceived.Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingDeliveries.Set(float64(n))
}

func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *Metrics) RecordReplayedChunks(n int) {
	if m == nil {
		return
	}
	m.ReplayedChunks.Add(float64(n))
}

func (m *Metrics) RecordTranscript(final bool) {
	if m == nil {
		return
	}
	kind := "partial"
	if final {
		kind = "final"
	}
	m.Transcripts.WithLabelValues(kind).Inc()
}
