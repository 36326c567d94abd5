// Package metrics holds the Prometheus counters for the record pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all Prometheus metrics for birdrec.
type Metrics struct {
	// Writer metrics
	RecordsProcessed prometheus.Counter
	RecordsWritten   *prometheus.CounterVec
	RecordsSkipped   prometheus.Counter

	// Reader metrics
	RecordsDecoded prometheus.Counter
	DecodeErrors   prometheus.Counter
	BatchesEmitted *prometheus.CounterVec
	Epochs         *prometheus.CounterVec

	// Watcher metrics
	CheckpointsSeen prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg leaves
// the collectors unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "birdrec_records_processed_total",
			Help: "Total number of labeled audio files consumed by the writer",
		}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "birdrec_records_written_total",
			Help: "Total number of records written, by subset",
		}, []string{"subset"}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "birdrec_records_skipped_total",
			Help: "Total number of audio files skipped by the length filter",
		}),
		RecordsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "birdrec_records_decoded_total",
			Help: "Total number of records decoded by the streaming reader",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "birdrec_decode_errors_total",
			Help: "Total number of malformed records encountered",
		}),
		BatchesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "birdrec_batches_emitted_total",
			Help: "Total number of padded batches produced, by subset",
		}, []string{"subset"}),
		Epochs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "birdrec_epochs_total",
			Help: "Total number of completed passes over the input files, by subset",
		}, []string{"subset"}),
		CheckpointsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "birdrec_checkpoints_seen_total",
			Help: "Total number of checkpoint identifiers yielded by the watcher",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.RecordsProcessed,
			m.RecordsWritten,
			m.RecordsSkipped,
			m.RecordsDecoded,
			m.DecodeErrors,
			m.BatchesEmitted,
			m.Epochs,
			m.CheckpointsSeen,
		)
	}
	return m
}

// OrDiscard returns m, or a fresh unregistered set when m is nil so callers
// never need nil checks.
func OrDiscard(m *Metrics) *Metrics {
	if m == nil {
		return New(nil)
	}
	return m
}
