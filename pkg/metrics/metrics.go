package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "ethscraper"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	RPC      = "rpc"
	Receipts = "receipts"
	Records  = "records"
	Sink     = "sink"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple scraper instances.
type Labels struct {
	EVMChainID    uint64 // EVM chain ID (e.g., 1 for Ethereum mainnet)
	Environment   string // Deployment environment (e.g., "production", "staging", "development")
	Region        string // Cloud region (e.g., "us-east-1", "eu-west-1")
	CloudProvider string // Cloud provider (e.g., "aws", "oci", "gcp")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.EVMChainID != 0 {
		labels["evm_chain_id"] = strconv.FormatUint(l.EVMChainID, 10)
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// Range progress
	lowest         prometheus.Gauge
	highest        prometheus.Gauge
	pendingSetSize prometheus.Gauge

	// Processing counters
	blocksProcessed prometheus.Counter
	lowestAdvances  prometheus.Counter
	errors          *prometheus.CounterVec

	// RPC metrics
	rpcCalls          *prometheus.CounterVec
	rpcDuration       *prometheus.HistogramVec
	rpcInFlight       prometheus.Gauge
	rpcProtocolErrors *prometheus.CounterVec

	// Processing latency
	blockProcessingDuration prometheus.Histogram

	// Receipt metrics
	receiptsFetched        *prometheus.CounterVec
	receiptFetchesInFlight prometheus.Gauge

	// Output metrics
	recordsEmitted    *prometheus.CounterVec
	sinkWrites        *prometheus.CounterVec
	sinkWriteDuration *prometheus.HistogramVec

	// Checkpoint metrics
	checkpointWrites *prometheus.CounterVec
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels (e.g., evm_chain_id), use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

var latencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		lowest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "lowest",
			Help:      "Lowest unfinished block height of the current run",
		}),
		highest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "highest",
			Help:      "Highest finished block height of the current run",
		}),
		pendingSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pending_set_size",
			Help:      "Number of finished blocks above the lowest unfinished height",
		}),
		blocksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "blocks_processed_total",
			Help:      "Total number of blocks whose processing finished",
		}),
		lowestAdvances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lowest_advances_total",
			Help:      "Total number of times the lowest unfinished height advanced",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "calls_total",
			Help:      "Total RPC calls by method and status",
		}, []string{"method", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "duration_seconds",
			Help:      "RPC call duration in seconds",
			Buckets:   latencyBuckets,
		}, []string{"method"}),
		rpcInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "in_flight",
			Help:      "Number of RPC calls currently in progress",
		}),
		rpcProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "protocol_errors_total",
			Help:      "Total JSON-RPC error envelopes returned by the node by method and code",
		}, []string{"method", "code"}),
		blockProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "block_processing_duration_seconds",
			Help:      "Time to process a single block including its receipts",
			Buckets:   latencyBuckets,
		}),
		receiptsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Receipts,
			Name:      "fetched_total",
			Help:      "Total transaction receipts fetched by status",
		}, []string{"status"}),
		receiptFetchesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Receipts,
			Name:      "fetches_in_flight",
			Help:      "Number of receipt fetches currently in progress",
		}),
		recordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Records,
			Name:      "emitted_total",
			Help:      "Total records handed to the sink by kind",
		}, []string{"kind"}),
		sinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Sink,
			Name:      "writes_total",
			Help:      "Total sink writes by sink and status",
		}, []string{"sink", "status"}),
		sinkWriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Sink,
			Name:      "write_duration_seconds",
			Help:      "Sink write duration in seconds",
			Buckets:   latencyBuckets,
		}, []string{"sink"}),
		checkpointWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "checkpoint",
			Name:      "writes_total",
			Help:      "Total checkpoint writes by status",
		}, []string{"status"}),
	}

	err := errors.Join(
		reg.Register(m.lowest),
		reg.Register(m.highest),
		reg.Register(m.pendingSetSize),
		reg.Register(m.blocksProcessed),
		reg.Register(m.lowestAdvances),
		reg.Register(m.errors),
		reg.Register(m.rpcCalls),
		reg.Register(m.rpcDuration),
		reg.Register(m.rpcInFlight),
		reg.Register(m.rpcProtocolErrors),
		reg.Register(m.blockProcessingDuration),
		reg.Register(m.receiptsFetched),
		reg.Register(m.receiptFetchesInFlight),
		reg.Register(m.recordsEmitted),
		reg.Register(m.sinkWrites),
		reg.Register(m.sinkWriteDuration),
		reg.Register(m.checkpointWrites),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants. RPC transport errors are tracked via rpcCalls{status="error"} as well.
const (
	ErrTypeTransport      = "transport"
	ErrTypeDecodeBlock    = "decode_block"
	ErrTypeDecodeTx       = "decode_transaction"
	ErrTypeDecodeReceipt  = "decode_receipt"
	ErrTypeDecodeLog      = "decode_log"
	ErrTypeDecodeTransfer = "decode_transfer"
	ErrTypeOutOfRange     = "out_of_range"
)

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// CommitBlocks records blocks leaving the pending set when the lowest height advances.
func (m *Metrics) CommitBlocks(count uint64, lowest, highest uint64, pendingSetSize int) {
	if m == nil {
		return
	}
	m.lowestAdvances.Inc()
	m.blocksProcessed.Add(float64(count))
	m.UpdateProgressMetrics(lowest, highest, pendingSetSize)
}

// UpdateProgressMetrics updates range progress gauges.
func (m *Metrics) UpdateProgressMetrics(lowest, highest uint64, pendingSetSize int) {
	if m == nil {
		return
	}
	m.lowest.Set(float64(lowest))
	m.highest.Set(float64(highest))
	m.pendingSetSize.Set(float64(pendingSetSize))
}

// IncRPCInFlight increments the in-flight RPC gauge.
func (m *Metrics) IncRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Inc()
}

// DecRPCInFlight decrements the in-flight RPC gauge.
func (m *Metrics) DecRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Dec()
}

// RecordRPCCall records an RPC call outcome. A non-nil err is a transport failure.
func (m *Metrics) RecordRPCCall(method string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(method, status(err)).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordRPCProtocolError records an error envelope returned by the node.
func (m *Metrics) RecordRPCProtocolError(method string, code int) {
	if m == nil {
		return
	}
	m.rpcProtocolErrors.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// ObserveBlockProcessingDuration records a block processing duration.
func (m *Metrics) ObserveBlockProcessingDuration(seconds float64) {
	if m == nil {
		return
	}
	m.blockProcessingDuration.Observe(seconds)
}

// IncReceiptFetchInFlight increments the in-flight receipt fetch gauge.
func (m *Metrics) IncReceiptFetchInFlight() {
	if m == nil {
		return
	}
	m.receiptFetchesInFlight.Inc()
}

// DecReceiptFetchInFlight decrements the in-flight receipt fetch gauge.
func (m *Metrics) DecReceiptFetchInFlight() {
	if m == nil {
		return
	}
	m.receiptFetchesInFlight.Dec()
}

// RecordReceiptFetch records the outcome of a receipt fetch.
func (m *Metrics) RecordReceiptFetch(err error) {
	if m == nil {
		return
	}
	m.receiptsFetched.WithLabelValues(status(err)).Inc()
}

// IncRecordEmitted counts a record handed to the sink.
func (m *Metrics) IncRecordEmitted(kind string) {
	if m == nil {
		return
	}
	m.recordsEmitted.WithLabelValues(kind).Inc()
}

// RecordSinkWrite records a write to the named sink.
func (m *Metrics) RecordSinkWrite(sink string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.sinkWrites.WithLabelValues(sink, status(err)).Inc()
	m.sinkWriteDuration.WithLabelValues(sink).Observe(durationSeconds)
}

// RecordCheckpointWrite records a checkpoint write attempt.
func (m *Metrics) RecordCheckpointWrite(err error) {
	if m == nil {
		return
	}
	m.checkpointWrites.WithLabelValues(status(err)).Inc()
}
