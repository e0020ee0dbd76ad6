// Package metrics provides Prometheus metrics for the FalconGrasp game and
// vision nodes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the process.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Vision
	framesProcessed  *prometheus.CounterVec
	frameErrors      *prometheus.CounterVec
	detections       *prometheus.CounterVec
	confirmations    *prometheus.CounterVec
	classifyLatency  prometheus.Histogram
	cameraDetecting  *prometheus.GaugeVec
	sourceReconnects *prometheus.CounterVec

	// Bus
	busPublished      *prometheus.CounterVec
	busReceived       *prometheus.CounterVec
	busPublishErrors  prometheus.Counter
	busReconnects     prometheus.Counter
	busConnected      prometheus.Gauge
	busBuffered       prometheus.Gauge
	busDataSubscribed prometheus.Gauge

	// Telemetry queue and aggregator
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueued     prometheus.Counter
	queueDequeued     prometheus.Counter
	queueRejected     *prometheus.CounterVec
	telemetryApplied  *prometheus.CounterVec
	telemetryRejected *prometheus.CounterVec
	aggregatorLatency prometheus.Histogram
	aggregatorRunning prometheus.Gauge

	// Orchestrator
	orchestratorState    prometheus.Gauge
	transitions          *prometheus.CounterVec
	polls                *prometheus.CounterVec
	sessionsStarted      prometheus.Counter
	sessionsCancelled    prometheus.Counter
	submissions          *prometheus.CounterVec
	leaderboardRefreshes prometheus.Counter
	roundsCompleted      prometheus.Counter
	roundDuration        prometheus.Gauge

	// Remote scoring service
	apiLatency *prometheus.HistogramVec
	apiErrors  *prometheus.CounterVec

	// Admin HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "falcongrasp",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(subsystem, name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(subsystem, name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(subsystem, name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.framesProcessed = m.counterVec("vision", "frames_processed_total", "Frames read from a camera source", "camera")
	m.frameErrors = m.counterVec("vision", "frame_errors_total", "Empty or unreadable frames", "camera")
	m.detections = m.counterVec("vision", "detections_total", "Accepted contours per color", "camera", "color")
	m.confirmations = m.counterVec("vision", "confirmations_total", "Debounced confirmations published", "camera")
	m.classifyLatency = m.histogram("vision", "classify_latency_milliseconds", "Time to classify one frame")
	m.cameraDetecting = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "vision", Name: "detecting",
		Help: "1 while the camera is gated on by start", ConstLabels: m.constLabels,
	}, []string{"camera"})
	m.sourceReconnects = m.counterVec("vision", "source_reconnects_total", "Frame source reopen attempts", "camera")

	m.busPublished = m.counterVec("bus", "published_total", "Messages published", "family")
	m.busReceived = m.counterVec("bus", "received_total", "Messages received", "family")
	m.busPublishErrors = m.counter("bus", "publish_errors_total", "Failed publishes")
	m.busReconnects = m.counter("bus", "reconnects_total", "Broker (re)connections")
	m.busConnected = m.gauge("bus", "connected", "1 while connected to the broker")
	m.busBuffered = m.gauge("bus", "buffered_messages", "Telemetry waiting for a connection")
	m.busDataSubscribed = m.gauge("bus", "data_subscribed", "1 while data topics are subscribed")

	m.queueSize = m.gauge("telemetry", "queue_size", "Telemetry messages waiting in the queue")
	m.queueCapacity = m.gauge("telemetry", "queue_capacity", "Telemetry queue capacity")
	m.queueEnqueued = m.counter("telemetry", "queue_enqueued_total", "Telemetry messages enqueued")
	m.queueDequeued = m.counter("telemetry", "queue_dequeued_total", "Telemetry messages dequeued")
	m.queueRejected = m.counterVec("telemetry", "queue_rejected_total", "Telemetry messages refused by the queue", "reason")
	m.telemetryApplied = m.counterVec("telemetry", "applied_total", "Telemetry applied to the session", "kind")
	m.telemetryRejected = m.counterVec("telemetry", "rejected_total", "Telemetry the aggregator dropped", "reason")
	m.aggregatorLatency = m.histogram("telemetry", "apply_latency_milliseconds", "Time to apply one telemetry message")
	m.aggregatorRunning = m.gauge("telemetry", "workers_running", "Running aggregator workers")

	m.orchestratorState = m.gauge("orchestrator", "state", "Current orchestrator state ordinal")
	m.transitions = m.counterVec("orchestrator", "transitions_total", "State transitions", "from", "to")
	m.polls = m.counterVec("orchestrator", "polls_total", "Remote polls by endpoint and outcome", "endpoint", "outcome")
	m.sessionsStarted = m.counter("orchestrator", "sessions_started_total", "Sessions that reached playing")
	m.sessionsCancelled = m.counter("orchestrator", "sessions_cancelled_total", "Sessions cancelled by an admin")
	m.submissions = m.counterVec("orchestrator", "submissions_total", "Score submissions by outcome", "outcome")
	m.leaderboardRefreshes = m.counter("orchestrator", "leaderboard_refreshes_total", "Leaderboard fetches after submit")
	m.roundsCompleted = m.counter("round", "completed_total", "Rounds that ran to the end of the timer")
	m.roundDuration = m.gauge("round", "duration_seconds", "Configured round duration")

	m.apiLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "scoring_api", Name: "latency_milliseconds",
		Help: "Remote scoring service latency", Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, []string{"endpoint"})
	m.apiErrors = m.counterVec("scoring_api", "errors_total", "Remote scoring service errors", "endpoint", "kind")

	m.httpRequests = m.counterVec("http", "requests_total", "Admin HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", Name: "request_duration_milliseconds",
		Help: "Admin HTTP request duration", Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = m.counterVec("http", "errors_total", "Admin HTTP error responses", "endpoint", "type", "severity")
}

// Vision.

// RecordFrameProcessed counts a frame read from camera.
func RecordFrameProcessed(camera string) { globalManager.framesProcessed.WithLabelValues(camera).Inc() }

// RecordFrameError counts an empty or unreadable frame.
func RecordFrameError(camera string) { globalManager.frameErrors.WithLabelValues(camera).Inc() }

// RecordDetections adds n accepted contours of color on camera.
func RecordDetections(camera, color string, n int) {
	if n > 0 {
		globalManager.detections.WithLabelValues(camera, color).Add(float64(n))
	}
}

// RecordConfirmation counts a debounced confirmation.
func RecordConfirmation(camera string) { globalManager.confirmations.WithLabelValues(camera).Inc() }

// RecordClassifyLatency records classification time in milliseconds.
func RecordClassifyLatency(ms float64) { globalManager.classifyLatency.Observe(ms) }

// UpdateCameraDetecting reflects the detecting gate of camera.
func UpdateCameraDetecting(camera string, on bool) {
	globalManager.cameraDetecting.WithLabelValues(camera).Set(boolToFloat(on))
}

// RecordSourceReconnect counts a frame source reopen attempt.
func RecordSourceReconnect(camera string) { globalManager.sourceReconnects.WithLabelValues(camera).Inc() }

// Bus.

// RecordBusPublished counts a published message of family (telemetry or control).
func RecordBusPublished(family string) { globalManager.busPublished.WithLabelValues(family).Inc() }

// RecordBusReceived counts a received message of family.
func RecordBusReceived(family string) { globalManager.busReceived.WithLabelValues(family).Inc() }

// RecordBusPublishError counts a failed publish.
func RecordBusPublishError() { globalManager.busPublishErrors.Inc() }

// RecordBusReconnect counts a broker (re)connection.
func RecordBusReconnect() { globalManager.busReconnects.Inc() }

// UpdateBusConnected reflects the broker connection state.
func UpdateBusConnected(on bool) { globalManager.busConnected.Set(boolToFloat(on)) }

// UpdateBusBuffered sets the number of telemetry messages held while offline.
func UpdateBusBuffered(n int) { globalManager.busBuffered.Set(float64(n)) }

// UpdateBusDataSubscribed reflects whether data topics are subscribed.
func UpdateBusDataSubscribed(on bool) { globalManager.busDataSubscribed.Set(boolToFloat(on)) }

// Telemetry queue and aggregator.

// UpdateQueueSize sets the current telemetry queue depth.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the telemetry queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an accepted message.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a delivered message.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueRejected counts a refused message by reason.
func RecordQueueRejected(reason string) { globalManager.queueRejected.WithLabelValues(reason).Inc() }

// RecordTelemetryApplied counts telemetry applied to the session by kind.
func RecordTelemetryApplied(kind string) { globalManager.telemetryApplied.WithLabelValues(kind).Inc() }

// RecordTelemetryRejected counts telemetry the aggregator dropped.
func RecordTelemetryRejected(reason string) {
	globalManager.telemetryRejected.WithLabelValues(reason).Inc()
}

// RecordAggregatorLatency records the time to apply one message in milliseconds.
func RecordAggregatorLatency(ms float64) { globalManager.aggregatorLatency.Observe(ms) }

// UpdateAggregatorRunning sets the number of running aggregator workers.
func UpdateAggregatorRunning(n int) { globalManager.aggregatorRunning.Set(float64(n)) }

// Orchestrator.

// UpdateOrchestratorState sets the state ordinal.
func UpdateOrchestratorState(ordinal int) { globalManager.orchestratorState.Set(float64(ordinal)) }

// RecordTransition counts a state transition.
func RecordTransition(from, to string) { globalManager.transitions.WithLabelValues(from, to).Inc() }

// RecordPoll counts a remote poll by endpoint and outcome.
func RecordPoll(endpoint, outcome string) { globalManager.polls.WithLabelValues(endpoint, outcome).Inc() }

// RecordSessionStarted counts a session that reached playing.
func RecordSessionStarted() { globalManager.sessionsStarted.Inc() }

// RecordSessionCancelled counts a cancelled session.
func RecordSessionCancelled() { globalManager.sessionsCancelled.Inc() }

// RecordSubmission counts a submission attempt by outcome.
func RecordSubmission(outcome string) { globalManager.submissions.WithLabelValues(outcome).Inc() }

// RecordLeaderboardRefresh counts a leaderboard fetch after submit.
func RecordLeaderboardRefresh() { globalManager.leaderboardRefreshes.Inc() }

// RecordRoundCompleted counts a round that ran to the end of its timer.
func RecordRoundCompleted() { globalManager.roundsCompleted.Inc() }

// UpdateRoundDuration sets the configured round duration in seconds.
func UpdateRoundDuration(seconds float64) { globalManager.roundDuration.Set(seconds) }

// Remote scoring service.

// RecordAPILatency records a remote call latency in milliseconds.
func RecordAPILatency(endpoint string, ms float64) {
	globalManager.apiLatency.WithLabelValues(endpoint).Observe(ms)
}

// RecordAPIError counts a remote call failure by kind.
func RecordAPIError(endpoint, kind string) { globalManager.apiErrors.WithLabelValues(endpoint, kind).Inc() }

// Admin HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an error response by type and severity.
func RecordHTTPError(endpoint, errorType, severity string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType, severity).Inc()
}

// GetRegistry returns the process registry for the metrics endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
