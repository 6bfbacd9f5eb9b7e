package prometheus

import (
	"strconv"
	"time"
)

// Label values shared by the Record helpers.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// ScoreBuckets cover a single ensemble forward pass.
var ScoreBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5}

// EntryBuckets cover the number of protonation states in one profile.
var EntryBuckets = []float64{0, 1, 2, 3, 4, 5, 6, 8, 10, 15}

// PKAMetrics holds every metric family the service exports.
type PKAMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Scoring
	ScoresTotal        CounterVec
	ScoreDuration      HistogramVec
	PredictedPKa       HistogramVec
	CandidatesSkipped  CounterVec
	StepsCommitted     CounterVec
	ProfilesTotal      CounterVec
	ProfileEntries     HistogramVec
	ProfileDuration    HistogramVec
	CacheAccessesTotal CounterVec

	// Training
	TrainMAE     GaugeVec
	ValMAE       GaugeVec
	EpochsTotal  CounterVec
	CurrentEpoch GaugeVec

	// Messaging and storage
	MessagesTotal     CounterVec
	MessageDuration   HistogramVec
	StorageOpsTotal   CounterVec
	StorageOpDuration HistogramVec

	ErrorsTotal CounterVec
}

// NewPKAMetrics registers all families on collector.
func NewPKAMetrics(collector MetricsCollector) *PKAMetrics {
	return &PKAMetrics{
		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "HTTP requests by method, route and status.", "method", "route", "status"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request latency.", nil, "method", "route"),

		ScoresTotal:        collector.RegisterCounter("scores_total", "Conjugate pair scoring calls by result.", "result"),
		ScoreDuration:      collector.RegisterHistogram("score_duration_seconds", "Latency of one ensemble forward pass.", ScoreBuckets, "result"),
		PredictedPKa:       collector.RegisterHistogram("predicted_pka", "Distribution of predicted pKa values.", []float64{0, 2, 4, 6, 8, 10, 12, 14}),
		CandidatesSkipped:  collector.RegisterCounter("candidates_skipped_total", "Candidate sites dropped during sequencing.", "direction", "reason"),
		StepsCommitted:     collector.RegisterCounter("steps_committed_total", "Protonation states committed to a profile.", "direction"),
		ProfilesTotal:      collector.RegisterCounter("profiles_total", "Microstate profiles computed by source.", "source"),
		ProfileEntries:     collector.RegisterHistogram("profile_entries", "Number of entries per profile.", EntryBuckets),
		ProfileDuration:    collector.RegisterHistogram("profile_duration_seconds", "Wall time to sequence one molecule.", nil),
		CacheAccessesTotal: collector.RegisterCounter("cache_accesses_total", "Profile cache lookups.", "result"),

		TrainMAE:     collector.RegisterGauge("train_mae", "Latest training-set MAE.", "variant"),
		ValMAE:       collector.RegisterGauge("validation_mae", "Latest validation-set MAE.", "variant"),
		EpochsTotal:  collector.RegisterCounter("training_epochs_total", "Evaluated training epochs.", "variant"),
		CurrentEpoch: collector.RegisterGauge("training_epoch", "Most recent evaluated epoch.", "variant"),

		MessagesTotal:     collector.RegisterCounter("messages_total", "Queue messages handled by topic and status.", "topic", "status"),
		MessageDuration:   collector.RegisterHistogram("message_duration_seconds", "Time to handle one queue message.", nil, "topic"),
		StorageOpsTotal:   collector.RegisterCounter("storage_operations_total", "Storage calls by backend, operation and result.", "backend", "operation", "result"),
		StorageOpDuration: collector.RegisterHistogram("storage_operation_duration_seconds", "Storage call latency.", nil, "backend", "operation"),

		ErrorsTotal: collector.RegisterCounter("errors_total", "Errors by component and code.", "component", "code"),
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// RecordHTTPRequest counts and times one HTTP request.
func (m *PKAMetrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordScore counts one scoring call. pKa is observed only on success.
func (m *PKAMetrics) RecordScore(pka float64, d time.Duration, err error) {
	r := result(err)
	m.ScoresTotal.WithLabelValues(r).Inc()
	m.ScoreDuration.WithLabelValues(r).Observe(d.Seconds())
	if err == nil {
		m.PredictedPKa.WithLabelValues().Observe(pka)
	}
}

// RecordCandidateSkipped counts a candidate site the sequencer dropped.
func (m *PKAMetrics) RecordCandidateSkipped(direction, reason string) {
	m.CandidatesSkipped.WithLabelValues(direction, reason).Inc()
}

// RecordStep counts one committed protonation state.
func (m *PKAMetrics) RecordStep(direction string) {
	m.StepsCommitted.WithLabelValues(direction).Inc()
}

// RecordProfile records a finished profile. source is "computed" or "cache".
func (m *PKAMetrics) RecordProfile(source string, entries int, d time.Duration) {
	m.ProfilesTotal.WithLabelValues(source).Inc()
	m.ProfileEntries.WithLabelValues().Observe(float64(entries))
	m.ProfileDuration.WithLabelValues().Observe(d.Seconds())
}

// RecordCacheAccess counts a cache hit or miss.
func (m *PKAMetrics) RecordCacheAccess(hit bool) {
	r := "miss"
	if hit {
		r = "hit"
	}
	m.CacheAccessesTotal.WithLabelValues(r).Inc()
}

// ObserveEpoch publishes training progress for one evaluated epoch.
func (m *PKAMetrics) ObserveEpoch(variant string, epoch int, trainMAE, valMAE float64) {
	m.TrainMAE.WithLabelValues(variant).Set(trainMAE)
	m.ValMAE.WithLabelValues(variant).Set(valMAE)
	m.EpochsTotal.WithLabelValues(variant).Inc()
	m.CurrentEpoch.WithLabelValues(variant).Set(float64(epoch))
}

// RecordMessage counts one handled queue message. status is typically
// "ok", "retry" or "dlq".
func (m *PKAMetrics) RecordMessage(topic, status string, d time.Duration) {
	m.MessagesTotal.WithLabelValues(topic, status).Inc()
	m.MessageDuration.WithLabelValues(topic).Observe(d.Seconds())
}

// RecordStorageOp counts and times one storage call.
func (m *PKAMetrics) RecordStorageOp(backend, operation string, d time.Duration, err error) {
	m.StorageOpsTotal.WithLabelValues(backend, operation, result(err)).Inc()
	m.StorageOpDuration.WithLabelValues(backend, operation).Observe(d.Seconds())
}

// RecordError counts an error by component and error code.
func (m *PKAMetrics) RecordError(component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

//Personal.AI order the ending
