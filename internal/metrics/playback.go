// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// Readiness metrics
	readinessState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spotbridge_backend_readiness",
		Help: "Current backend readiness state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	readinessTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_backend_transitions_total",
		Help: "Backend readiness transitions by source and target state",
	}, []string{"from", "to"})

	// Device discovery metrics
	discoveryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_discovery_attempts_total",
		Help: "Device discovery poll attempts by outcome",
	}, []string{"outcome"}) // outcome=match|no_match|error

	discoveryPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_discovery_polls_total",
		Help: "Completed discovery poll rounds by result",
	}, []string{"result"}) // result=resolved|exhausted|canceled

	// Control channel metrics
	controlCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_control_commands_total",
		Help: "Commands written to the player helper by operation",
	}, []string{"op"})

	controlEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_control_events_total",
		Help: "Events received from the player helper by type",
	}, []string{"type"})

	controlDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spotbridge_control_decode_failures_total",
		Help: "Total number of helper output lines that could not be decoded",
	})

	credentialDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_credential_deliveries_total",
		Help: "Access credential deliveries to the helper by path",
	}, []string{"path"}) // path=immediate|buffered

	// Command surface metrics
	commandFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_command_failures_total",
		Help: "Playback command failures by command and reason",
	}, []string{"command", "reason"}) // reason=not_ready|device_not_found|api_error|channel

	// Web API metrics
	webAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_webapi_requests_total",
		Help: "Outbound Spotify Web API calls by operation and outcome",
	}, []string{"operation", "outcome"}) // outcome=success|error

	webAPIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spotbridge_webapi_request_duration_seconds",
		Help:    "Latency of outbound Spotify Web API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// SetReadinessState flips the readiness gauge so exactly the given state is 1.
func SetReadinessState(active string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == active {
			v = 1.0
		}
		readinessState.WithLabelValues(s).Set(v)
	}
}

// RecordReadinessTransition increments the transition counter.
func RecordReadinessTransition(from, to string) {
	readinessTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordDiscoveryAttempt increments the per-attempt counter.
func RecordDiscoveryAttempt(outcome string) {
	discoveryAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordDiscoveryPoll increments the per-round counter.
func RecordDiscoveryPoll(result string) {
	discoveryPollsTotal.WithLabelValues(result).Inc()
}

// IncControlCommand increments the outbound control command counter.
func IncControlCommand(op string) {
	controlCommandsTotal.WithLabelValues(op).Inc()
}

// IncControlEvent increments the inbound control event counter.
func IncControlEvent(eventType string) {
	controlEventsTotal.WithLabelValues(eventType).Inc()
}

// IncControlDecodeFailure increments the decode failure counter.
func IncControlDecodeFailure() {
	controlDecodeFailures.Inc()
}

// RecordCredentialDelivery increments the credential delivery counter.
// path: "direct" or "flushed".
func RecordCredentialDelivery(path string) {
	credentialDeliveriesTotal.WithLabelValues(path).Inc()
}

// RecordCommandFailure increments the command failure counter.
func RecordCommandFailure(command, reason string) {
	commandFailuresTotal.WithLabelValues(command, reason).Inc()
}

// RecordWebAPIRequest records one outbound Web API call.
func RecordWebAPIRequest(operation, outcome string, seconds float64) {
	webAPIRequestsTotal.WithLabelValues(operation, outcome).Inc()
	webAPIRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// GetDecodeFailures returns the current decode failure count (for testing).
func GetDecodeFailures() float64 {
	var m dto.Metric
	if err := controlDecodeFailures.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
