// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Playback attributes
	PlaybackCommandKey  = "playback.command"
	PlaybackDeviceIDKey = "playback.device_id"
	PlaybackTrackURIKey = "playback.track_uri"
	PlaybackPositionKey = "playback.position_ms"
	PlaybackBackendKey  = "playback.backend"

	// Helper process attributes
	ProcessModeKey = "process.mode"
	ProcessPIDKey  = "process.pid"

	// Device discovery attributes
	DiscoveryAttemptKey = "discovery.attempt"
	DiscoveryOutcomeKey = "discovery.outcome"
	DiscoveryDeviceKey  = "discovery.device_name"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// PlaybackAttributes creates playback command span attributes. Empty
// fields are omitted so spans stay small for parameterless commands.
func PlaybackAttributes(command, backend, deviceID, trackURI string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(PlaybackCommandKey, command),
		attribute.String(PlaybackBackendKey, backend),
	}
	if deviceID != "" {
		attrs = append(attrs, attribute.String(PlaybackDeviceIDKey, deviceID))
	}
	if trackURI != "" {
		attrs = append(attrs, attribute.String(PlaybackTrackURIKey, trackURI))
	}
	return attrs
}

// ProcessAttributes creates helper process span attributes.
func ProcessAttributes(mode string, pid int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ProcessModeKey, mode),
		attribute.Int(ProcessPIDKey, pid),
	}
}

// DiscoveryAttributes creates device discovery span attributes.
func DiscoveryAttributes(deviceName, outcome string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DiscoveryDeviceKey, deviceName),
		attribute.String(DiscoveryOutcomeKey, outcome),
		attribute.Int(DiscoveryAttemptKey, attempt),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
