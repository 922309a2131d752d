// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Process / supervisor fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldMode      = "mode"

	// Playback fields
	FieldDeviceID   = "device_id"
	FieldDeviceName = "device_name"
	FieldTrackURI   = "track_uri"
	FieldPositionMs = "position_ms"
	FieldVolume     = "volume"
	FieldCommand    = "command"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldAttempt  = "attempt"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
