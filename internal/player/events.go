// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import "encoding/json"

// Event is one inbound helper message decoded into a closed variant set.
// Payloads the daemon cannot make sense of surface as Unknown; they are
// logged and counted but never abort the reader.
type Event interface {
	eventName() string
}

// Ready reports that the helper registered itself as a Connect device.
type Ready struct {
	DeviceID string
}

// NotReady reports that the helper lost its device registration.
type NotReady struct {
	DeviceID string
}

// ContentLoaded confirms the playback surface finished loading.
type ContentLoaded struct{}

// CredentialAck confirms the helper accepted an access credential.
type CredentialAck struct{}

// ConnectResult reports the outcome of a connect command.
type ConnectResult struct {
	OK bool
}

// StateChanged carries a playback snapshot from the helper. Track fields
// stay zero when nothing is loaded.
type StateChanged struct {
	IsPlaying  bool
	PositionMs int
	DurationMs int
	TrackURI   string
	TrackName  string
	ArtistName string
}

// ErrorEvent carries a helper-side failure.
type ErrorEvent struct {
	Code    string
	Message string
}

// Unknown wraps a line that did not decode into any known event.
type Unknown struct {
	Raw string
}

func (Ready) eventName() string         { return "ready" }
func (NotReady) eventName() string      { return "not_ready" }
func (ContentLoaded) eventName() string { return "content_loaded" }
func (CredentialAck) eventName() string { return "credential_ack" }
func (ConnectResult) eventName() string { return "connect_result" }
func (StateChanged) eventName() string  { return "state_changed" }
func (ErrorEvent) eventName() string    { return "error" }
func (Unknown) eventName() string       { return "unknown" }

// wireEvent is the superset of fields any helper event may carry. Missing
// fields simply stay at their zero value, which is the tolerated default.
type wireEvent struct {
	Event      string `json:"event"`
	DeviceID   string `json:"device_id"`
	OK         *bool  `json:"ok"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	IsPlaying  bool   `json:"is_playing"`
	PositionMs int    `json:"position_ms"`
	DurationMs int    `json:"duration_ms"`
	TrackURI   string `json:"track_uri"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
}

func decodeEvent(line []byte) Event {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return Unknown{Raw: string(line)}
	}

	switch w.Event {
	case "ready":
		return Ready{DeviceID: w.DeviceID}
	case "not_ready":
		return NotReady{DeviceID: w.DeviceID}
	case "content_loaded":
		return ContentLoaded{}
	case "credential_ack":
		return CredentialAck{}
	case "connect_result":
		return ConnectResult{OK: w.OK != nil && *w.OK}
	case "state_changed":
		return StateChanged{
			IsPlaying:  w.IsPlaying,
			PositionMs: w.PositionMs,
			DurationMs: w.DurationMs,
			TrackURI:   w.TrackURI,
			TrackName:  w.TrackName,
			ArtistName: w.ArtistName,
		}
	case "error":
		return ErrorEvent{Code: w.Code, Message: w.Message}
	default:
		return Unknown{Raw: string(line)}
	}
}
