package spotify

import "context"

// Device is a Connect endpoint as reported by the Web API device list.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Active        bool   `json:"is_active"`
	Restricted    bool   `json:"is_restricted"`
	VolumePercent int    `json:"volume_percent"`
}

// PlayerState is the flattened playback snapshot served to callers.
// Track fields stay empty when nothing is loaded on the device.
type PlayerState struct {
	DeviceID      string   `json:"device_id"`
	DeviceName    string   `json:"device_name"`
	Playing       bool     `json:"is_playing"`
	ProgressMs    int      `json:"progress_ms"`
	DurationMs    int      `json:"duration_ms"`
	TrackURI      string   `json:"track_uri,omitempty"`
	TrackName     string   `json:"track_name,omitempty"`
	Artists       []string `json:"artists,omitempty"`
	ShuffleState  bool     `json:"shuffle_state"`
	RepeatState   string   `json:"repeat_state"`
	VolumePercent int      `json:"volume_percent"`
}

// PlayRequest describes what to start and where. All fields are optional;
// an empty request resumes the current context on the active device.
type PlayRequest struct {
	DeviceID   string   `json:"device_id,omitempty"`
	URIs       []string `json:"uris,omitempty"`
	ContextURI string   `json:"context_uri,omitempty"`
	PositionMs int      `json:"position_ms,omitempty"`
}

// API is the Web API surface the rest of the daemon depends on.
type API interface {
	Devices(ctx context.Context) ([]Device, error)
	State(ctx context.Context) (*PlayerState, error)
	Play(ctx context.Context, req PlayRequest) error
	Pause(ctx context.Context, deviceID string) error
	Next(ctx context.Context, deviceID string) error
	Previous(ctx context.Context, deviceID string) error
	Seek(ctx context.Context, deviceID string, positionMs int) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
	SetShuffle(ctx context.Context, deviceID string, on bool) error
	SetRepeat(ctx context.Context, deviceID string, mode string) error
	Transfer(ctx context.Context, deviceID string, play bool) error
}
