package backend

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/spotbridge/internal/spotify"
)

// fakeAPI scripts Web API responses for backend tests. Device responses
// are consumed from a queue whose last entry repeats forever; command
// errors pop one per call.
type fakeAPI struct {
	mu          sync.Mutex
	deviceQueue [][]spotify.Device
	devicesErr  error
	deviceDelay time.Duration
	deviceCalls int

	playErrs  []error
	playCalls []spotify.PlayRequest

	pauseCalls    []string
	nextCalls     int
	previousCalls int
	seekCalls     []int
	volumeCalls   []int
	shuffleCalls  []bool
	repeatCalls   []string

	transferCalls []string
	transferErr   error

	stateResp  *spotify.PlayerState
	stateErr   error
	stateCalls int
}

var _ spotify.API = (*fakeAPI)(nil)

func (f *fakeAPI) SetDeviceQueue(queue ...[]spotify.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deviceQueue = queue
}

func (f *fakeAPI) Devices(ctx context.Context) ([]spotify.Device, error) {
	f.mu.Lock()
	f.deviceCalls++
	var resp []spotify.Device
	if len(f.deviceQueue) > 0 {
		resp = f.deviceQueue[0]
		if len(f.deviceQueue) > 1 {
			f.deviceQueue = f.deviceQueue[1:]
		}
	}
	err := f.devicesErr
	delay := f.deviceDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return resp, err
}

func (f *fakeAPI) DeviceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deviceCalls
}

func (f *fakeAPI) State(ctx context.Context) (*spotify.PlayerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls++
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	if f.stateResp == nil {
		return &spotify.PlayerState{}, nil
	}
	cp := *f.stateResp
	return &cp, nil
}

func (f *fakeAPI) Play(ctx context.Context, req spotify.PlayRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playCalls = append(f.playCalls, req)
	if len(f.playErrs) > 0 {
		err := f.playErrs[0]
		f.playErrs = f.playErrs[1:]
		return err
	}
	return nil
}

func (f *fakeAPI) PlayCalls() []spotify.PlayRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]spotify.PlayRequest(nil), f.playCalls...)
}

func (f *fakeAPI) Pause(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseCalls = append(f.pauseCalls, deviceID)
	return nil
}

func (f *fakeAPI) PauseCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pauseCalls...)
}

func (f *fakeAPI) Next(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCalls++
	return nil
}

func (f *fakeAPI) Previous(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previousCalls++
	return nil
}

func (f *fakeAPI) Seek(ctx context.Context, deviceID string, positionMs int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seekCalls = append(f.seekCalls, positionMs)
	return nil
}

func (f *fakeAPI) SetVolume(ctx context.Context, deviceID string, percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumeCalls = append(f.volumeCalls, percent)
	return nil
}

func (f *fakeAPI) VolumeCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.volumeCalls...)
}

func (f *fakeAPI) SetShuffle(ctx context.Context, deviceID string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shuffleCalls = append(f.shuffleCalls, on)
	return nil
}

func (f *fakeAPI) SetRepeat(ctx context.Context, deviceID string, mode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repeatCalls = append(f.repeatCalls, mode)
	return nil
}

func (f *fakeAPI) Transfer(ctx context.Context, deviceID string, play bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferCalls = append(f.transferCalls, deviceID)
	return f.transferErr
}

func (f *fakeAPI) TransferCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.transferCalls...)
}

// errNoActiveDevice builds the error shape the client produces for 404s.
func errNoActiveDevice(op string) error {
	return &spotify.APIError{
		Sentinel:  spotify.ErrNoActiveDevice,
		Operation: op,
		Status:    404,
		Message:   "Device not found",
	}
}
