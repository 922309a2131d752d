package player

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrInvalidPath        = errors.New("player: dev repository path missing or not a directory")
	ErrHelperNotFound     = errors.New("player: packaged helper executable not found")
	ErrNoAccessCredential = errors.New("player: no access credential provided")
	ErrSendFailed         = errors.New("player: control channel send failed")
)

// LaunchError wraps a failed process spawn with the mode it happened in.
type LaunchError struct {
	Mode string
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	msg := fmt.Sprintf("player: launch failed in %s mode", e.Mode)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
