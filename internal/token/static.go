package token

import "context"

// Static serves a fixed token, typically injected through the environment
// by the slideshow application that spawned the daemon.
type Static struct {
	token string
}

func NewStatic(tok string) *Static {
	return &Static{token: tok}
}

func (s *Static) Token(_ context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}
