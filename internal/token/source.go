package token

import (
	"context"

	"golang.org/x/oauth2"
)

type sourceAdapter struct {
	ctx context.Context
	p   Provider
}

// Source adapts a Provider to the oauth2.TokenSource the HTTP transport
// consumes. The context is captured at construction, mirroring how the
// oauth2 package itself binds contexts to sources.
func Source(ctx context.Context, p Provider) oauth2.TokenSource {
	return &sourceAdapter{ctx: ctx, p: p}
}

func (s *sourceAdapter) Token() (*oauth2.Token, error) {
	tok, err := s.p.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}
