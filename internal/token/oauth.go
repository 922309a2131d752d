// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/ManuGH/spotbridge/internal/log"
)

// OAuth mints fresh access tokens from a long-lived refresh token. The
// interactive authorization happened in the slideshow application; this
// provider only keeps that grant alive. Spotify treats the app as a public
// PKCE client, so no client secret is involved.
type OAuth struct {
	tokenURL string
	cache    *File
	logger   zerolog.Logger

	src oauth2.TokenSource

	mu   sync.Mutex
	last string
}

type OAuthOption func(*OAuth)

// WithCacheFile persists every refreshed token so a restart can come up
// without an immediate round trip to the token endpoint.
func WithCacheFile(f *File) OAuthOption {
	return func(o *OAuth) {
		o.cache = f
	}
}

// withTokenURL points the refresh flow at a different token endpoint.
func withTokenURL(url string) OAuthOption {
	return func(o *OAuth) {
		o.tokenURL = url
	}
}

func NewOAuth(ctx context.Context, clientID, refreshToken string, opts ...OAuthOption) *OAuth {
	o := &OAuth{
		tokenURL: spotifyauth.TokenURL,
		logger:   log.WithComponent("token"),
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg := &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: o.tokenURL,
		},
	}
	o.src = cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return o
}

func (o *OAuth) Token(_ context.Context) (string, error) {
	t, err := o.src.Token()
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	o.mu.Lock()
	rotated := t.AccessToken != o.last
	o.last = t.AccessToken
	o.mu.Unlock()

	if rotated {
		o.logger.Info().
			Str(log.FieldEvent, "token.refreshed").
			Str("token", Redact(t.AccessToken)).
			Time("expiry", t.Expiry).
			Msg("access token refreshed")
		if o.cache != nil {
			if err := o.cache.Save(t.AccessToken); err != nil {
				o.logger.Warn().
					Err(err).
					Str(log.FieldEvent, "token.cache_write_failed").
					Msg("could not persist refreshed token")
			}
		}
	}
	return t.AccessToken, nil
}
