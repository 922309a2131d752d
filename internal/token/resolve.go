// SPDX-License-Identifier: MIT

package token

import (
	"context"
	"fmt"

	"github.com/ManuGH/spotbridge/internal/log"
)

// Options selects and parameterizes the token source. Field values map
// directly onto the daemon configuration.
type Options struct {
	Source         string // auto|env|keyring|file|oauth
	AccessToken    string // token handed over via environment
	FilePath       string
	KeyringService string
	KeyringUser    string
	ClientID       string
	RefreshToken   string
}

// Resolve builds the Provider for the configured source. With "auto" the
// first source that can actually produce a token wins, probed in the order
// env, keyring, file, oauth. That order matches how deployments hand the
// credential over: the slideshow app injects it into the environment, a
// desktop install parks it in the keyring, headless installs use the cache
// file, and a refresh grant is the fallback that can mint its own.
func Resolve(ctx context.Context, opts Options) (Provider, error) {
	logger := log.WithComponent("token")

	selected := func(source string, p Provider) Provider {
		logger.Info().
			Str(log.FieldEvent, "token.source_selected").
			Str("source", source).
			Msg("token source resolved")
		return p
	}

	switch opts.Source {
	case "env":
		if opts.AccessToken == "" {
			return nil, fmt.Errorf("%w: token source env selected but no token set", ErrNoToken)
		}
		return selected("env", NewStatic(opts.AccessToken)), nil

	case "keyring":
		return selected("keyring", NewKeyring(opts.KeyringService, opts.KeyringUser)), nil

	case "file":
		if opts.FilePath == "" {
			return nil, fmt.Errorf("%w: token source file selected but no path set", ErrNoToken)
		}
		return selected("file", NewFile(opts.FilePath)), nil

	case "oauth":
		if opts.ClientID == "" || opts.RefreshToken == "" {
			return nil, fmt.Errorf("%w: token source oauth needs client id and refresh token", ErrNoToken)
		}
		oauth := NewOAuth(ctx, opts.ClientID, opts.RefreshToken, cacheOption(opts.FilePath))
		return selected("oauth", oauth), nil

	case "", "auto":
		if opts.AccessToken != "" {
			return selected("env", NewStatic(opts.AccessToken)), nil
		}

		kr := NewKeyring(opts.KeyringService, opts.KeyringUser)
		_, krErr := kr.Token(ctx)
		if krErr == nil {
			return selected("keyring", kr), nil
		}
		logger.Debug().Err(krErr).Msg("keyring probe failed")

		if opts.FilePath != "" {
			f := NewFile(opts.FilePath)
			_, fileErr := f.Token(ctx)
			if fileErr == nil {
				return selected("file", f), nil
			}
			logger.Debug().Err(fileErr).Msg("token file probe failed")
		}

		if opts.ClientID != "" && opts.RefreshToken != "" {
			oauth := NewOAuth(ctx, opts.ClientID, opts.RefreshToken, cacheOption(opts.FilePath))
			return selected("oauth", oauth), nil
		}

		return nil, fmt.Errorf("%w: no usable source found (tried env, keyring, file, oauth)", ErrNoToken)

	default:
		return nil, fmt.Errorf("token: unknown source %q", opts.Source)
	}
}

func cacheOption(path string) OAuthOption {
	if path == "" {
		return func(*OAuth) {}
	}
	return WithCacheFile(NewFile(path))
}
