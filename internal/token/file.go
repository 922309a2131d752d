// SPDX-License-Identifier: MIT

package token

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/ManuGH/spotbridge/internal/log"
)

// fileSchema is the on-disk shape of the token cache.
type fileSchema struct {
	AccessToken string    `json:"access_token"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// File serves tokens from a JSON cache file and picks up external rotations
// of that file. Writes go through a temp file and an atomic rename so a
// concurrent reader never sees a half-written token.
type File struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.RWMutex
	current string
}

func NewFile(path string) *File {
	return &File{
		path:     path,
		debounce: 500 * time.Millisecond,
		logger:   log.WithComponent("token"),
	}
}

// Token returns the cached token, loading it from disk on first use.
func (f *File) Token(_ context.Context) (string, error) {
	f.mu.RLock()
	tok := f.current
	f.mu.RUnlock()
	if tok != "" {
		return tok, nil
	}
	return f.reload()
}

func (f *File) reload() (string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: token file %s does not exist", ErrNoToken, f.path)
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	var schema fileSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return "", fmt.Errorf("parse token file %s: %w", f.path, err)
	}
	if schema.AccessToken == "" {
		return "", fmt.Errorf("%w: token file %s holds no access_token", ErrNoToken, f.path)
	}

	f.mu.Lock()
	f.current = schema.AccessToken
	f.mu.Unlock()
	return schema.AccessToken, nil
}

// Save writes the token atomically and updates the in-process cache.
func (f *File) Save(tok string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(f.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending token file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			f.logger.Debug().Err(err).Msg("cleanup pending token file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fileSchema{AccessToken: tok, UpdatedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("write token data: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace token file: %w", err)
	}

	f.mu.Lock()
	f.current = tok
	f.mu.Unlock()
	return nil
}

// Watch follows the token file until ctx is done and reloads the cache
// whenever another process rewrites it. The parent directory is watched
// because atomic writers replace the file inode on every rotation.
func (f *File) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch token dir: %w", err)
	}

	f.logger.Info().
		Str(log.FieldEvent, "token.watch_started").
		Str(log.FieldPath, f.path).
		Msg("watching token file for rotations")

	go f.watchLoop(ctx, watcher)
	return nil
}

func (f *File) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	// Debounce so one rotation does not trigger a reload per write syscall.
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != f.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(f.debounce, func() {
					if _, err := f.reload(); err != nil {
						f.logger.Warn().
							Err(err).
							Str(log.FieldEvent, "token.reload_failed").
							Msg("token file changed but reload failed")
						return
					}
					f.logger.Info().
						Str(log.FieldEvent, "token.file_rotated").
						Str(log.FieldPath, f.path).
						Msg("token cache refreshed from disk")
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Error().
				Err(err).
				Str(log.FieldEvent, "token.watch_error").
				Msg("token watcher error")
		}
	}
}
