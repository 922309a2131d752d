package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const defaultKeyringUser = "access-token"

// Keyring reads the token from the operating system keyring. This is the
// place the slideshow application parks long-lived credentials so they
// never touch a config file.
type Keyring struct {
	service string
	user    string
}

func NewKeyring(service, user string) *Keyring {
	if user == "" {
		user = defaultKeyringUser
	}
	return &Keyring{service: service, user: user}
}

func (k *Keyring) Token(_ context.Context) (string, error) {
	tok, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: keyring entry %s/%s missing", ErrNoToken, k.service, k.user)
	}
	if err != nil {
		return "", fmt.Errorf("read keyring %s/%s: %w", k.service, k.user, err)
	}
	if tok == "" {
		return "", fmt.Errorf("%w: keyring entry %s/%s is empty", ErrNoToken, k.service, k.user)
	}
	return tok, nil
}

// Store persists the token to the system keyring.
func (k *Keyring) Store(tok string) error {
	if tok == "" {
		return errors.New("token: refusing to store empty token")
	}
	return keyring.Set(k.service, k.user, tok)
}

// Clear removes the token from the system keyring.
func (k *Keyring) Clear() error {
	err := keyring.Delete(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
