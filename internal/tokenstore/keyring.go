package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps the session record in OS-native credential storage
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
// The keyring has no change notifications, so sessions stored here are
// not synchronized across running processes.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check that KeyringStore implements Store.
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore under the given service and user
// identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Read returns the record from the system keyring.
func (k *KeyringStore) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := keyring.Get(k.service, k.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if record == "" {
		return nil, ErrNotFound
	}
	return []byte(record), nil
}

// Write persists the record to the system keyring, overwriting any
// existing value.
func (k *KeyringStore) Write(ctx context.Context, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, k.user, string(record))
}

// Clear removes the record from the system keyring. A missing entry is
// not an error.
func (k *KeyringStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := keyring.Delete(k.service, k.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
