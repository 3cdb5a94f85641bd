package tokenstore

import (
	"context"
	"fmt"
	"os"
)

// EnvStore provides read-only access to a session record stored in an
// environment variable. Useful for CI and scripted contexts where a token
// record is injected externally; logging in through it is not possible.
type EnvStore struct {
	envKey string
}

// Compile-time check that EnvStore implements Store.
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
// Returns an error if the variable name is empty or not set.
func NewEnvStore(envKey string) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	if _, exists := os.LookupEnv(envKey); !exists {
		return nil, fmt.Errorf("environment variable %s not set", envKey)
	}

	return &EnvStore{
		envKey: envKey,
	}, nil
}

// Read returns the record from the environment variable.
func (e *EnvStore) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := os.Getenv(e.envKey)
	if record == "" {
		return nil, ErrNotFound
	}
	return []byte(record), nil
}

// Write is not supported for environment variables (they are read-only).
func (e *EnvStore) Write(ctx context.Context, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage is read-only")
}

// Clear is not supported for environment variables (they are read-only).
func (e *EnvStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage is read-only")
}
