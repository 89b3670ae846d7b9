package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is stored under the requested name
	ErrNotFound = errors.New("secret not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// KnownSecrets lists the secret names the rest of the application reads.
var KnownSecrets = []string{
	constants.SecretGeminiAPIKey,
	constants.SecretJWT,
	constants.SecretDBConnection,
}

// IsKnown reports whether name is one of KnownSecrets.
func IsKnown(name string) bool {
	for _, s := range KnownSecrets {
		if s == name {
			return true
		}
	}
	return false
}

// Get retrieves a secret from the OS keyring.
// Returns ErrNotFound if nothing is stored under name.
func Get(name string) (string, error) {
	value, err := keyring.Get(constants.AppName, name)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return value, nil
}

// Set stores a secret in the OS keyring.
func Set(name, value string) error {
	if value == "" {
		return errors.New("secret value cannot be empty")
	}
	if err := keyring.Set(constants.AppName, name, value); err != nil {
		return fmt.Errorf("failed to store secret in keyring: %w", err)
	}
	return nil
}

// Delete removes a secret from the OS keyring.
func Delete(name string) error {
	err := keyring.Delete(constants.AppName, name)
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete secret from keyring: %w", err)
	}
	return nil
}

// Lookup is Get without the error: it returns "" when the secret is missing
// or the keyring cannot be reached. Config resolution uses it as a fallback.
func Lookup(name string) string {
	value, err := Get(name)
	if err != nil {
		return ""
	}
	return value
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || err == keyring.ErrNotFound
}
