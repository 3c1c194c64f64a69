package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "murmur"
	keyringUser    = "remote-token"
)

func tokenFromKeyring() string {
	token, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		return ""
	}
	return token
}

// SetToken stores the remote bearer token in the OS keyring.
func SetToken(token string) error {
	if token == "" {
		if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear token from keychain: %w", err)
		}
		return nil
	}
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		return fmt.Errorf("failed to set token in keychain: %w", err)
	}
	return nil
}

// HasToken reports whether a token is stored in the keyring.
func HasToken() bool {
	_, err := keyring.Get(keyringService, keyringUser)
	return err == nil
}
