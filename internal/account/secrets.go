package account

import (
	"fmt"

	"github.com/99designs/keyring"
)

const keyringService = "iwomail"

// PasswordRef returns the keyring key under which an account's password is
// stored.
func PasswordRef(accountID string) string { return accountID + "/password" }

// CertPassphraseRef returns the keyring key for an account's client
// certificate passphrase.
func CertPassphraseRef(accountID string) string { return accountID + "/cert-passphrase" }

// AccessTokenRef returns the keyring key for an account's OAuth bearer
// token.
func AccessTokenRef(accountID string) string { return accountID + "/access-token" }

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/iwomail/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("iwomail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Secret retrieves a secret by reference from the system keyring.
func Secret(ref string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(ref)
	if err != nil {
		return "", fmt.Errorf("getting secret %q: %w", ref, err)
	}
	return string(item.Data), nil
}

// SetSecret stores a secret by reference in the system keyring.
func SetSecret(ref, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Set(keyring.Item{Key: ref, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting secret %q: %w", ref, err)
	}
	return nil
}

// DeleteSecret removes a secret by reference from the system keyring.
func DeleteSecret(ref string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(ref); err != nil {
		return fmt.Errorf("deleting secret %q: %w", ref, err)
	}
	return nil
}
