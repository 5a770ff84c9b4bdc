package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "bugfiler"

// KeyringPasswordEnv overrides the passphrase of the encrypted file
// backend. Without it the file is encrypted with a built-in key, which only
// obscures the password on disk.
const KeyringPasswordEnv = "BUGFILER_KEYRING_PASSWORD"

const defaultFileKey = "bugfiler-file-key"

func filePasswordPrompt() keyring.PromptFunc {
	if p := os.Getenv(KeyringPasswordEnv); p != "" {
		return keyring.FixedStringPrompt(p)
	}
	return keyring.FixedStringPrompt(defaultFileKey)
}

// OpenKeyring returns the OS keyring, falling back to an encrypted file
// under fileDir when no native backend is available.
func OpenKeyring(fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         filePasswordPrompt(),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringStore keeps the password in a keyring and every other key in the
// wrapped Store.
type KeyringStore struct {
	base   Store
	ring   keyring.Keyring
	logger *slog.Logger
}

// NewKeyringStore wraps base, routing the password key to ring. A nil
// logger means slog.Default().
func NewKeyringStore(base Store, ring keyring.Keyring, logger *slog.Logger) *KeyringStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyringStore{base: base, ring: ring, logger: logger}
}

// GetString implements Store.
func (s *KeyringStore) GetString(key, def string) string {
	if key != KeyPassword {
		return s.base.GetString(key, def)
	}
	item, err := s.ring.Get(key)
	if err != nil {
		if !errors.Is(err, keyring.ErrKeyNotFound) {
			// A locked or unreachable keyring reads as unset; say why.
			s.logger.Warn("read credential from keyring", "key", key, "error", err)
		}
		return def
	}
	return string(item.Data)
}

// SetString implements Store.
func (s *KeyringStore) SetString(key, value string) error {
	if key != KeyPassword {
		return s.base.SetString(key, value)
	}
	if value == "" {
		if err := s.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("deleting credential %q: %w", key, err)
		}
		return nil
	}
	if err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "bugfiler JIRA password",
	}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}
