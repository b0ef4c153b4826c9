package store

import (
	"crypto/rand"
	"fmt"

	"gitlab.com/elixxir/ekv"
)

const (
	credAccountKey     = "account"
	credDatabaseKeyKey = "database_key"
	databaseKeySize    = 32
)

// Credentials is the encrypted login-credentials store: account identity
// and the backend database encryption key.
type Credentials struct {
	kv ekv.KeyValue
}

// OpenCredentials opens (or creates) an encrypted store in dir.
func OpenCredentials(dir, passphrase string) (*Credentials, error) {
	fs, err := ekv.NewFilestore(dir, passphrase)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	return &Credentials{kv: fs}, nil
}

// NewCredentials wraps an existing key/value store.
func NewCredentials(kv ekv.KeyValue) *Credentials {
	return &Credentials{kv: kv}
}

// Account returns the stored account identity; ok is false if none.
func (c *Credentials) Account() (account string, ok bool, err error) {
	raw, err := c.kv.GetBytes(credAccountKey)
	if err != nil {
		if !ekv.Exists(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read account: %w", err)
	}
	return string(raw), true, nil
}

// SetAccount stores the account identity.
func (c *Credentials) SetAccount(account string) error {
	return c.kv.SetBytes(credAccountKey, []byte(account))
}

// DatabaseKey returns the backend database key, generating it on first use.
func (c *Credentials) DatabaseKey() ([]byte, error) {
	key, err := c.kv.GetBytes(credDatabaseKeyKey)
	if err == nil {
		return key, nil
	}
	if ekv.Exists(err) {
		return nil, fmt.Errorf("read database key: %w", err)
	}
	key = make([]byte, databaseKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate database key: %w", err)
	}
	if err := c.kv.SetBytes(credDatabaseKeyKey, key); err != nil {
		return nil, fmt.Errorf("store database key: %w", err)
	}
	return key, nil
}

// Clear forgets the account identity. The database key survives so the
// backend database stays readable for the next login.
func (c *Credentials) Clear() error {
	if err := c.kv.Delete(credAccountKey); err != nil && ekv.Exists(err) {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
