package store

import (
	"context"

	"github.com/infinyte/mcp-server/internal/utils/crypto"
)

// Cipher is the encrypt-before-write / decrypt-after-read stage shared by the
// store adapters. Keeping it out of the persistence layer makes the
// encryption contract testable without a database.
type Cipher struct {
	resolver *crypto.KeyResolver
}

// NewCipher wraps the process-wide key resolver.
func NewCipher(resolver *crypto.KeyResolver) *Cipher {
	return &Cipher{resolver: resolver}
}

// EncryptValue encrypts plaintext under the installation key.
func (c *Cipher) EncryptValue(ctx context.Context, plaintext string) (string, error) {
	key, err := c.resolver.Key(ctx)
	if err != nil {
		return "", err
	}
	return crypto.EncryptString(key, plaintext)
}

// DecryptValue decrypts a stored "<ivHex>:<ciphertextHex>" value.
func (c *Cipher) DecryptValue(ctx context.Context, value string) (string, error) {
	key, err := c.resolver.Key(ctx)
	if err != nil {
		return "", err
	}
	return crypto.DecryptString(key, value)
}
