package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecryptionError indicates ciphertext that is malformed or was encrypted
// under a different key. Callers must treat a failed decrypt as "value
// unavailable", never as the ciphertext itself.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decryption failed: %s", e.Reason)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// IsDecryptionError reports whether err is a DecryptionError.
func IsDecryptionError(err error) bool {
	var de *DecryptionError
	return errors.As(err, &de)
}

// deriveKey hashes the passphrase-like key string down to a 32-byte AES key.
func deriveKey(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

// EncryptString encrypts plaintext with AES-256-CBC and returns
// "<ivHex>:<ciphertextHex>". The stored-data format intentionally carries no
// authentication tag: tampering is not detected. This mirrors the existing
// on-disk format and must not be upgraded without a data migration.
func EncryptString(key, plaintext string) (string, error) {
	if key == "" {
		return "", errors.New("encryption key cannot be empty")
	}

	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptString reverses EncryptString. It returns a DecryptionError when the
// ciphertext format is malformed or the key does not match.
func DecryptString(key, value string) (string, error) {
	if key == "" {
		return "", errors.New("encryption key cannot be empty")
	}

	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return "", &DecryptionError{Reason: "ciphertext is not in iv:ciphertext format"}
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", &DecryptionError{Reason: "invalid iv hex", Err: err}
	}
	if len(iv) != aes.BlockSize {
		return "", &DecryptionError{Reason: fmt.Sprintf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))}
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", &DecryptionError{Reason: "invalid ciphertext hex", Err: err}
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", &DecryptionError{Reason: "ciphertext length is not a multiple of the block size"}
	}

	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", &DecryptionError{Reason: "invalid padding (wrong key or corrupted data)", Err: err}
	}

	return string(unpadded), nil
}

// GenerateKey returns a fresh random 32-byte key, hex encoded.
func GenerateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
