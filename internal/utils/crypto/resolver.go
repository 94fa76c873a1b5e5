package crypto

import (
	"context"
	"errors"
	"sync"
)

// KeyStore is the minimal persistence surface the resolver needs: raw
// (unencrypted) access to the system encryption key row.
type KeyStore interface {
	LoadKey(ctx context.Context) (value string, found bool, err error)
	SaveKey(ctx context.Context, value string) error
}

// KeyResolver resolves the installation encryption key on first use and
// caches it for the rest of the process. Resolution order: explicit
// environment-supplied key, then the key previously persisted in the
// configuration collection, then a freshly generated key which is persisted
// for subsequent runs. The mutex makes resolution single-flight, so two
// racing requests can never mint two different keys; a failed resolution is
// not cached and the next caller retries.
type KeyResolver struct {
	envKey string

	mu     sync.Mutex
	source KeyStore
	key    string
}

// NewKeyResolver builds a resolver seeded with the optional environment key.
// SetSource must be called before the first Key() invocation when no
// environment key is supplied.
func NewKeyResolver(envKey string) *KeyResolver {
	return &KeyResolver{envKey: envKey}
}

// SetSource attaches the configuration-backed key store.
func (r *KeyResolver) SetSource(source KeyStore) {
	r.mu.Lock()
	r.source = source
	r.mu.Unlock()
}

// Key returns the resolved encryption key, performing resolution on first
// use. A transient store failure surfaces as an error and resolution is
// retried on the next call.
func (r *KeyResolver) Key(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.key != "" {
		return r.key, nil
	}
	key, err := r.resolve(ctx)
	if err != nil {
		return "", err
	}
	r.key = key
	return key, nil
}

// resolve runs with r.mu held.
func (r *KeyResolver) resolve(ctx context.Context) (string, error) {
	if r.envKey != "" {
		return r.envKey, nil
	}

	source := r.source
	if source == nil {
		return "", errors.New("no encryption key in environment and no key store configured")
	}

	value, found, err := source.LoadKey(ctx)
	if err != nil {
		return "", err
	}
	if found && value != "" {
		return value, nil
	}

	generated, err := GenerateKey()
	if err != nil {
		return "", err
	}
	if err := source.SaveKey(ctx, generated); err != nil {
		return "", err
	}
	return generated, nil
}
