package state

import (
	"context"

	"github.com/infinyte/mcp-server/internal/domain/configuration"
	"github.com/infinyte/mcp-server/internal/domain/store"
)

// StoreKeySource adapts a record store into the key resolver's persistence
// hook. The encryption key row is read and written raw: encrypting it with
// itself would make it unrecoverable.
type StoreKeySource struct {
	store store.Store
}

// NewStoreKeySource wraps the store used for key persistence.
func NewStoreKeySource(s store.Store) *StoreKeySource {
	return &StoreKeySource{store: s}
}

// LoadKey returns the persisted installation key, if any.
func (k *StoreKeySource) LoadKey(ctx context.Context) (string, bool, error) {
	return k.store.GetConfiguration(ctx, configuration.SystemEncryptionKey, false)
}

// SaveKey persists a freshly generated installation key.
func (k *StoreKeySource) SaveKey(ctx context.Context, key string) error {
	_, err := k.store.UpdateConfiguration(ctx, configuration.SystemEncryptionKey, key, false, store.ConfigUpdate{
		Category:    configuration.CategoryServer,
		Description: "Installation encryption key",
	})
	return err
}
