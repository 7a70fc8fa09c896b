package vault

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "vault/identity/"

// BadgerBackend stores vault entries in an encrypted badger database.
type BadgerBackend struct {
	db *badger.DB
}

// BadgerOptions configures OpenBadger.
type BadgerOptions struct {
	Path string
	// EncryptionKey must be 32 bytes.
	EncryptionKey []byte
}

// OpenBadger opens (or creates) the vault database.
func OpenBadger(opts BadgerOptions) (*BadgerBackend, error) {
	if len(opts.EncryptionKey) != 32 {
		return nil, fmt.Errorf("vault encryption key must be 32 bytes, got %d", len(opts.EncryptionKey))
	}
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("vault path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithEncryptionKey(opts.EncryptionKey).
		WithIndexCacheSize(16 << 20)
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open vault database: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

// Load reads every stored entry.
func (b *BadgerBackend) Load() (map[string]string, error) {
	out := make(map[string]string)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			identity := strings.TrimPrefix(string(item.Key()), badgerPrefix)
			if err := item.Value(func(val []byte) error {
				out[identity] = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put writes one entry.
func (b *BadgerBackend) Put(identity, credential string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerPrefix+identity), []byte(credential))
	})
}

// Close closes the database.
func (b *BadgerBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// ParseKey decodes a 32 byte key given as hex (optionally 0x prefixed) or
// standard base64.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("vault encryption key is empty")
	}
	if b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("key must be hex or base64 encoded 32 bytes")
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
	}
	return b, nil
}
