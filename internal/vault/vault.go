// Package vault holds ledger signing credentials keyed by the public identity
// they derive.
package vault

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/stellar/go/keypair"

	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/pkg/logger"
)

// Backend persists vault entries. Put must be durable before it returns.
type Backend interface {
	Load() (map[string]string, error)
	Put(identity, credential string) error
	Close() error
}

// Vault is safe for concurrent use. Reads share a lock; writes are exclusive.
type Vault struct {
	mu      sync.RWMutex
	keys    map[string]string
	backend Backend
	log     *slog.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithBackend enables write-through persistence.
func WithBackend(b Backend) Option {
	return func(v *Vault) { v.backend = b }
}

// New creates a vault, loading existing entries from the backend if any.
func New(opts ...Option) (*Vault, error) {
	v := &Vault{keys: make(map[string]string), log: logger.Named("vault")}
	for _, opt := range opts {
		opt(v)
	}
	if v.backend == nil {
		return v, nil
	}
	stored, err := v.backend.Load()
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageFailure, err, "load vault")
	}
	for identity, credential := range stored {
		derived, err := Derive(credential)
		if err != nil || derived != identity {
			v.log.Warn("skipping inconsistent vault entry", "identity", identity)
			continue
		}
		v.keys[identity] = credential
	}
	v.log.Info("vault loaded", "identities", len(v.keys))
	return v, nil
}

// Derive returns the identity for a credential.
func Derive(credential string) (string, error) {
	kp, err := keypair.ParseFull(strings.TrimSpace(credential))
	if err != nil {
		return "", errors.Wrap(errors.CodeInvalidCredential, err, "malformed secret seed")
	}
	return kp.Address(), nil
}

// Store records credential under identity, replacing any earlier entry. The
// identity must be the one the credential derives.
func (v *Vault) Store(identity, credential string) error {
	credential = strings.TrimSpace(credential)
	derived, err := Derive(credential)
	if err != nil {
		return err
	}
	if derived != identity {
		return errors.New(errors.CodeInvalidCredential, "credential does not derive the given identity",
			errors.WithMetadata("identity", identity))
	}
	return v.put(identity, credential)
}

func (v *Vault) put(identity, credential string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend != nil {
		if err := v.backend.Put(identity, credential); err != nil {
			return errors.Wrap(errors.CodeStorageFailure, err, "persist vault entry")
		}
	}
	v.keys[identity] = credential
	return nil
}

// Get returns the credential for identity.
func (v *Vault) Get(identity string) (string, error) {
	v.mu.RLock()
	credential, ok := v.keys[identity]
	v.mu.RUnlock()
	if !ok {
		return "", errors.New(errors.CodeUnknownIdentity, "", errors.WithMetadata("identity", identity))
	}
	return credential, nil
}

// Contains reports whether identity is held.
func (v *Vault) Contains(identity string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.keys[identity]
	return ok
}

// List returns every held identity in lexical order.
func (v *Vault) List() []string {
	v.mu.RLock()
	out := make([]string, 0, len(v.keys))
	for identity := range v.keys {
		out = append(out, identity)
	}
	v.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Export returns the credential and writes an audit record.
func (v *Vault) Export(identity string) (string, error) {
	credential, err := v.Get(identity)
	if err != nil {
		logger.Audit().Warn("vault_export_denied", "identity", identity)
		return "", err
	}
	logger.Audit().Info("vault_export", "identity", identity)
	return credential, nil
}

// Import derives the identity of credential and stores it. Importing the same
// credential twice keeps a single entry.
func (v *Vault) Import(credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	identity, err := Derive(credential)
	if err != nil {
		return "", err
	}
	if err := v.put(identity, credential); err != nil {
		return "", err
	}
	logger.Audit().Info("vault_import", "identity", identity)
	return identity, nil
}

// Create generates a fresh keypair and stores it.
func (v *Vault) Create() (string, error) {
	kp, err := keypair.Random()
	if err != nil {
		return "", errors.Wrap(errors.CodeUnknown, err, "generate keypair")
	}
	if err := v.put(kp.Address(), kp.Seed()); err != nil {
		return "", err
	}
	logger.Audit().Info("vault_create", "identity", kp.Address())
	return kp.Address(), nil
}

// Close releases the backend.
func (v *Vault) Close() error {
	if v.backend == nil {
		return nil
	}
	return v.backend.Close()
}
