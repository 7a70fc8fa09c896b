// Package provider builds ledger transports for the configured networks.
package provider

import (
	"errors"
	"fmt"
	"sort"

	"OpenMCP-Stellar/internal/config"
	"OpenMCP-Stellar/internal/ledger"
	"OpenMCP-Stellar/internal/ledger/horizon"
	"OpenMCP-Stellar/internal/ledger/txcodec"
)

// Network bundles the collaborators for one ledger network.
type Network struct {
	Name       string
	Definition ledger.Network
	Client     ledger.Client
	Codec      ledger.Codec
	// Faucet is nil on networks without friendbot.
	Faucet ledger.Faucet
}

// Registry manages the known networks keyed by name.
type Registry struct {
	defaultNetwork string
	networks       map[string]*Network
}

// NewRegistry merges built-in and file defined networks, applies overrides
// from cfg to the selected network and builds a transport for each.
func NewRegistry(cfg config.NetworkConfig, trading config.TradingConfig) (*Registry, error) {
	defs, err := ledger.LoadNetworkDefinitions(cfg.DefinitionsFile)
	if err != nil {
		return nil, err
	}
	all := ledger.BuiltinNetworks()
	for name, def := range defs.Networks {
		all[name] = def
	}

	selected, ok := all[cfg.Name]
	if !ok {
		if cfg.HorizonURL == "" || cfg.Passphrase == "" {
			return nil, fmt.Errorf("network %s is not defined and has no horizon_url or passphrase", cfg.Name)
		}
	}
	if cfg.HorizonURL != "" {
		selected.HorizonURL = cfg.HorizonURL
	}
	if cfg.Passphrase != "" {
		selected.Passphrase = cfg.Passphrase
	}
	if cfg.FriendbotURL != "" {
		selected.FriendbotURL = cfg.FriendbotURL
	}
	all[cfg.Name] = selected

	networks := make(map[string]*Network, len(all))
	for name, def := range all {
		n := &Network{
			Name:       name,
			Definition: def,
			Client:     horizon.NewClient(horizon.Config{URL: def.HorizonURL, Timeout: cfg.Timeout()}),
			Codec: txcodec.New(txcodec.Config{
				Passphrase:     def.Passphrase,
				BaseFee:        trading.BaseFee,
				TimeoutSeconds: trading.TimeBoundsSeconds,
			}),
		}
		if def.FriendbotURL != "" {
			n.Faucet = horizon.NewFriendbot(def.FriendbotURL, cfg.Timeout())
		}
		networks[name] = n
	}
	return &Registry{defaultNetwork: cfg.Name, networks: networks}, nil
}

// Default returns the selected network.
func (r *Registry) Default() (*Network, error) {
	if r == nil {
		return nil, errors.New("network registry is not initialised")
	}
	n, ok := r.networks[r.defaultNetwork]
	if !ok {
		return nil, fmt.Errorf("default network %s is not registered", r.defaultNetwork)
	}
	return n, nil
}

// Network returns the network identified by name.
func (r *Registry) Network(name string) (*Network, bool) {
	if r == nil {
		return nil, false
	}
	n, ok := r.networks[name]
	return n, ok
}

// Names returns the registered network names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.networks))
	for name := range r.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
