package ledger

import (
	"fmt"
	"os"
	"strings"

	"github.com/stellar/go/network"
	"gopkg.in/yaml.v3"
)

// Network describes a ledger endpoint.
type Network struct {
	HorizonURL   string `yaml:"horizon_url"`
	Passphrase   string `yaml:"passphrase"`
	FriendbotURL string `yaml:"friendbot_url"`
	Description  string `yaml:"description"`
}

// NetworkDefinitions models the networks YAML file.
type NetworkDefinitions struct {
	Networks map[string]Network `yaml:"networks"`
}

// BuiltinNetworks returns the public Stellar networks.
func BuiltinNetworks() map[string]Network {
	return map[string]Network{
		"testnet": {
			HorizonURL:   "https://horizon-testnet.stellar.org",
			Passphrase:   network.TestNetworkPassphrase,
			FriendbotURL: "https://friendbot.stellar.org",
			Description:  "Stellar test network",
		},
		"public": {
			HorizonURL:  "https://horizon.stellar.org",
			Passphrase:  network.PublicNetworkPassphrase,
			Description: "Stellar public network",
		},
	}
}

// LoadNetworkDefinitions parses the YAML file containing extra networks.
// An empty path yields no definitions.
func LoadNetworkDefinitions(path string) (NetworkDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return NetworkDefinitions{Networks: map[string]Network{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return NetworkDefinitions{}, fmt.Errorf("read network definitions: %w", err)
	}

	var defs NetworkDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return NetworkDefinitions{}, fmt.Errorf("parse network definitions: %w", err)
	}
	if defs.Networks == nil {
		defs.Networks = map[string]Network{}
	}
	for name, n := range defs.Networks {
		if n.HorizonURL == "" || n.Passphrase == "" {
			return NetworkDefinitions{}, fmt.Errorf("network %s needs horizon_url and passphrase", name)
		}
	}
	return defs, nil
}
