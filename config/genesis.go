package config

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"
)

// GenesisListing is one marketplace listing applied at boot from the genesis
// manifest.
type GenesisListing struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	PriceMinor       string   `yaml:"priceMinor"`
	Keywords         []string `yaml:"keywords"`
	RoyaltyPercent   uint32   `yaml:"royaltyPercent"`
	RoyaltyRecipient string   `yaml:"royaltyRecipient"`
	MetadataPointer  string   `yaml:"metadataPointer"`
}

// GenesisManifest is the YAML document describing the initial marketplace
// inventory and the account that lists it.
type GenesisManifest struct {
	Owner    string           `yaml:"owner"`
	Listings []GenesisListing `yaml:"listings"`
}

// LoadGenesis parses the genesis listings manifest at the supplied path.
func LoadGenesis(path string) (*GenesisManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	manifest := new(GenesisManifest)
	if err := yaml.Unmarshal(raw, manifest); err != nil {
		return nil, fmt.Errorf("config: parse genesis manifest: %w", err)
	}
	for i, listing := range manifest.Listings {
		if _, ok := new(big.Int).SetString(listing.PriceMinor, 10); !ok {
			return nil, fmt.Errorf("config: genesis listing %d has invalid price %q", i, listing.PriceMinor)
		}
	}
	return manifest, nil
}

// Price returns the listing price as a big integer. LoadGenesis has already
// validated the encoding.
func (g GenesisListing) Price() *big.Int {
	price, _ := new(big.Int).SetString(g.PriceMinor, 10)
	return price
}
