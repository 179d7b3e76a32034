package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/parser"
)

// Profiles holds the extractor configuration for each institution.
type Profiles map[models.BankType]parser.Config

type profilesFile struct {
	Profiles map[string]parser.Config `yaml:"profiles"`
}

// BuiltinProfiles returns the built-in configuration of every supported
// institution.
func BuiltinProfiles() Profiles {
	p := make(Profiles)
	for _, bank := range parser.SupportedBanks() {
		p[bank] = parser.ProfileFor(bank)
	}
	return p
}

// LoadProfiles reads institution overrides from a YAML file and merges each
// onto the built-in profile. An empty path returns the built-ins. Every
// resulting profile is checked by building an extractor from it.
func LoadProfiles(path string) (Profiles, error) {
	profiles := BuiltinProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles %s: %w", path, err)
	}

	for name, override := range file.Profiles {
		bank, err := parser.ParseBankType(name)
		if err != nil {
			return nil, fmt.Errorf("profiles %s: %w", path, err)
		}
		if bank == "" {
			return nil, fmt.Errorf("profiles %s: %q is not an institution", path, name)
		}
		cfg := profiles[bank].Merge(override)
		if _, err := parser.NewExtractor(cfg); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		profiles[bank] = cfg
	}
	return profiles, nil
}

// For returns the configuration of bank, falling back to generic.
func (p Profiles) For(bank models.BankType) parser.Config {
	if cfg, ok := p[bank]; ok {
		return cfg
	}
	if cfg, ok := p[models.BankGeneric]; ok {
		return cfg
	}
	return parser.DefaultConfig()
}
