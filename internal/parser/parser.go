package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// bankNames are the human-readable institution names.
var bankNames = map[models.BankType]string{
	models.BankGeneric:   "Generic",
	models.BankBBVA:      "BBVA Mexico",
	models.BankBanorte:   "Banorte",
	models.BankSantander: "Santander Mexico",
	models.BankBanamex:   "Citibanamex",
}

// bankIdentifiers are header strings that identify an institution.
var bankIdentifiers = map[models.BankType][]string{
	models.BankBBVA:      {"BBVA", "BANCOMER"},
	models.BankBanorte:   {"BANORTE"},
	models.BankSantander: {"SANTANDER"},
	models.BankBanamex:   {"CITIBANAMEX", "BANAMEX"},
}

// BankName returns the human-readable name for bank.
func BankName(bank models.BankType) string {
	if name, ok := bankNames[bank]; ok {
		return name
	}
	return string(bank)
}

// SupportedBanks lists every institution with a built-in profile, generic
// first.
func SupportedBanks() []models.BankType {
	banks := make([]models.BankType, 0, len(profileConfigs))
	for b := range profileConfigs {
		if b != models.BankGeneric {
			banks = append(banks, b)
		}
	}
	sort.Slice(banks, func(i, j int) bool { return banks[i] < banks[j] })
	return append([]models.BankType{models.BankGeneric}, banks...)
}

// ParseBankType validates a user-supplied institution name. An empty string
// maps to "" so callers can fall through to AutoDetect.
func ParseBankType(s string) (models.BankType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "auto" {
		return "", nil
	}
	bank := models.BankType(s)
	if _, ok := profileConfigs[bank]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownInstitution, s)
	}
	return bank, nil
}

// ProfileFor returns the default configuration with the built-in
// adjustments for bank applied. Unknown banks get the generic profile.
func ProfileFor(bank models.BankType) Config {
	return DefaultConfig().Merge(profileConfigs[bank])
}

// New returns an extractor for the built-in profile of bank.
func New(bank models.BankType, opts ...Option) (*Extractor, error) {
	if _, ok := profileConfigs[bank]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstitution, bank)
	}
	opts = append([]Option{WithBank(bank)}, opts...)
	return NewExtractor(ProfileFor(bank), opts...)
}

// AutoDetect identifies the institution from the statement text. When
// several institutions are mentioned (transfers name the counterparty's
// bank) the one appearing first wins, since the header comes first.
func AutoDetect(text string) (models.BankType, error) {
	upper := strings.ToUpper(text)

	best, bestAt := models.BankType(""), -1
	for bank, ids := range bankIdentifiers {
		for _, id := range ids {
			at := strings.Index(upper, id)
			if at < 0 {
				continue
			}
			if bestAt < 0 || at < bestAt || (at == bestAt && bank < best) {
				best, bestAt = bank, at
			}
		}
	}
	if bestAt < 0 {
		return "", fmt.Errorf("%w: no institution identifier in statement text", ErrUnknownInstitution)
	}
	return best, nil
}

// Extract runs the generic profile over text.
func Extract(text string, exp Expectation) (*models.ExtractionResult, error) {
	e, err := New(models.BankGeneric)
	if err != nil {
		return nil, err
	}
	return e.Extract(text, exp)
}
