/*
Package factory provides JSON and YAML to Go card conversion.

PURPOSE:
  Converts card definitions into presets.CardConfiguration values so new
  cards can be added without code changes: posted to the API as JSON, or
  shipped as a YAML catalog file the server seeds on startup.

JSON SCHEMA:
  {
    "id": "anz-rewards",
    "name": "ANZ Rewards",
    "tax_rate": "0",
    "thresholds": [
      {"id": "base",   "active_from": 0,      "multiplier": "1"},
      {"id": "Tier 2", "active_from": 100000, "multiplier": "0.5"}
    ]
  }

  active_from is in minor units (cents). multiplier and tax_rate accept
  JSON numbers or strings; strings keep exact decimals.

YAML CATALOG:
  cards:
    - id: arta
      name: ARTA Card
      tax_rate: 0
      thresholds:
        - {id: base, active_from: 0, multiplier: 1.5}
        - {id: Tier 2, active_from: 200000, multiplier: 0.5}

DEFAULTS:
  - missing id: derived from the name ("ANZ Rewards" -> "anz-rewards")
  - missing threshold id: "base" for the ActiveFrom=0 rung, a UUID otherwise
  - missing tax_rate: 0

  A ladder without an ActiveFrom=0 rung is rejected, never patched.

SEE ALSO:
  - presets/presets.go: CardConfiguration and the built-in cards
  - api/handlers.go: POST /api/cards
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/flagpoonage/points-viz/accrual"
	"github.com/flagpoonage/points-viz/presets"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// CardJSON is the wire representation of a card configuration.
type CardJSON struct {
	ID         string          `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string          `json:"name" yaml:"name"`
	TaxRate    decimal.Decimal `json:"tax_rate" yaml:"tax_rate"`
	Thresholds []ThresholdJSON `json:"thresholds" yaml:"thresholds"`
}

// ThresholdJSON is one ladder rung.
type ThresholdJSON struct {
	ID         string          `json:"id,omitempty" yaml:"id,omitempty"`
	ActiveFrom int64           `json:"active_from" yaml:"active_from"`
	Multiplier decimal.Decimal `json:"multiplier" yaml:"multiplier"`
}

// CatalogFile is the top-level YAML catalog document.
type CatalogFile struct {
	Cards []CardJSON `yaml:"cards"`
}

// =============================================================================
// CARD FACTORY
// =============================================================================

// CardFactory converts card definitions to presets.CardConfiguration.
type CardFactory struct{}

// NewCardFactory creates a new card factory.
func NewCardFactory() *CardFactory {
	return &CardFactory{}
}

// ParseCard parses a JSON string into a card configuration.
func (f *CardFactory) ParseCard(jsonStr string) (presets.CardConfiguration, error) {
	var cj CardJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return presets.CardConfiguration{}, fmt.Errorf("failed to parse card JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts a CardJSON, applying defaults and validating the ladder.
func (f *CardFactory) FromJSON(cj CardJSON) (presets.CardConfiguration, error) {
	if strings.TrimSpace(cj.Name) == "" {
		return presets.CardConfiguration{}, fmt.Errorf("card name is required")
	}
	if cj.TaxRate.IsNegative() {
		return presets.CardConfiguration{}, fmt.Errorf("card %q: tax_rate must not be negative", cj.Name)
	}

	card := presets.CardConfiguration{
		ID:      cj.ID,
		Name:    cj.Name,
		TaxRate: cj.TaxRate,
	}
	if card.ID == "" {
		card.ID = slug(cj.Name)
	}

	for _, tj := range cj.Thresholds {
		t := accrual.Threshold{ID: tj.ID, ActiveFrom: tj.ActiveFrom, Multiplier: tj.Multiplier}
		if t.ID == "" {
			if t.IsBase() {
				t.ID = accrual.BaseThresholdID
			} else {
				t.ID = uuid.NewString()
			}
		}
		card.Thresholds = append(card.Thresholds, t)
	}

	if err := card.Validate(); err != nil {
		return presets.CardConfiguration{}, fmt.Errorf("card %q: %w", cj.Name, err)
	}
	return card, nil
}

// ToJSON converts a card configuration back to its wire form.
func (f *CardFactory) ToJSON(card presets.CardConfiguration) CardJSON {
	cj := CardJSON{
		ID:         card.ID,
		Name:       card.Name,
		TaxRate:    card.TaxRate,
		Thresholds: make([]ThresholdJSON, 0, len(card.Thresholds)),
	}
	for _, t := range accrual.LowestFirst(card.Thresholds) {
		cj.Thresholds = append(cj.Thresholds, ThresholdJSON{
			ID:         t.ID,
			ActiveFrom: t.ActiveFrom,
			Multiplier: t.Multiplier,
		})
	}
	return cj
}

// MarshalCard renders a card as a JSON string.
func (f *CardFactory) MarshalCard(card presets.CardConfiguration) (string, error) {
	data, err := json.Marshal(f.ToJSON(card))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// =============================================================================
// YAML CATALOG
// =============================================================================

// ParseCatalog parses a YAML catalog document.
func (f *CardFactory) ParseCatalog(data []byte) ([]presets.CardConfiguration, error) {
	var doc CatalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing card catalog: %w", err)
	}
	if len(doc.Cards) == 0 {
		return nil, fmt.Errorf("card catalog has no cards defined")
	}

	cards := make([]presets.CardConfiguration, 0, len(doc.Cards))
	seen := make(map[string]bool, len(doc.Cards))
	for _, cj := range doc.Cards {
		card, err := f.FromJSON(cj)
		if err != nil {
			return nil, err
		}
		if seen[card.ID] {
			return nil, fmt.Errorf("card %q: duplicate id %q", card.Name, card.ID)
		}
		seen[card.ID] = true
		cards = append(cards, card)
	}
	return cards, nil
}

// LoadCatalog reads and parses a YAML catalog file.
func (f *CardFactory) LoadCatalog(path string) ([]presets.CardConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading card catalog %s: %w", path, err)
	}
	return f.ParseCatalog(data)
}

func slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
