/*
Package presets provides card configurations: a named tier ladder plus the
tax rate the card applies to tax-only movements.

PURPOSE:
  A card preset is static configuration data. Applying one to a session
  replaces its ladder and tax rate; the event log is left alone so the same
  spending history can be compared across cards.

AVAILABLE PRESETS:
  ARTA Card             1.5x, 0.5x from $2,000        no tax points
  ANZ Business Black    1.5x, 1x from $10,000         tax at 0.5
  ANZ Business Rewards  1x flat                       tax at 0.5
  ANZ Rewards           1x, 0.5x from $1,000          no tax points
  ANZ Rewards Black     2x, 1x from $5,000            no tax points
  ANZ Rewards Platinum  1.5x, 0.5x from $2,000        no tax points
  Custom                1x base only                  no tax points

  Breakpoints are minor units (cents): $2,000 = 200000.

EXAMPLE:
  card, _ := presets.Builtin(presets.ANZRewardsID)
  card.ApplyTo(session)

SEE ALSO:
  - catalog.go: Catalog interface and in-memory implementation
  - factory/card.go: JSON and YAML card definitions
  - store/sqlite: persistent Catalog
*/
package presets

import (
	"github.com/shopspring/decimal"

	"github.com/flagpoonage/points-viz/accrual"
)

// TierTwoID is the id the built-in cards give their second rung.
const TierTwoID = "Tier 2"

// Preset ids.
const (
	ARTAID               = "arta"
	ANZBusinessBlackID   = "anz-business-black"
	ANZBusinessRewardsID = "anz-business-rewards"
	ANZRewardsID         = "anz-rewards"
	ANZRewardsBlackID    = "anz-rewards-black"
	ANZRewardsPlatinumID = "anz-rewards-platinum"
	CustomID             = "custom"
)

// CardConfiguration is a named ladder and tax rate.
type CardConfiguration struct {
	ID         string
	Name       string
	TaxRate    decimal.Decimal
	Thresholds []accrual.Threshold
}

// Validate checks the ladder could be segmented against.
func (c CardConfiguration) Validate() error {
	return accrual.ValidateLadder(c.Thresholds)
}

// ApplyTo replaces the session's ladder and tax rate with the card's.
func (c CardConfiguration) ApplyTo(s *accrual.Session) {
	ts := make([]accrual.Threshold, len(c.Thresholds))
	copy(ts, c.Thresholds)
	s.ApplyLadder(ts, c.TaxRate)
}

// =============================================================================
// BUILT-IN CARDS
// =============================================================================

func twoTier(id, name, tax, base string, from int64, upper string) CardConfiguration {
	return CardConfiguration{
		ID:      id,
		Name:    name,
		TaxRate: decimal.RequireFromString(tax),
		Thresholds: []accrual.Threshold{
			{ID: accrual.BaseThresholdID, ActiveFrom: 0, Multiplier: decimal.RequireFromString(base)},
			{ID: TierTwoID, ActiveFrom: from, Multiplier: decimal.RequireFromString(upper)},
		},
	}
}

func flat(id, name, tax, base string) CardConfiguration {
	return CardConfiguration{
		ID:      id,
		Name:    name,
		TaxRate: decimal.RequireFromString(tax),
		Thresholds: []accrual.Threshold{
			{ID: accrual.BaseThresholdID, ActiveFrom: 0, Multiplier: decimal.RequireFromString(base)},
		},
	}
}

// Builtins returns the shipped card presets in display order.
func Builtins() []CardConfiguration {
	return []CardConfiguration{
		twoTier(ARTAID, "ARTA Card", "0", "1.5", 200000, "0.5"),
		twoTier(ANZBusinessBlackID, "ANZ Business Black", "0.5", "1.5", 1000000, "1"),
		flat(ANZBusinessRewardsID, "ANZ Business Rewards", "0.5", "1"),
		twoTier(ANZRewardsID, "ANZ Rewards", "0", "1", 100000, "0.5"),
		twoTier(ANZRewardsBlackID, "ANZ Rewards Black", "0", "2", 500000, "1"),
		twoTier(ANZRewardsPlatinumID, "ANZ Rewards Platinum", "0", "1.5", 200000, "0.5"),
		flat(CustomID, "Custom", "0", "1"),
	}
}

// Builtin returns the shipped preset with the given id.
func Builtin(id string) (CardConfiguration, bool) {
	for _, c := range Builtins() {
		if c.ID == id {
			return c, true
		}
	}
	return CardConfiguration{}, false
}
