package retention

import (
	"math"
	"time"

	"github.com/nvrengine/engine/internal/database"
)

// TierMultipliers holds per-tier retention day multipliers, sourced from a
// stream's configuration.
type TierMultipliers struct {
	Critical  float64
	Important float64
	Standard  float64
	Ephemeral float64
}

// DefaultTierMultipliers matches the spec's defaults.
func DefaultTierMultipliers() TierMultipliers {
	return TierMultipliers{Critical: 3.0, Important: 2.0, Standard: 1.0, Ephemeral: 0.25}
}

func (m TierMultipliers) forTier(tier database.RetentionTier) float64 {
	switch tier {
	case database.TierCritical:
		return m.Critical
	case database.TierImportant:
		return m.Important
	case database.TierEphemeral:
		return m.Ephemeral
	default:
		return m.Standard
	}
}

// halved returns every multiplier halved, used to escalate under Emergency
// pressure.
func (m TierMultipliers) halved() TierMultipliers {
	return TierMultipliers{
		Critical:  m.Critical / 2,
		Important: m.Important / 2,
		Standard:  m.Standard / 2,
		Ephemeral: m.Ephemeral / 2,
	}
}

// EffectiveDays returns floor(baseDays * multiplier) for tier.
func (m TierMultipliers) EffectiveDays(baseDays int, tier database.RetentionTier) int {
	return int(math.Floor(float64(baseDays) * m.forTier(tier)))
}

// Cutoff returns the timestamp before which a row of the given tier is
// eligible for age-based deletion.
func (m TierMultipliers) Cutoff(now time.Time, baseDays int, tier database.RetentionTier) time.Time {
	effective := m.EffectiveDays(baseDays, tier)
	return now.Add(-time.Duration(effective) * 24 * time.Hour)
}
