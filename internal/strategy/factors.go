package strategy

import (
	"math"

	"SetupScanner/internal/model"
)

// SubScoreCap bounds every quality component.
const SubScoreCap = 25

// Momentum strength points.
const (
	strongMomentumPoints = 25
	weakMomentumPoints   = 15
)

func capped(v float64) float64 {
	return math.Max(0, math.Min(SubScoreCap, v))
}

// scoreConsolidation rewards longer ranges: days * perBar, capped.
func scoreConsolidation(days int, perBar float64) float64 {
	return capped(float64(days) * perBar)
}

// scoreExtremity rewards a price position far from neutral in either
// direction.
func scoreExtremity(norm, scale float64) float64 {
	return capped(math.Abs(norm) * scale)
}

// scoreMomentum gives full points to the strong bands.
func scoreMomentum(s model.MomentumState) float64 {
	switch s {
	case model.StronglyNegative, model.StronglyPositive:
		return strongMomentumPoints
	case model.Negative, model.Positive:
		return weakMomentumPoints
	default:
		return 0
	}
}

// scoreVolume scores only the excess of the volume ratio above 1.
func scoreVolume(ratio, scale float64) float64 {
	if ratio <= 1 {
		return 0
	}
	return capped((ratio - 1) * scale)
}
