package calculator

import (
	"math"

	"SetupScanner/internal/model"
)

// DollarBucket returns the price bucket containing price: $1 wide below
// $10, $10 wide from $10 up.
func DollarBucket(price float64) (floor, ceiling float64, ok bool) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, 0, false
	}
	if price < 10 {
		floor = math.Floor(price)
		return floor, floor + 1, true
	}
	floor = math.Floor(price/10) * 10
	return floor, floor + 10, true
}

// ZonePosition is where price sits inside its dollar bucket, 0-100.
func ZonePosition(price float64) (float64, bool) {
	lo, hi, ok := DollarBucket(price)
	if !ok {
		return 0, false
	}
	return (price - lo) / (hi - lo) * 100, true
}

// ClassifyZone maps a bucket position to buy (<= buyMax), sell (>= sellMin)
// or neutral.
func ClassifyZone(pos, buyMax, sellMin float64) model.PriceZone {
	switch {
	case pos <= buyMax:
		return model.ZoneBuy
	case pos >= sellMin:
		return model.ZoneSell
	default:
		return model.ZoneNeutral
	}
}
