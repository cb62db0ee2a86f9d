package model

import (
	"fmt"
	"time"
)

// MomentumState is the four-way force index classification. The zero value
// means the bar was not classified (indicator not yet defined).
type MomentumState int

const (
	MomentumUnset MomentumState = iota
	StronglyNegative
	Negative
	Positive
	StronglyPositive
)

// MomentumStates lists every classified state in ascending order.
var MomentumStates = []MomentumState{StronglyNegative, Negative, Positive, StronglyPositive}

func (m MomentumState) String() string {
	switch m {
	case StronglyNegative:
		return "strongly_negative"
	case Negative:
		return "negative"
	case Positive:
		return "positive"
	case StronglyPositive:
		return "strongly_positive"
	default:
		return "unset"
	}
}

// Strong reports whether the state is one of the two strong bands.
func (m MomentumState) Strong() bool {
	return m == StronglyNegative || m == StronglyPositive
}

// ParseMomentumState maps a config name to a state.
func ParseMomentumState(name string) (MomentumState, error) {
	for _, s := range MomentumStates {
		if s.String() == name {
			return s, nil
		}
	}
	return MomentumUnset, fmt.Errorf("unknown momentum state %q", name)
}

// FaderState is the direction of the fader versus its previous value.
type FaderState int

const (
	FaderUnset FaderState = iota
	Rising
	Falling
)

func (f FaderState) String() string {
	switch f {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return "unset"
	}
}

// ParseFaderState maps a config name to a state.
func ParseFaderState(name string) (FaderState, error) {
	switch name {
	case "rising":
		return Rising, nil
	case "falling":
		return Falling, nil
	}
	return FaderUnset, fmt.Errorf("unknown fader state %q", name)
}

// PriceZone is where close sits inside its dollar bucket.
type PriceZone int

const (
	ZoneUnset PriceZone = iota
	ZoneBuy
	ZoneNeutral
	ZoneSell
)

func (z PriceZone) String() string {
	switch z {
	case ZoneBuy:
		return "buy"
	case ZoneNeutral:
		return "neutral"
	case ZoneSell:
		return "sell"
	default:
		return "unset"
	}
}

// ParsePriceZone maps a config name to a zone.
func ParsePriceZone(name string) (PriceZone, error) {
	for _, z := range []PriceZone{ZoneBuy, ZoneNeutral, ZoneSell} {
		if z.String() == name {
			return z, nil
		}
	}
	return ZoneUnset, fmt.Errorf("unknown price zone %q", name)
}

// ConsolidationRange is the tightest qualifying window ending at EndIndex.
type ConsolidationRange struct {
	StartIndex int
	EndIndex   int
	High       float64
	Low        float64
	TouchRatio float64
}

// Duration is the window length in bars.
func (r ConsolidationRange) Duration() int { return r.EndIndex - r.StartIndex + 1 }

// WidthPct is the range height relative to its low, in percent.
func (r ConsolidationRange) WidthPct() float64 {
	if r.Low == 0 {
		return 0
	}
	return (r.High - r.Low) / r.Low * 100
}

// Position returns where price sits inside the range (0-100). A flat range
// reports 50.
func (r ConsolidationRange) Position(price float64) float64 {
	if r.High == r.Low {
		return 50
	}
	return (price - r.Low) / (r.High - r.Low) * 100
}

// CriterionCheck is the outcome of one active criterion on one bar.
type CriterionCheck struct {
	Name   string
	Passed bool
	Detail string
}

// SubScores holds the capped quality components. Components of inactive
// criteria stay nil.
type SubScores struct {
	Consolidation *float64
	Extremity     *float64
	Momentum      *float64
	Volume        *float64
}

// Total sums the present components.
func (s SubScores) Total() float64 {
	total := 0.0
	for _, v := range []*float64{s.Consolidation, s.Extremity, s.Momentum, s.Volume} {
		if v != nil {
			total += *v
		}
	}
	return total
}

// SetupRecord is the evaluation of one bar. It is never mutated after the
// evaluator returns it.
type SetupRecord struct {
	Symbol          string
	Index           int
	Time            time.Time
	Close           float64
	Passed          bool
	Checks          []CriterionCheck
	Score           float64
	SubScores       SubScores
	Range           *ConsolidationRange
	PositionInRange float64
	Momentum        MomentumState
	ForceIndex      float64
	NormPrice       float64
	Fader           FaderState
	VolumeRatio     float64
	Zone            PriceZone
	ZonePosition    float64 // 0-100 within the dollar bucket
}

// Check returns the named criterion outcome, if it was active.
func (r *SetupRecord) Check(name string) (CriterionCheck, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CriterionCheck{}, false
}
