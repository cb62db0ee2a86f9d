package calculator

import (
	"fmt"

	"SetupScanner/internal/model"
)

// ConsolidationParams bounds the trailing-window search.
type ConsolidationParams struct {
	MinWindow      int
	MaxWindow      int
	Step           int
	MaxWidth       float64 // (H-L)/L must stay below this
	TouchRatio     float64 // fraction of bars that must touch a boundary
	TouchTolerance float64 // touch band as a fraction of H-L
}

// FindConsolidation searches windows ending at idx from the longest allowed
// length down to MinWindow and returns the first one that is both narrow and
// well-touched. Windows are MinWindow + k*Step bars long.
func FindConsolidation(high, low []float64, idx int, p ConsolidationParams) (model.ConsolidationRange, error) {
	if idx < 0 || idx >= len(high) || len(low) != len(high) {
		return model.ConsolidationRange{}, fmt.Errorf("consolidation at %d: %w", idx, model.ErrInsufficientData)
	}
	maxW := p.MaxWindow
	if maxW > idx+1 {
		maxW = idx + 1
	}
	if maxW < p.MinWindow {
		return model.ConsolidationRange{}, fmt.Errorf("consolidation at %d: %w", idx, model.ErrInsufficientData)
	}
	step := p.Step
	if step <= 0 {
		step = 1
	}

	// suffix extremes: hi[k], lo[k] cover bars idx-k..idx
	hi := make([]float64, maxW)
	lo := make([]float64, maxW)
	hi[0], lo[0] = high[idx], low[idx]
	for k := 1; k < maxW; k++ {
		hi[k] = max(hi[k-1], high[idx-k])
		lo[k] = min(lo[k-1], low[idx-k])
	}

	w := p.MinWindow + (maxW-p.MinWindow)/step*step
	for ; w >= p.MinWindow; w -= step {
		h, l := hi[w-1], lo[w-1]
		if l <= 0 || (h-l)/l >= p.MaxWidth {
			continue
		}
		band := p.TouchTolerance * (h - l)
		touches := 0
		for j := idx - w + 1; j <= idx; j++ {
			if h-high[j] <= band || low[j]-l <= band {
				touches++
			}
		}
		ratio := float64(touches) / float64(w)
		if ratio >= p.TouchRatio {
			return model.ConsolidationRange{
				StartIndex: idx - w + 1,
				EndIndex:   idx,
				High:       h,
				Low:        l,
				TouchRatio: ratio,
			}, nil
		}
	}
	return model.ConsolidationRange{}, model.ErrNoConsolidation
}
