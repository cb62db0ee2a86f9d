package calculator

import "math"

// JMAParams configures the Jurik-style adaptive smoother.
type JMAParams struct {
	Length int
	Phase  float64 // clamped to [-100, 100]
	Power  float64
}

// Ratios returns the phase ratio, beta and alpha used by the recurrence.
func (p JMAParams) Ratios() (phaseRatio, beta, alpha float64) {
	phase := math.Max(-100, math.Min(100, p.Phase))
	phaseRatio = phase/100 + 1.5
	n := 0.45 * float64(p.Length-1)
	beta = n / (n + 2)
	alpha = math.Pow(beta, p.Power)
	return phaseRatio, beta, alpha
}

// JMA is a three-stage adaptive smoother:
//
//	e0[i] = (1-a)*x[i] + a*e0[i-1]
//	e1[i] = (x[i]-e0[i])*(1-b) + b*e1[i-1]
//	e2[i] = (e0[i] + r*e1[i] - j[i-1])*(1-a)^2 + a^2*e2[i-1]
//	j[i]  = e2[i] + j[i-1]
//
// with b = 0.45(L-1)/(0.45(L-1)+2), a = b^power and r = phase/100+1.5.
// State is seeded at the first defined input with e0 = j = x and e1 = e2 = 0,
// and the first Length-1 outputs are undefined.
func JMA(src Line, p JMAParams) Line {
	out := NewLine(len(src))
	start := src.FirstDefined()
	if p.Length <= 0 || start < 0 {
		return out
	}
	r, b, a := p.Ratios()
	oneMinusA2 := (1 - a) * (1 - a)
	a2 := a * a

	e0, e1, e2, j := src[start], 0.0, 0.0, src[start]
	for i := start; i < len(src); i++ {
		if i > start {
			x := src[i]
			e0 = (1-a)*x + a*e0
			e1 = (x-e0)*(1-b) + b*e1
			e2 = (e0+r*e1-j)*oneMinusA2 + a2*e2
			j = e2 + j
		}
		if i >= start+p.Length-1 {
			out[i] = j
		}
	}
	return out
}
