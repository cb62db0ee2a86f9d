package calculator

// VolumeRatio is vol[idx] over the mean of the lookback bars before it. It
// reports false until lookback prior bars exist; a zero mean yields 0.
func VolumeRatio(vol []float64, idx, lookback int) (float64, bool) {
	if lookback <= 0 || idx < lookback || idx >= len(vol) {
		return 0, false
	}
	sum := 0.0
	for _, v := range vol[idx-lookback : idx] {
		sum += v
	}
	avg := sum / float64(lookback)
	if avg <= 0 {
		return 0, true
	}
	return vol[idx] / avg, true
}

// TrendUp reports close above its moving average with the average higher
// than it was rise bars ago.
func TrendUp(close []float64, ma Line, idx, rise int) bool {
	m, ok := ma.At(idx)
	if !ok || idx >= len(close) || close[idx] <= m {
		return false
	}
	prev, ok := ma.At(idx - rise)
	return ok && m > prev
}
