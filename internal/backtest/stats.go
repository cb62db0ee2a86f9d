package backtest

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"SetupScanner/internal/model"
)

// ComputeStats aggregates closed trades. Truncated trades are only counted.
func ComputeStats(trades []model.BacktestTrade) model.BacktestStats {
	var st model.BacktestStats
	var returns []float64
	for _, t := range trades {
		if t.Truncated {
			st.Truncated++
			continue
		}
		returns = append(returns, t.ReturnPct)
		if t.Win() {
			st.Wins++
		}
		if t.ExitReason == model.ReasonNormCrossDown {
			st.EarlyExits++
		}
	}
	st.Trades = len(returns)
	st.Losses = st.Trades - st.Wins
	if st.Trades == 0 {
		return st
	}

	st.TotalReturn = floats.Sum(returns)
	st.MeanReturn = stat.Mean(returns, nil)
	st.Best = floats.Max(returns)
	st.Worst = floats.Min(returns)
	st.WinRate = float64(st.Wins) / float64(st.Trades)

	sort.Float64s(returns)
	mid := len(returns) / 2
	if len(returns)%2 == 1 {
		st.Median = returns[mid]
	} else {
		st.Median = (returns[mid-1] + returns[mid]) / 2
	}
	return st
}

// BucketStats splits trades by entry price at the given ascending edges.
// The last bucket is open-ended; prices below the first edge are dropped.
func BucketStats(trades []model.BacktestTrade, edges []float64) []model.PriceBucketStats {
	if len(edges) == 0 {
		return nil
	}
	groups := make([][]model.BacktestTrade, len(edges))
	for _, t := range trades {
		k := sort.Search(len(edges), func(i int) bool { return edges[i] > t.EntryPrice }) - 1
		if k < 0 {
			continue
		}
		groups[k] = append(groups[k], t)
	}
	out := make([]model.PriceBucketStats, len(edges))
	for k, lo := range edges {
		hi := math.Inf(1)
		label := fmt.Sprintf("$%g+", lo)
		if k+1 < len(edges) {
			hi = edges[k+1]
			label = fmt.Sprintf("$%g-%g", lo, hi)
		}
		out[k] = model.PriceBucketStats{Label: label, Min: lo, Max: hi, Stats: ComputeStats(groups[k])}
	}
	return out
}
