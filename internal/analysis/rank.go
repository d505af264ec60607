package analysis

import (
	"sort"
)

// RankByReturn orders successful outcomes by total return, best first, followed by
// failed ones in their original order. The input slice is not modified.
func RankByReturn(outcomes []Outcome) []Outcome {
	out := make([]Outcome, len(outcomes))
	copy(out, outcomes)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err != nil {
			return false
		}
		return a.Result.Stats.TotalReturnPct > b.Result.Stats.TotalReturnPct
	})
	return out
}

// Best returns the top-ranked successful outcome.
func Best(outcomes []Outcome) (Outcome, bool) {
	ranked := RankByReturn(outcomes)
	if len(ranked) == 0 || ranked[0].Err != nil {
		return Outcome{}, false
	}
	return ranked[0], true
}
