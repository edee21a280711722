package forecast

// DefaultBandRatio is the half-width of the heuristic confidence band as a
// fraction of the forecast. It is a product constant, not a derived interval.
const DefaultBandRatio = 0.15

// Band builds lower/upper bounds as fixed multiples of each forecast:
// (1-ratio)*f and (1+ratio)*f. For negative forecasts the multipliers swap so
// lower <= forecast <= upper holds for every step.
type Band struct {
	Ratio float64
}

func (b Band) Apply(forecasts []float64) (lower, upper []float64) {
	lo, hi := 1-b.Ratio, 1+b.Ratio
	lower = make([]float64, len(forecasts))
	upper = make([]float64, len(forecasts))
	for i, f := range forecasts {
		if f >= 0 {
			lower[i], upper[i] = lo*f, hi*f
		} else {
			lower[i], upper[i] = hi*f, lo*f
		}
	}
	return lower, upper
}
