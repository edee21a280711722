package features

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"EconCast/internal/domain/models"
	"EconCast/pkg/util"
)

// MinSeriesLength is the shortest series any forecaster accepts.
const MinSeriesLength = 2

// Series is a numeric column pulled out of a table.
type Series struct {
	Column string
	Values []float64
}

// Last returns the most recent observation.
func (s Series) Last() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Values[len(s.Values)-1]
}

// ExtractSeries resolves indicator against the table's columns (case-insensitive
// substring, column order breaks ties) and returns the numeric values of the first
// matching column that holds any. Non-numeric and missing cells are dropped and
// row order is preserved.
func ExtractSeries(t *models.Table, indicator string) (Series, error) {
	if t == nil || indicator == "" {
		return Series{}, models.NewDataError("indicator not found: %q", indicator)
	}

	var matches []string
	for _, col := range t.Columns {
		if util.ContainsFold(col, indicator) {
			matches = append(matches, col)
		}
	}
	if len(matches) == 0 {
		return Series{}, models.NewDataError("indicator not found: %q", indicator)
	}

	best := Series{Column: matches[0]}
	for _, col := range matches {
		vals := numericColumn(t, col)
		if len(vals) > 0 {
			best = Series{Column: col, Values: vals}
			break
		}
	}
	if len(best.Values) < MinSeriesLength {
		return best, models.NewDataError("insufficient data for %q: need at least %d numeric values, got %d",
			indicator, MinSeriesLength, len(best.Values))
	}
	return best, nil
}

func numericColumn(t *models.Table, col string) []float64 {
	out := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if v, ok := util.ToFloat(r[col]); ok {
			out = append(out, v)
		}
	}
	return out
}

// Fingerprint hashes the exact bit patterns of the values, so any change to the
// series content yields a different fingerprint.
func Fingerprint(values []float64) string {
	h := sha256.New()
	var buf [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MinMax returns the range of the values.
func MinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
