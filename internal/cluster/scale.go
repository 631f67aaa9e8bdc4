package cluster

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/MrJamesThe3rd/segmenter/internal/feature"
)

// FeatureNames lists the clustering features in matrix column order.
func FeatureNames() []string {
	names := []string{"Recency", "Frequency", "Monetary", "IsUK"}
	for _, c := range feature.Categories() {
		names = append(names, c.Column())
	}

	return names
}

// selectFeatures builds the raw feature matrix. Customers with a non-finite
// RFM value are returned as dropped; non-finite shares are imputed with 0.
func selectFeatures(vectors []feature.Vector) (ids []string, rows [][]float64, dropped []string) {
	for _, v := range vectors {
		recency, frequency := float64(v.Recency), float64(v.Frequency)
		if !finite(recency) || !finite(frequency) || !finite(v.Monetary) {
			dropped = append(dropped, v.CustomerID)
			continue
		}

		row := make([]float64, 0, 4+feature.NumCategories)
		row = append(row, recency, frequency, v.Monetary, boolFloat(v.IsUK))

		for _, s := range v.Shares {
			if !finite(s) {
				s = 0
			}

			row = append(row, s)
		}

		ids = append(ids, v.CustomerID)
		rows = append(rows, row)
	}

	return ids, rows, dropped
}

// Scaler standardizes each feature to zero mean and unit population variance.
// It is kept with the result so the transformation can be audited.
type Scaler struct {
	Features []string  `yaml:"features" json:"features"`
	Means    []float64 `yaml:"means" json:"means"`
	Scales   []float64 `yaml:"scales" json:"scales"`
}

// FitScaler computes column statistics of x. A constant column gets scale 1
// so it standardizes to all zeros.
func FitScaler(features []string, x [][]float64) Scaler {
	s := Scaler{
		Features: features,
		Means:    make([]float64, len(features)),
		Scales:   make([]float64, len(features)),
	}

	col := make([]float64, len(x))
	for j := range features {
		for i, row := range x {
			col[i] = row[j]
		}

		mean, variance := stat.PopMeanVariance(col, nil)
		scale := math.Sqrt(variance)
		if !(scale > 1e-12*math.Max(1, math.Abs(mean))) {
			scale = 1
		}

		s.Means[j] = mean
		s.Scales[j] = scale
	}

	return s
}

// Transform returns a standardized copy of x.
func (s Scaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		z := make([]float64, len(row))
		for j, v := range row {
			z[j] = (v - s.Means[j]) / s.Scales[j]
		}

		out[i] = z
	}

	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
