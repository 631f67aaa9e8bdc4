package clv

import (
	"fmt"
	"math"
)

// GammaGamma holds fitted Gamma-Gamma spend parameters. Individual
// transaction values are gamma(P, nu) and nu is gamma(Q, V) across customers.
type GammaGamma struct {
	P float64 `yaml:"p" json:"p"`
	Q float64 `yaml:"q" json:"q"`
	V float64 `yaml:"v" json:"v"`
}

// LogLikelihood of observing mean spend mx over x repeat transactions.
func (m GammaGamma) LogLikelihood(x int, mx float64) float64 {
	xf := float64(x)
	px := m.P * xf

	return lgamma(px+m.Q) - lgamma(px) - lgamma(m.Q) +
		m.Q*math.Log(m.V) +
		(px-1)*math.Log(mx) +
		px*math.Log(xf) -
		(px+m.Q)*math.Log(xf*mx+m.V)
}

// ExpectedAverageValue is the conditional expectation of a customer's mean
// transaction value given x repeat transactions averaging mx.
func (m GammaGamma) ExpectedAverageValue(x int, mx float64) float64 {
	xf := float64(x)
	return m.P * (m.V + xf*mx) / (m.P*xf + m.Q - 1)
}

// FitGammaGamma estimates Gamma-Gamma parameters from customers with at
// least one repeat purchase.
func FitGammaGamma(summaries []Summary, cfg Config) (GammaGamma, error) {
	type point struct {
		x  int
		mx float64
	}

	var (
		points []point
		sum    float64
		lo, hi = math.Inf(1), math.Inf(-1)
	)

	for _, s := range summaries {
		if !s.HasMonetary() || s.MonetaryValue <= 0 {
			continue
		}

		points = append(points, point{x: s.Frequency, mx: s.MonetaryValue})
		sum += s.MonetaryValue
		lo = math.Min(lo, s.MonetaryValue)
		hi = math.Max(hi, s.MonetaryValue)
	}

	if len(points) < cfg.MinCustomers {
		return GammaGamma{}, &ModelFitError{Model: ModelGammaGamma, Reason: insufficientCustomers(len(points), cfg.MinCustomers) + " with repeat purchases"}
	}

	if hi-lo <= 1e-12*hi {
		return GammaGamma{}, &ModelFitError{Model: ModelGammaGamma, Reason: "all repeat customers have identical average spend"}
	}

	// Fit on spend normalized to mean 1; V scales linearly with spend.
	scale := float64(len(points)) / sum
	for i := range points {
		points[i].mx *= scale
	}

	negLL := func(p []float64) float64 {
		m := GammaGamma{P: p[0], Q: p[1], V: p[2]}

		var ll float64
		for _, pt := range points {
			ll += m.LogLikelihood(pt.x, pt.mx)
		}

		return -ll/float64(len(points)) + penalty(cfg.Penalizer, p)
	}

	p, err := minimizeLog(negLL, 3, cfg.MaxIterations)
	if err != nil {
		return GammaGamma{}, &ModelFitError{Model: ModelGammaGamma, Reason: "maximum likelihood search failed", Err: err}
	}

	m := GammaGamma{P: p[0], Q: p[1], V: p[2] / scale}
	if m.Q <= 1 {
		return GammaGamma{}, &ModelFitError{Model: ModelGammaGamma, Reason: fmt.Sprintf("q=%.4g <= 1, expected spend is undefined", m.Q)}
	}

	return m, nil
}

func insufficientCustomers(got, want int) string {
	return fmt.Sprintf("%d customers, need at least %d", got, want)
}
