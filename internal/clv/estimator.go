// Package clv forecasts customer lifetime value from transaction history
// with a BG/NBD purchase model and a Gamma-Gamma spend model.
package clv

import (
	"math"

	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

// Config controls fitting and the forecast horizon.
type Config struct {
	HorizonMonths int
	DaysPerMonth  float64
	// DiscountRate is applied per month; 0 disables discounting.
	DiscountRate  float64
	MinCustomers  int
	MaxIterations int
	Penalizer     float64
}

// DefaultConfig forecasts six 30-day months without discounting.
func DefaultConfig() Config {
	return Config{
		HorizonMonths: 6,
		DaysPerMonth:  30,
		MinCustomers:  3,
		MaxIterations: 10000,
	}
}

// Forecast is the value prediction for one customer.
type Forecast struct {
	CustomerID        string
	ExpectedPurchases float64
	ProbAlive         float64
	ExpectedAvgValue  float64
	CLV               float64
}

// Result carries the fitted models alongside the forecasts so a run can be
// audited or replayed with Predict.
type Result struct {
	Summaries   []Summary
	BGNBD       BGNBD
	GammaGamma  GammaGamma
	Forecasts   []Forecast
	Unestimable int
}

// Estimate summarizes the table, fits both models and forecasts CLV for every
// customer with at least one repeat purchase.
func Estimate(table *transaction.Table, cfg Config) (*Result, error) {
	summaries := Summarize(table)

	bg, err := FitBGNBD(summaries, cfg)
	if err != nil {
		return nil, err
	}

	gg, err := FitGammaGamma(summaries, cfg)
	if err != nil {
		return nil, err
	}

	forecasts := Predict(summaries, bg, gg, cfg)

	return &Result{
		Summaries:   summaries,
		BGNBD:       bg,
		GammaGamma:  gg,
		Forecasts:   forecasts,
		Unestimable: len(summaries) - len(forecasts),
	}, nil
}

// Predict applies fitted models to summaries. Customers without repeat
// purchases, or whose prediction is not a finite non-negative number, are
// left out.
func Predict(summaries []Summary, bg BGNBD, gg GammaGamma, cfg Config) []Forecast {
	forecasts := make([]Forecast, 0, len(summaries))

	for _, s := range summaries {
		if !s.HasMonetary() {
			continue
		}

		horizon := float64(cfg.HorizonMonths) * cfg.DaysPerMonth
		purchases := bg.ExpectedPurchases(horizon, s.Frequency, s.Recency, s.T)
		avg := gg.ExpectedAverageValue(s.Frequency, s.MonetaryValue)

		value := purchases * avg
		if cfg.DiscountRate != 0 {
			value = discounted(bg, gg, s, cfg)
		}

		value, ok := nonNegative(value)
		if !ok {
			continue
		}

		forecasts = append(forecasts, Forecast{
			CustomerID:        s.CustomerID,
			ExpectedPurchases: purchases,
			ProbAlive:         bg.ProbAlive(s.Frequency, s.Recency, s.T),
			ExpectedAvgValue:  avg,
			CLV:               value,
		})
	}

	return forecasts
}

// discounted sums the expected value month by month, discounting month i by
// (1+rate)^i.
func discounted(bg BGNBD, gg GammaGamma, s Summary, cfg Config) float64 {
	avg := gg.ExpectedAverageValue(s.Frequency, s.MonetaryValue)

	var total, prev float64
	for i := 1; i <= cfg.HorizonMonths; i++ {
		cum := bg.ExpectedPurchases(float64(i)*cfg.DaysPerMonth, s.Frequency, s.Recency, s.T)
		total += (cum - prev) * avg / math.Pow(1+cfg.DiscountRate, float64(i))
		prev = cum
	}

	return total
}

// nonNegative clamps rounding noise just below zero and rejects anything else
// that is not a usable value.
func nonNegative(v float64) (float64, bool) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, false
	case v < -1e-9:
		return 0, false
	case v < 0:
		return 0, true
	}

	return v, true
}
