package clv_test

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/segmenter/internal/clv"
	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

// gammaVariate draws from Gamma(shape, rate) with Marsaglia-Tsang.
func gammaVariate(rng *rand.Rand, shape, rate float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return gammaVariate(rng, shape+1, rate) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3
	c := 1 / math.Sqrt(9*d)

	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}

		v = v * v * v
		u := rng.Float64()
		if math.Log(u) < 0.5*x*x+d-d*v+d*math.Log(v) {
			return d * v / rate
		}
	}
}

// simulate draws customer histories from a BG/NBD process with Gamma-Gamma
// spend: r=0.5, alpha=10 days, a=0.8, b=2.5, p=6, q=4, v=15.
func simulate(seed uint64, n int) []clv.Summary {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	summaries := make([]clv.Summary, 0, n)
	for i := range n {
		lambda := gammaVariate(rng, 0.5, 10)
		x1 := gammaVariate(rng, 0.8, 1)
		dropout := x1 / (x1 + gammaVariate(rng, 2.5, 1))
		T := 30 + rng.Float64()*335

		var t, tx float64
		x := 0

		for {
			t += rng.ExpFloat64() / lambda
			if t > T {
				break
			}

			x++
			tx = t

			if rng.Float64() < dropout {
				break
			}
		}

		s := clv.Summary{CustomerID: fmt.Sprintf("C%04d", i), Frequency: x, Recency: tx, T: T}

		if x > 0 {
			nu := gammaVariate(rng, 4, 15)

			var total float64
			for range x {
				total += gammaVariate(rng, 6, nu)
			}

			s.MonetaryValue = total / float64(x)
		}

		summaries = append(summaries, s)
	}

	return summaries
}

func TestBGNBD_ReferenceValues(t *testing.T) {
	// Parameters and customer from the BG/NBD paper (CDNOW, weeks).
	m := clv.BGNBD{R: 0.243, Alpha: 4.414, A: 0.793, B: 2.426}

	assert.InDelta(t, 1.226, m.ExpectedPurchases(39, 2, 30.43, 38.86), 1e-3)
	assert.InDelta(t, 0.7266, m.ProbAlive(2, 30.43, 38.86), 1e-3)
	assert.Equal(t, 1.0, m.ProbAlive(0, 0, 38.86))
	assert.Equal(t, 0.0, m.ExpectedPurchases(0, 2, 30.43, 38.86))
}

func TestBGNBD_ExpectedPurchasesGrowsWithWindow(t *testing.T) {
	m := clv.BGNBD{R: 0.243, Alpha: 4.414, A: 0.793, B: 2.426}

	prev := 0.0
	for _, window := range []float64{1, 10, 30, 90, 180} {
		got := m.ExpectedPurchases(window, 3, 20, 30)
		assert.Greater(t, got, prev)
		prev = got
	}
}

func TestBGNBD_LogLikelihoodFinite(t *testing.T) {
	m := clv.BGNBD{R: 0.5, Alpha: 10, A: 0.8, B: 2.5}

	for _, c := range []struct {
		x     int
		tx, T float64
	}{{0, 0, 10}, {1, 5, 10}, {7, 300, 365}, {1, 0, 0.5}} {
		ll := m.LogLikelihood(c.x, c.tx, c.T)
		assert.False(t, math.IsNaN(ll) || math.IsInf(ll, 0))
		assert.Less(t, ll, 0.0)
	}
}

func TestGammaGamma_ExpectedAverageValue(t *testing.T) {
	m := clv.GammaGamma{P: 6.25, Q: 3.74, V: 15.44}

	want := 6.25 * (15.44 + 2*35.0) / (6.25*2 + 3.74 - 1)
	assert.InDelta(t, want, m.ExpectedAverageValue(2, 35), 1e-9)

	// More evidence pulls the estimate toward the observed mean.
	assert.Less(t, math.Abs(m.ExpectedAverageValue(50, 35)-35), math.Abs(m.ExpectedAverageValue(1, 35)-35))
}

func TestFit_SimulatedData(t *testing.T) {
	cfg := clv.DefaultConfig()
	summaries := simulate(7, 400)

	bg, err := clv.FitBGNBD(summaries, cfg)
	require.NoError(t, err)
	assert.Greater(t, bg.R, 0.2)
	assert.Less(t, bg.R, 1.5)
	assert.Greater(t, bg.Alpha, 3.0)
	assert.Less(t, bg.Alpha, 40.0)
	assert.Greater(t, bg.A, 0.0)
	assert.Greater(t, bg.B, 0.0)

	gg, err := clv.FitGammaGamma(summaries, cfg)
	require.NoError(t, err)
	assert.Greater(t, gg.Q, 1.0)
	assert.Greater(t, gg.P, 0.0)
	assert.Greater(t, gg.V, 0.0)

	forecasts := clv.Predict(summaries, bg, gg, cfg)
	assert.NotEmpty(t, forecasts)

	for _, f := range forecasts {
		assert.GreaterOrEqual(t, f.CLV, 0.0)
		assert.GreaterOrEqual(t, f.ExpectedPurchases, 0.0)
		assert.Greater(t, f.ProbAlive, 0.0)
		assert.LessOrEqual(t, f.ProbAlive, 1.0)
	}
}

func TestFitBGNBD_Degenerate(t *testing.T) {
	cfg := clv.DefaultConfig()

	tests := []struct {
		name      string
		summaries []clv.Summary
		reason    string
	}{
		{
			name:      "Too Few Customers",
			summaries: []clv.Summary{{CustomerID: "A", Frequency: 1, Recency: 3, T: 9}},
			reason:    "need at least 3",
		},
		{
			name: "No Repeat Purchases",
			summaries: []clv.Summary{
				{CustomerID: "A", T: 9},
				{CustomerID: "B", T: 19},
				{CustomerID: "C", T: 29},
			},
			reason: "no customer has a repeat purchase",
		},
		{
			name: "Identical Histories",
			summaries: []clv.Summary{
				{CustomerID: "A", Frequency: 2, Recency: 5, T: 10},
				{CustomerID: "B", Frequency: 2, Recency: 5, T: 10},
				{CustomerID: "C", Frequency: 2, Recency: 5, T: 10},
			},
			reason: "identical histories",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := clv.FitBGNBD(tt.summaries, cfg)
			require.Error(t, err)

			var fitErr *clv.ModelFitError
			require.True(t, errors.As(err, &fitErr))
			assert.Equal(t, clv.ModelBGNBD, fitErr.Model)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestFitGammaGamma_IdenticalSpend(t *testing.T) {
	summaries := []clv.Summary{
		{CustomerID: "A", Frequency: 1, Recency: 3, T: 9, MonetaryValue: 10},
		{CustomerID: "B", Frequency: 2, Recency: 4, T: 9, MonetaryValue: 10},
		{CustomerID: "C", Frequency: 3, Recency: 5, T: 9, MonetaryValue: 10},
		{CustomerID: "D", Frequency: 0, T: 9},
	}

	_, err := clv.FitGammaGamma(summaries, clv.DefaultConfig())

	var fitErr *clv.ModelFitError
	require.ErrorAs(t, err, &fitErr)
	assert.Equal(t, clv.ModelGammaGamma, fitErr.Model)
	assert.Contains(t, err.Error(), "gamma-gamma")
}

func TestPredict_ExcludesCustomersWithoutRepeatPurchases(t *testing.T) {
	bg := clv.BGNBD{R: 0.5, Alpha: 10, A: 0.8, B: 2.5}
	gg := clv.GammaGamma{P: 6, Q: 4, V: 15}

	summaries := []clv.Summary{
		{CustomerID: "ONCE", Frequency: 0, Recency: 0, T: 40},
		{CustomerID: "TWICE", Frequency: 1, Recency: 20, T: 40, MonetaryValue: 25},
	}

	forecasts := clv.Predict(summaries, bg, gg, clv.DefaultConfig())
	require.Len(t, forecasts, 1)

	f := forecasts[0]
	assert.Equal(t, "TWICE", f.CustomerID)
	assert.InDelta(t, f.ExpectedPurchases*f.ExpectedAvgValue, f.CLV, 1e-9)
	assert.InDelta(t, bg.ExpectedPurchases(180, 1, 20, 40), f.ExpectedPurchases, 1e-12)
}

func TestPredict_Discounting(t *testing.T) {
	bg := clv.BGNBD{R: 0.5, Alpha: 10, A: 0.8, B: 2.5}
	gg := clv.GammaGamma{P: 6, Q: 4, V: 15}
	summaries := []clv.Summary{{CustomerID: "A", Frequency: 4, Recency: 50, T: 60, MonetaryValue: 30}}

	cfg := clv.DefaultConfig()
	plain := clv.Predict(summaries, bg, gg, cfg)

	cfg.DiscountRate = 0.01
	disc := clv.Predict(summaries, bg, gg, cfg)

	require.Len(t, plain, 1)
	require.Len(t, disc, 1)
	assert.Less(t, disc[0].CLV, plain[0].CLV)
	assert.Greater(t, disc[0].CLV, plain[0].CLV/math.Pow(1.01, 6))
}

func TestSummarize(t *testing.T) {
	rows := []transaction.RawRow{
		{InvoiceNo: "1", Description: "A", Quantity: "1", UnitPrice: "10", InvoiceDate: "2011-01-01 10:00:00", CustomerID: "C1", Country: "France"},
		{InvoiceNo: "2", Description: "A", Quantity: "2", UnitPrice: "10", InvoiceDate: "2011-01-11 10:00:00", CustomerID: "C1", Country: "France"},
		{InvoiceNo: "2", Description: "B", Quantity: "1", UnitPrice: "5", InvoiceDate: "2011-01-11 10:00:00", CustomerID: "C1", Country: "France"},
		{InvoiceNo: "3", Description: "A", Quantity: "4", UnitPrice: "10", InvoiceDate: "2011-01-31 10:00:00", CustomerID: "C1", Country: "France"},
		{InvoiceNo: "4", Description: "A", Quantity: "1", UnitPrice: "7", InvoiceDate: "2011-01-21 10:00:00", CustomerID: "C2", Country: "France"},
		{InvoiceNo: "5", Description: "A", Quantity: "1", UnitPrice: "7", InvoiceDate: "2011-02-10 10:00:00", CustomerID: "C3", Country: "France"},
	}

	table, err := transaction.Clean(rows)
	require.NoError(t, err)

	summaries := clv.Summarize(table)
	require.Len(t, summaries, 3)

	c1 := summaries[0]
	assert.Equal(t, "C1", c1.CustomerID)
	assert.Equal(t, 2, c1.Frequency)
	assert.InDelta(t, 30.0, c1.Recency, 1e-9)
	assert.InDelta(t, 40.0, c1.T, 1e-9)
	assert.InDelta(t, 32.5, c1.MonetaryValue, 1e-9) // (25 + 40) / 2, first invoice excluded
	assert.True(t, c1.HasMonetary())

	c2 := summaries[1]
	assert.Equal(t, 0, c2.Frequency)
	assert.Equal(t, 0.0, c2.Recency)
	assert.InDelta(t, 20.0, c2.T, 1e-9)
	assert.False(t, c2.HasMonetary())

	for _, s := range summaries {
		assert.LessOrEqual(t, s.Recency, s.T)
		assert.GreaterOrEqual(t, s.Frequency, 0)
	}
}
