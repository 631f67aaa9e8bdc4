package clv

import "math"

// BGNBD holds fitted Beta-Geometric/NBD parameters. R and Alpha shape the
// gamma-distributed purchase rate, A and B the beta-distributed dropout
// probability. Alpha is expressed in days.
type BGNBD struct {
	R     float64 `yaml:"r" json:"r"`
	Alpha float64 `yaml:"alpha" json:"alpha"`
	A     float64 `yaml:"a" json:"a"`
	B     float64 `yaml:"b" json:"b"`
}

// LogLikelihood is the individual-level log-likelihood of x repeat purchases,
// the last at tx, observed for T days.
func (m BGNBD) LogLikelihood(x int, tx, T float64) float64 {
	xf := float64(x)

	a1 := lgamma(m.R+xf) - lgamma(m.R) + m.R*math.Log(m.Alpha)
	a2 := lgamma(m.A+m.B) + lgamma(m.B+xf) - lgamma(m.B) - lgamma(m.A+m.B+xf)
	a3 := -(m.R + xf) * math.Log(m.Alpha+T)

	if x == 0 {
		return a1 + a2 + a3
	}

	a4 := math.Log(m.A) - math.Log(m.B+xf-1) - (m.R+xf)*math.Log(m.Alpha+tx)

	return a1 + a2 + logAddExp(a3, a4)
}

// ExpectedPurchases returns the expected number of purchases in the next t
// days for a customer with history (x, tx, T).
func (m BGNBD) ExpectedPurchases(t float64, x int, tx, T float64) float64 {
	if t <= 0 {
		return 0
	}

	a := m.A
	if math.Abs(a-1) < 1e-9 {
		a = 1 + 1e-9
	}

	xf := float64(x)
	z := t / (m.Alpha + T + t)
	hyp := hyp2f1(m.R+xf, m.B+xf, a+m.B+xf-1, z)

	numer := (a + m.B + xf - 1) / (a - 1) * (1 - math.Pow((m.Alpha+T)/(m.Alpha+T+t), m.R+xf)*hyp)

	return numer / m.aliveDenominator(x, tx, T)
}

// ProbAlive returns the probability that the customer has not dropped out.
func (m BGNBD) ProbAlive(x int, tx, T float64) float64 {
	return 1 / m.aliveDenominator(x, tx, T)
}

func (m BGNBD) aliveDenominator(x int, tx, T float64) float64 {
	if x == 0 {
		return 1
	}

	xf := float64(x)

	return 1 + m.A/(m.B+xf-1)*math.Pow((m.Alpha+T)/(m.Alpha+tx), m.R+xf)
}

// FitBGNBD estimates BG/NBD parameters by maximum likelihood over all
// summaries.
func FitBGNBD(summaries []Summary, cfg Config) (BGNBD, error) {
	if len(summaries) < cfg.MinCustomers {
		return BGNBD{}, &ModelFitError{Model: ModelBGNBD, Reason: insufficientCustomers(len(summaries), cfg.MinCustomers)}
	}

	var (
		maxT      float64
		repeaters int
		identical = true
	)

	for i, s := range summaries {
		maxT = max(maxT, s.T)
		if s.Frequency > 0 {
			repeaters++
		}

		if i > 0 && (s.Frequency != summaries[0].Frequency || s.Recency != summaries[0].Recency || s.T != summaries[0].T) {
			identical = false
		}
	}

	switch {
	case repeaters == 0:
		return BGNBD{}, &ModelFitError{Model: ModelBGNBD, Reason: "no customer has a repeat purchase"}
	case identical:
		return BGNBD{}, &ModelFitError{Model: ModelBGNBD, Reason: "all customers have identical histories"}
	case maxT <= 0:
		return BGNBD{}, &ModelFitError{Model: ModelBGNBD, Reason: "observation window has zero length"}
	}

	// Rescale time so the largest T is 10; alpha is mapped back afterwards.
	scale := 10 / maxT

	type point struct {
		x     int
		tx, T float64
	}

	points := make([]point, len(summaries))
	for i, s := range summaries {
		points[i] = point{x: s.Frequency, tx: s.Recency * scale, T: s.T * scale}
	}

	negLL := func(p []float64) float64 {
		m := BGNBD{R: p[0], Alpha: p[1], A: p[2], B: p[3]}

		var ll float64
		for _, pt := range points {
			ll += m.LogLikelihood(pt.x, pt.tx, pt.T)
		}

		return -ll/float64(len(points)) + penalty(cfg.Penalizer, p)
	}

	p, err := minimizeLog(negLL, 4, cfg.MaxIterations)
	if err != nil {
		return BGNBD{}, &ModelFitError{Model: ModelBGNBD, Reason: "maximum likelihood search failed", Err: err}
	}

	return BGNBD{R: p[0], Alpha: p[1] / scale, A: p[2], B: p[3]}, nil
}
