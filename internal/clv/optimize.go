package clv

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

var errNotConverged = errors.New("optimizer did not converge")

// minimizeLog runs Nelder-Mead over log-parameters so the search space is
// unconstrained while the model parameters stay positive.
func minimizeLog(negLL func(params []float64) float64, dim, maxIter int) ([]float64, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			params := make([]float64, len(x))
			for i, v := range x {
				params[i] = math.Exp(v)
			}

			f := negLL(params)
			if math.IsNaN(f) {
				return math.Inf(1)
			}

			return f
		},
	}

	settings := &optimize.Settings{
		MajorIterations: maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 200,
		},
	}

	res, err := optimize.Minimize(problem, make([]float64, dim), settings, &optimize.NelderMead{})
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.FunctionThreshold,
		optimize.StepConvergence, optimize.MethodConverge:
	default:
		return nil, fmt.Errorf("%w: status %v after %d iterations", errNotConverged, res.Status, res.Stats.MajorIterations)
	}

	params := make([]float64, dim)
	for i, v := range res.X {
		params[i] = math.Exp(v)
		if math.IsNaN(params[i]) || math.IsInf(params[i], 0) || params[i] == 0 {
			return nil, fmt.Errorf("%w: parameter %d is degenerate (%g)", errNotConverged, i, params[i])
		}
	}

	return params, nil
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// hyp2f1 evaluates the Gauss hypergeometric function 2F1(a, b; c; z) by its
// power series. It requires 0 <= z < 1.
func hyp2f1(a, b, c, z float64) float64 {
	const maxTerms = 1_000_000

	sum, term := 1.0, 1.0

	for n := range maxTerms {
		nf := float64(n)
		term *= (a + nf) * (b + nf) / ((c + nf) * (nf + 1)) * z
		sum += term

		if math.Abs(term) <= 1e-15*math.Abs(sum) {
			break
		}
	}

	return sum
}

func logAddExp(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}

	if math.IsInf(a, -1) {
		return a
	}

	return a + math.Log1p(math.Exp(b-a))
}

func penalty(coef float64, params []float64) float64 {
	if coef == 0 {
		return 0
	}

	var s float64
	for _, p := range params {
		s += p * p
	}

	return coef * s
}
