package cluster

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	gmmMaxIter   = 100
	gmmTolerance = 1e-3
	gmmReg       = 1e-6
)

var errSingularCovariance = errors.New("covariance is not positive definite")

type component struct {
	weight  float64
	mean    *mat.VecDense
	chol    *mat.Cholesky
	logNorm float64
}

type gmmFit struct {
	k             int
	labels        []int
	logLikelihood float64
	iterations    int
	converged     bool
}

// bic is the Bayesian information criterion of a full-covariance mixture.
func (f gmmFit) bic(n, dim int) float64 {
	params := f.k*dim + f.k*dim*(dim+1)/2 + f.k - 1
	return -2*f.logLikelihood + float64(params)*math.Log(float64(n))
}

// gmm fits a full-covariance Gaussian mixture with EM, starting from the
// hard assignment init, and labels each point with its most probable
// component.
func gmm(ctx context.Context, x [][]float64, init []int, k int) (gmmFit, error) {
	resp := make([][]float64, len(x))
	for i, l := range init {
		resp[i] = make([]float64, k)
		resp[i][l] = 1
	}

	comps, err := maximize(x, resp)
	if err != nil {
		return gmmFit{}, err
	}

	fit := gmmFit{k: k}
	prev := math.Inf(-1)

	for fit.iterations < gmmMaxIter {
		if err := ctx.Err(); err != nil {
			return gmmFit{}, err
		}

		fit.iterations++

		var mean float64
		resp, mean = expect(x, comps)
		fit.logLikelihood = mean * float64(len(x))

		if math.Abs(mean-prev) < gmmTolerance {
			fit.converged = true
			break
		}

		prev = mean

		if comps, err = maximize(x, resp); err != nil {
			return gmmFit{}, err
		}
	}

	fit.labels = make([]int, len(x))
	for i, r := range resp {
		fit.labels[i] = floats.MaxIdx(r)
	}

	return fit, nil
}

// expect returns posterior responsibilities and the mean log-likelihood.
func expect(x [][]float64, comps []component) ([][]float64, float64) {
	dim := len(x[0])
	diff := mat.NewVecDense(dim, nil)
	sol := mat.NewVecDense(dim, nil)
	logp := make([]float64, len(comps))

	resp := make([][]float64, len(x))
	var total float64

	for i, p := range x {
		pv := mat.NewVecDense(dim, p)
		for c, comp := range comps {
			diff.SubVec(pv, comp.mean)

			maha := math.Inf(1)

			var cond mat.Condition
			if err := comp.chol.SolveVecTo(sol, diff); err == nil || errors.As(err, &cond) {
				maha = mat.Dot(diff, sol)
			}

			logp[c] = math.Log(comp.weight) + comp.logNorm - 0.5*maha
		}

		lse := floats.LogSumExp(logp)
		total += lse

		r := make([]float64, len(comps))
		for c := range r {
			r[c] = math.Exp(logp[c] - lse)
		}

		resp[i] = r
	}

	return resp, total / float64(len(x))
}

// maximize re-estimates weights, means and regularized covariances.
func maximize(x [][]float64, resp [][]float64) ([]component, error) {
	n, dim, k := len(x), len(x[0]), len(resp[0])
	comps := make([]component, k)

	for c := range k {
		nk := 10 * 2.220446049250313e-16
		mean := make([]float64, dim)

		for i, p := range x {
			nk += resp[i][c]
			floats.AddScaled(mean, resp[i][c], p)
		}

		floats.Scale(1/nk, mean)

		cov := mat.NewSymDense(dim, nil)
		d := make([]float64, dim)

		for i, p := range x {
			if resp[i][c] == 0 {
				continue
			}

			floats.SubTo(d, p, mean)
			cov.SymRankOne(cov, resp[i][c]/nk, mat.NewVecDense(dim, d))
		}

		for j := range dim {
			cov.SetSym(j, j, cov.At(j, j)+gmmReg)
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(cov); !ok {
			return nil, fmt.Errorf("component %d: %w", c, errSingularCovariance)
		}

		comps[c] = component{
			weight:  nk / float64(n),
			mean:    mat.NewVecDense(dim, mean),
			chol:    &chol,
			logNorm: -0.5 * (float64(dim)*math.Log(2*math.Pi) + chol.LogDet()),
		}
	}

	return comps, nil
}
