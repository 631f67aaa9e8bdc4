// Package cluster partitions customers on standardized behavioral features
// with K-Means, hierarchical agglomerative clustering and a Gaussian mixture,
// choosing the cluster count by silhouette score.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/segmenter/internal/feature"
)

type Method string

const (
	MethodKMeans       Method = "kmeans"
	MethodHierarchical Method = "hierarchical"
	MethodGMM          Method = "gmm"
)

// Methods returns the clustering methods in output order.
func Methods() []Method {
	return []Method{MethodKMeans, MethodHierarchical, MethodGMM}
}

// Quality describes one method's final labeling.
type Quality struct {
	K          int     `yaml:"k" json:"k"`
	Silhouette float64 `yaml:"silhouette" json:"silhouette"`
	Inertia    float64 `yaml:"inertia" json:"inertia"`
	// BIC is only set for the mixture model.
	BIC float64 `yaml:"bic,omitempty" json:"bic,omitempty"`
}

// Result holds one label per clustered customer and method. Label slices are
// aligned with CustomerIDs.
type Result struct {
	CustomerIDs []string
	Labels      map[Method][]int
	Quality     map[Method]Quality
	Evaluation  []Candidate
	Scaler      Scaler
	Dropped     []string
}

// InsufficientDataError reports fewer customers than the smallest candidate
// cluster count.
type InsufficientDataError struct {
	Customers int
	MinK      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("clustering needs at least %d customers, got %d", e.MinK, e.Customers)
}

type candidateFit struct {
	Candidate
	kmeans kmeansFit
}

// Cluster standardizes the feature vectors, evaluates every candidate k with
// K-Means and labels the customers with all three methods.
func Cluster(ctx context.Context, vectors []feature.Vector, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ids, raw, dropped := selectFeatures(vectors)
	if len(ids) < cfg.KRange.Min {
		return nil, &InsufficientDataError{Customers: len(ids), MinK: cfg.KRange.Min}
	}

	if len(dropped) > 0 {
		slog.Warn("customers dropped before clustering", "count", len(dropped))
	}

	scaler := FitScaler(FeatureNames(), raw)
	x := scaler.Transform(raw)
	dist := pairwise(x)

	fits, err := evaluate(ctx, x, dist, cfg)
	if err != nil {
		return nil, err
	}

	evaluation := make([]Candidate, len(fits))
	for i, f := range fits {
		evaluation[i] = f.Candidate
	}

	k := selectK(evaluation, cfg.Tolerance)
	chosen := fits[k-cfg.KRange.Min]

	slog.Info("cluster count selected", "k", k, "silhouette", chosen.Silhouette, "candidates", len(fits))

	res := &Result{
		CustomerIDs: ids,
		Labels:      make(map[Method][]int, 3),
		Quality:     make(map[Method]Quality, 3),
		Evaluation:  evaluation,
		Scaler:      scaler,
		Dropped:     dropped,
	}

	res.Labels[MethodKMeans] = chosen.kmeans.labels
	res.Quality[MethodKMeans] = Quality{K: k, Silhouette: chosen.Silhouette, Inertia: chosen.Inertia}

	var (
		hLabels []int
		mixture gmmFit
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		labels, err := hierarchical(gctx, dist, k, cfg.Linkage)
		if err != nil {
			return fmt.Errorf("hierarchical clustering: %w", err)
		}

		hLabels = labels
		return nil
	})

	g.Go(func() error {
		fit, err := mixtureFor(gctx, x, fits, chosen, cfg)
		if err != nil {
			return fmt.Errorf("gaussian mixture: %w", err)
		}

		mixture = fit
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Labels[MethodHierarchical] = hLabels
	res.Quality[MethodHierarchical] = Quality{
		K:          k,
		Silhouette: silhouette(dist, hLabels, k),
		Inertia:    inertia(x, hLabels, k),
	}

	if !mixture.converged {
		slog.Warn("gaussian mixture stopped before converging", "components", mixture.k, "iterations", mixture.iterations)
	}

	res.Labels[MethodGMM] = mixture.labels
	res.Quality[MethodGMM] = Quality{
		K:          mixture.k,
		Silhouette: silhouette(dist, mixture.labels, mixture.k),
		Inertia:    inertia(x, mixture.labels, mixture.k),
		BIC:        mixture.bic(len(x), len(x[0])),
	}

	return res, nil
}

// evaluate fits K-Means for every candidate k concurrently. The result is
// ordered by k.
func evaluate(ctx context.Context, x [][]float64, dist *condensed, cfg Config) ([]candidateFit, error) {
	maxK := min(cfg.KRange.Max, len(x))
	fits := make([]candidateFit, maxK-cfg.KRange.Min+1)

	if cfg.OnEvaluate != nil {
		cfg.OnEvaluate(len(fits))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())

	for i := range fits {
		k := cfg.KRange.Min + i

		g.Go(func() error {
			km, err := kmeans(gctx, x, k, cfg.Restarts, cfg.MaxIter, candidateRand(cfg.Seed, k))
			if err != nil {
				return fmt.Errorf("k-means with k=%d: %w", k, err)
			}

			fits[i] = candidateFit{
				Candidate: Candidate{K: k, Silhouette: silhouette(dist, km.labels, k), Inertia: km.inertia},
				kmeans:    km,
			}

			if cfg.OnCandidate != nil {
				cfg.OnCandidate(k)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fits, nil
}

// mixtureFor fits the GMM with the component count the policy asks for.
func mixtureFor(ctx context.Context, x [][]float64, fits []candidateFit, chosen candidateFit, cfg Config) (gmmFit, error) {
	if cfg.ComponentPolicy != ComponentsBIC {
		return gmm(ctx, x, chosen.kmeans.labels, chosen.K)
	}

	mixtures := make([]gmmFit, len(fits))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())

	for i, f := range fits {
		g.Go(func() error {
			fit, err := gmm(gctx, x, f.kmeans.labels, f.K)
			if err != nil {
				return fmt.Errorf("%d components: %w", f.K, err)
			}

			mixtures[i] = fit
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return gmmFit{}, err
	}

	best, bestBIC := 0, math.Inf(1)
	for i, m := range mixtures {
		if b := m.bic(len(x), len(x[0])); b < bestBIC {
			best, bestBIC = i, b
		}
	}

	return mixtures[best], nil
}
