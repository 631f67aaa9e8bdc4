package cluster

import (
	"fmt"
	"runtime"
)

// Linkage is the merge criterion of hierarchical clustering.
type Linkage string

const (
	LinkageWard     Linkage = "ward"
	LinkageComplete Linkage = "complete"
	LinkageAverage  Linkage = "average"
	LinkageSingle   Linkage = "single"
)

// ComponentPolicy decides how many mixture components the GMM uses.
type ComponentPolicy string

const (
	// ComponentsSameAsKMeans reuses the k chosen by silhouette selection.
	ComponentsSameAsKMeans ComponentPolicy = "same-as-kmeans"
	// ComponentsBIC fits every candidate k and keeps the lowest BIC.
	ComponentsBIC ComponentPolicy = "bic"
)

// KRange is the inclusive range of candidate cluster counts.
type KRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

type Config struct {
	KRange          KRange
	Seed            uint64
	Restarts        int
	MaxIter         int
	Linkage         Linkage
	ComponentPolicy ComponentPolicy
	// Tolerance widens the silhouette tie-break: the smallest k scoring within
	// Tolerance of the best one wins.
	Tolerance float64
	// Workers bounds concurrent candidate fits; 0 means GOMAXPROCS.
	Workers int
	// OnEvaluate, when set, is called once with the number of candidate k
	// values before any is fitted. The range is capped at the customer count.
	OnEvaluate func(candidates int)
	// OnCandidate, when set, is called once per evaluated k. It may be called
	// from several goroutines at once.
	OnCandidate func(k int)
}

func DefaultConfig() Config {
	return Config{
		KRange:          KRange{Min: 2, Max: 8},
		Seed:            42,
		Restarts:        10,
		MaxIter:         300,
		Linkage:         LinkageWard,
		ComponentPolicy: ComponentsSameAsKMeans,
		Tolerance:       1e-3,
	}
}

func (c Config) validate() error {
	switch {
	case c.KRange.Min < 2:
		return fmt.Errorf("invalid cluster config: minimum k %d is below 2", c.KRange.Min)
	case c.KRange.Max < c.KRange.Min:
		return fmt.Errorf("invalid cluster config: k range [%d, %d] is empty", c.KRange.Min, c.KRange.Max)
	case c.Restarts < 1:
		return fmt.Errorf("invalid cluster config: restarts must be positive, got %d", c.Restarts)
	case c.MaxIter < 1:
		return fmt.Errorf("invalid cluster config: max iterations must be positive, got %d", c.MaxIter)
	case c.Tolerance < 0:
		return fmt.Errorf("invalid cluster config: negative tolerance %g", c.Tolerance)
	}

	switch c.Linkage {
	case LinkageWard, LinkageComplete, LinkageAverage, LinkageSingle:
	default:
		return fmt.Errorf("invalid cluster config: unknown linkage %q", c.Linkage)
	}

	switch c.ComponentPolicy {
	case ComponentsSameAsKMeans, ComponentsBIC:
	default:
		return fmt.Errorf("invalid cluster config: unknown component policy %q", c.ComponentPolicy)
	}

	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}

	return runtime.GOMAXPROCS(0)
}
