// Package pipeline runs the segmentation stages over a batch of raw
// transaction rows: cleaning, feature building and CLV estimation in
// parallel, clustering, and profile assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/segmenter/internal/cluster"
	"github.com/MrJamesThe3rd/segmenter/internal/clv"
	"github.com/MrJamesThe3rd/segmenter/internal/feature"
	"github.com/MrJamesThe3rd/segmenter/internal/segment"
	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

// Stage names used to wrap errors.
const (
	StageClean    = "clean"
	StageFeatures = "features"
	StageCLV      = "clv"
	StageCluster  = "cluster"
)

// Runner executes the pipeline. A model that cannot be fitted, or too few
// customers to cluster, becomes a warning on the result unless Strict is set.
type Runner struct {
	logger  *slog.Logger
	CLV     clv.Config
	Cluster cluster.Config
	Strict  bool
}

func NewRunner(logger *slog.Logger, clvCfg clv.Config, clusterCfg cluster.Config, strict bool) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		logger:  logger,
		CLV:     clvCfg,
		Cluster: clusterCfg,
		Strict:  strict,
	}
}

// Result is everything one run produced. CLV and Clusters are nil when the
// stage was skipped with a warning.
type Result struct {
	ID       uuid.UUID
	Stats    transaction.CleanStats
	Horizon  time.Time
	Vectors  []feature.Vector
	CLV      *clv.Result
	Clusters *cluster.Result
	Profiles []segment.Profile
	Warnings []string
}

func (r *Runner) Run(ctx context.Context, rows []transaction.RawRow) (*Result, error) {
	start := time.Now()

	table, err := transaction.Clean(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageClean, err)
	}

	r.logger.Info("transactions cleaned",
		"raw", table.Stats.Raw, "kept", table.Stats.Kept, "dropped", table.Stats.Dropped())

	res := &Result{
		ID:      uuid.New(),
		Stats:   table.Stats,
		Horizon: table.Horizon(),
	}

	var clvErr error

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res.Vectors = feature.Build(table)
		return gctx.Err()
	})

	g.Go(func() error {
		estimate, err := clv.Estimate(table, r.CLV)
		if err != nil {
			clvErr = err
			return r.tolerate(StageCLV, err)
		}

		res.CLV = estimate
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if clvErr != nil {
		res.warn(r.logger, StageCLV, clvErr)
	}

	r.logger.Info("features built", "customers", len(res.Vectors))

	clusters, err := cluster.Cluster(ctx, res.Vectors, r.Cluster)
	if err != nil {
		if err := r.tolerate(StageCluster, err); err != nil {
			return nil, err
		}

		res.warn(r.logger, StageCluster, err)
	}

	res.Clusters = clusters

	var forecasts []clv.Forecast
	if res.CLV != nil {
		forecasts = res.CLV.Forecasts
	}

	res.Profiles = segment.Assemble(res.Vectors, forecasts, res.Clusters)

	r.logger.Info("pipeline finished",
		"run", res.ID, "customers", len(res.Profiles), "warnings", len(res.Warnings),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return res, nil
}

// tolerate returns nil for errors that only degrade the output, unless the
// runner is strict. Anything else is returned wrapped with the stage name.
func (r *Runner) tolerate(stage string, err error) error {
	var (
		fitErr  *clv.ModelFitError
		dataErr *cluster.InsufficientDataError
	)

	if !r.Strict && (errors.As(err, &fitErr) || errors.As(err, &dataErr)) {
		return nil
	}

	return fmt.Errorf("%s: %w", stage, err)
}

func (res *Result) warn(logger *slog.Logger, stage string, err error) {
	logger.Warn("stage skipped", "stage", stage, "error", err)
	res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", stage, err))
}

// Run converts the result into run metadata for persistence and reporting.
func (res *Result) Run(source string) *segment.Run {
	report := segment.Report{}

	if res.CLV != nil {
		report.BGNBD = &res.CLV.BGNBD
		report.GammaGamma = &res.CLV.GammaGamma
	}

	if res.Clusters != nil {
		report.Scaler = &res.Clusters.Scaler
		report.Evaluation = res.Clusters.Evaluation
		report.Quality = res.Clusters.Quality
	}

	for _, p := range res.Profiles {
		if p.CLV6m == nil {
			report.Unestimable++
		}

		if p.KMeans == nil {
			report.Unclustered++
		}
	}

	return &segment.Run{
		ID:        res.ID,
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Horizon:   res.Horizon,
		Stats:     res.Stats,
		Customers: len(res.Profiles),
		Report:    report,
		Warnings:  res.Warnings,
	}
}
