package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/segmenter/cmd/segment/internal/view"
	"github.com/MrJamesThe3rd/segmenter/internal/config"
	"github.com/MrJamesThe3rd/segmenter/internal/database"
	"github.com/MrJamesThe3rd/segmenter/internal/export"
	"github.com/MrJamesThe3rd/segmenter/internal/importer"
	"github.com/MrJamesThe3rd/segmenter/internal/importer/sqlsource"
	"github.com/MrJamesThe3rd/segmenter/internal/pipeline"
	"github.com/MrJamesThe3rd/segmenter/internal/segment"
	segmentStore "github.com/MrJamesThe3rd/segmenter/internal/segment/store"
	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

func main() {
	var (
		input  = flag.String("input", "", "Transaction export to read (\"-\" for stdin); SOURCE_DSN is used when empty")
		format = flag.String("format", string(importer.FormatAuto), "Export layout: auto, online-retail, online-retail-ii")
		out    = flag.String("out", "out", "Directory for profiles.csv and report.yaml")
		save   = flag.Bool("save", false, "Persist the run to the database")
		strict = flag.Bool("strict", false, "Fail when a model cannot be fitted instead of warning")
		kMin   = flag.Int("k-min", 0, "Smallest candidate cluster count (overrides CLUSTER_K_MIN)")
		kMax   = flag.Int("k-max", 0, "Largest candidate cluster count (overrides CLUSTER_K_MAX)")
		seed   = flag.Uint64("seed", 0, "Clustering seed (overrides CLUSTER_SEED)")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strict":
			cfg.Pipeline.Strict = *strict
		case "k-min":
			cfg.Cluster.KMin = *kMin
		case "k-max":
			cfg.Cluster.KMax = *kMax
		case "seed":
			cfg.Cluster.Seed = *seed
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *input, importer.Format(*format), *out, *save); err != nil {
		slog.Error("segmentation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, input string, format importer.Format, outDir string, save bool) error {
	rows, source, err := load(ctx, cfg, input, format)
	if err != nil {
		return err
	}

	clusterCfg := cfg.ClusterConfig()

	bar := view.NewProgress(os.Stderr, clusterCfg.KRange.Max-clusterCfg.KRange.Min+1)
	clusterCfg.OnEvaluate = func(n int) { bar.ChangeMax(n) }
	clusterCfg.OnCandidate = func(int) { _ = bar.Add(1) }

	runner := pipeline.NewRunner(slog.Default(), cfg.CLVConfig(), clusterCfg, cfg.Pipeline.Strict)

	result, err := runner.Run(ctx, rows)
	_ = bar.Finish()

	if err != nil {
		return err
	}

	segRun := result.Run(source)

	paths, err := export.WriteFiles(outDir, segRun, result.Profiles)
	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if save {
		db, err := database.New(cfg.ConnectionString())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := segment.NewService(segmentStore.New(db)).Save(ctx, segRun, result.Profiles); err != nil {
			return err
		}

		slog.Info("run saved", "run", segRun.ID)
	}

	fmt.Println(view.Render(result, paths))

	return nil
}

// load reads raw rows from the input file, stdin, or the SOURCE_DSN table.
func load(ctx context.Context, cfg *config.Config, input string, format importer.Format) ([]transaction.RawRow, string, error) {
	if input == "" {
		if cfg.Source.DSN == "" {
			return nil, "", fmt.Errorf("no input: pass -input or set SOURCE_DSN")
		}

		db, dialect, err := database.Open(cfg.Source.DSN)
		if err != nil {
			return nil, "", err
		}
		defer db.Close()

		rows, err := sqlsource.Load(ctx, db, cfg.Source.Table)
		if err != nil {
			return nil, "", err
		}

		return rows, fmt.Sprintf("%s:%s", dialect, cfg.Source.Table), nil
	}

	var (
		r      io.Reader = os.Stdin
		source           = "stdin"
	)

	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return nil, "", fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()

		r, source = f, filepath.Base(input)
	}

	rows, err := importer.NewService().Import(format, r)
	if err != nil {
		return nil, "", fmt.Errorf("importing %s: %w", source, err)
	}

	return rows, source, nil
}
