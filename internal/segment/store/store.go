package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/segmenter/internal/segment"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Expected column order: id, created_at, source, horizon, stats, customers, report, warnings
const selectRunColumns = `id, created_at, source, horizon, stats, customers, report, warnings`

func scanRun(s scanner) (*segment.Run, error) {
	var run segment.Run

	var stats, report, warnings []byte

	if err := s.Scan(
		&run.ID, &run.CreatedAt, &run.Source, &run.Horizon,
		&stats, &run.Customers, &report, &warnings,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stats, &run.Stats); err != nil {
		return nil, fmt.Errorf("decoding clean stats: %w", err)
	}

	if err := json.Unmarshal(report, &run.Report); err != nil {
		return nil, fmt.Errorf("decoding model report: %w", err)
	}

	if err := json.Unmarshal(warnings, &run.Warnings); err != nil {
		return nil, fmt.Errorf("decoding warnings: %w", err)
	}

	run.CreatedAt = run.CreatedAt.UTC()
	run.Horizon = run.Horizon.UTC()

	return &run, nil
}

// Expected column order: customer_id, recency, frequency, monetary, shares, primary_country, is_uk,
// clv_6m, expected_purchases, prob_alive, cluster_kmeans, cluster_hierarchical, cluster_gmm
const selectProfileColumns = `
	customer_id, recency, frequency, monetary, shares, primary_country, is_uk,
	clv_6m, expected_purchases, prob_alive, cluster_kmeans, cluster_hierarchical, cluster_gmm
`

func scanProfile(s scanner) (segment.Profile, error) {
	var p segment.Profile

	var shares []byte

	var clv, purchases, alive sql.NullFloat64

	var kmeans, hierarchical, gmm sql.NullInt64

	if err := s.Scan(
		&p.CustomerID, &p.Recency, &p.Frequency, &p.Monetary, &shares, &p.PrimaryCountry, &p.IsUK,
		&clv, &purchases, &alive, &kmeans, &hierarchical, &gmm,
	); err != nil {
		return segment.Profile{}, err
	}

	if err := json.Unmarshal(shares, &p.Shares); err != nil {
		return segment.Profile{}, fmt.Errorf("decoding shares: %w", err)
	}

	p.CLV6m = nullFloat(clv)
	p.ExpectedPurchases = nullFloat(purchases)
	p.ProbAlive = nullFloat(alive)
	p.KMeans = nullInt(kmeans)
	p.Hierarchical = nullInt(hierarchical)
	p.GMM = nullInt(gmm)

	return p, nil
}

// SaveRun writes the run and all of its profiles in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *segment.Run, profiles []segment.Profile) error {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("encoding clean stats: %w", err)
	}

	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("encoding model report: %w", err)
	}

	warnings, err := json.Marshal(nonNil(run.Warnings))
	if err != nil {
		return fmt.Errorf("encoding warnings: %w", err)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	runQuery := `
		INSERT INTO segment_runs (id, created_at, source, horizon, stats, customers, report, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if _, err := dbTx.ExecContext(ctx, runQuery,
		run.ID, run.CreatedAt, run.Source, run.Horizon, stats, run.Customers, report, warnings,
	); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO segment_profiles (run_id, `+selectProfileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`)
	if err != nil {
		return fmt.Errorf("preparing profile insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range profiles {
		shares, err := json.Marshal(p.Shares)
		if err != nil {
			return fmt.Errorf("encoding shares of %s: %w", p.CustomerID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			run.ID, p.CustomerID, p.Recency, p.Frequency, p.Monetary, shares, p.PrimaryCountry, p.IsUK,
			p.CLV6m, p.ExpectedPurchases, p.ProbAlive, p.KMeans, p.Hierarchical, p.GMM,
		); err != nil {
			return fmt.Errorf("inserting profile %s: %w", p.CustomerID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*segment.Run, error) {
	query := `SELECT ` + selectRunColumns + ` FROM segment_runs WHERE id = $1`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, segment.ErrNotFound
		}

		return nil, fmt.Errorf("getting run: %w", err)
	}

	return run, nil
}

func (s *Store) LatestRun(ctx context.Context) (*segment.Run, error) {
	query := `SELECT ` + selectRunColumns + ` FROM segment_runs ORDER BY created_at DESC LIMIT 1`

	run, err := scanRun(s.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, segment.ErrNotFound
		}

		return nil, fmt.Errorf("getting latest run: %w", err)
	}

	return run, nil
}

func (s *Store) ListProfiles(ctx context.Context, runID uuid.UUID, filter segment.ListFilter) ([]segment.Profile, error) {
	query, args := profilesQuery(runID, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var profiles []segment.Profile

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}

		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profile rows: %w", err)
	}

	return profiles, nil
}

// profilesQuery builds the filtered profile listing. Rows are ordered bytewise
// by customer ID, the order the pipeline produces them in.
func profilesQuery(runID uuid.UUID, filter segment.ListFilter) (string, []any) {
	query := `SELECT ` + selectProfileColumns + ` FROM segment_profiles WHERE run_id = $1`

	args := []any{runID}

	argIdx := 2

	if filter.Country != nil {
		query += fmt.Sprintf(" AND primary_country = $%d", argIdx)

		args = append(args, *filter.Country)
		argIdx++
	}

	if filter.KMeansCluster != nil {
		query += fmt.Sprintf(" AND cluster_kmeans = $%d", argIdx)

		args = append(args, *filter.KMeansCluster)
	}

	query += ` ORDER BY customer_id COLLATE "C" ASC`

	return query, args
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}

	return new(v.Float64)
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}

	return new(int(v.Int64))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}

var _ segment.Repository = (*Store)(nil)
