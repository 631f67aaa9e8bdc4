package segment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/segmenter/internal/cluster"
	"github.com/MrJamesThe3rd/segmenter/internal/clv"
	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

var ErrNotFound = errors.New("not found")

// Report is the model metadata of a run. Sections of models that could not
// be fitted are nil.
type Report struct {
	BGNBD       *clv.BGNBD                         `yaml:"bgnbd,omitempty" json:"bgnbd,omitempty"`
	GammaGamma  *clv.GammaGamma                    `yaml:"gamma_gamma,omitempty" json:"gamma_gamma,omitempty"`
	Unestimable int                                `yaml:"unestimable_customers" json:"unestimable_customers"`
	Scaler      *cluster.Scaler                    `yaml:"scaler,omitempty" json:"scaler,omitempty"`
	Evaluation  []cluster.Candidate                `yaml:"evaluation,omitempty" json:"evaluation,omitempty"`
	Quality     map[cluster.Method]cluster.Quality `yaml:"quality,omitempty" json:"quality,omitempty"`
	Unclustered int                                `yaml:"unclustered_customers" json:"unclustered_customers"`
}

// Run groups the profiles produced by one pipeline execution.
type Run struct {
	ID        uuid.UUID              `yaml:"id" json:"id"`
	CreatedAt time.Time              `yaml:"created_at" json:"created_at"`
	Source    string                 `yaml:"source" json:"source"`
	Horizon   time.Time              `yaml:"horizon" json:"horizon"`
	Stats     transaction.CleanStats `yaml:"clean_stats" json:"clean_stats"`
	Customers int                    `yaml:"customers" json:"customers"`
	Report    Report                 `yaml:"models" json:"models"`
	Warnings  []string               `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=segment
type Repository interface {
	SaveRun(ctx context.Context, run *Run, profiles []Profile) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	ListProfiles(ctx context.Context, runID uuid.UUID, filter ListFilter) ([]Profile, error)
}

type ListFilter struct {
	Country       *string
	KMeansCluster *int
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Save persists a run with its profiles, assigning the run an ID if it has
// none.
func (s *Service) Save(ctx context.Context, run *Run, profiles []Profile) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	run.Customers = len(profiles)

	if err := s.repo.SaveRun(ctx, run, profiles); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	return s.repo.GetRun(ctx, id)
}

func (s *Service) Latest(ctx context.Context) (*Run, error) {
	return s.repo.LatestRun(ctx)
}

// Profiles lists the profiles of a run. An unknown run is ErrNotFound rather
// than an empty list.
func (s *Service) Profiles(ctx context.Context, runID uuid.UUID, filter ListFilter) ([]Profile, error) {
	if _, err := s.repo.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	return s.repo.ListProfiles(ctx, runID, filter)
}
