package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/MrJamesThe3rd/segmenter/internal/feature"
	"github.com/MrJamesThe3rd/segmenter/internal/segment"
)

// Missing is written for values that are unestimable or unclustered.
const Missing = "NA"

const (
	ProfilesFile = "profiles.csv"
	ReportFile   = "report.yaml"
)

// Header returns the column names of the profile table.
func Header() []string {
	cols := []string{"CustomerID", "Recency", "Frequency", "Monetary"}
	for _, c := range feature.Categories() {
		cols = append(cols, c.Column())
	}

	return append(cols, "PrimaryCountry", "IsUK", "CLV_6m", "Cluster_KMeans", "Cluster_Hierarchical", "Cluster_GMM")
}

// WriteCSV writes the profiles as the output table, one row per customer.
func WriteCSV(w io.Writer, profiles []segment.Profile) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, p := range profiles {
		if err := cw.Write(record(p)); err != nil {
			return fmt.Errorf("writing customer %s: %w", p.CustomerID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

func record(p segment.Profile) []string {
	rec := []string{
		p.CustomerID,
		strconv.Itoa(p.Recency),
		strconv.Itoa(p.Frequency),
		formatFloat(p.Monetary),
	}

	for _, share := range p.Shares {
		rec = append(rec, formatFloat(share))
	}

	isUK := "0"
	if p.IsUK {
		isUK = "1"
	}

	return append(rec,
		p.PrimaryCountry,
		isUK,
		optionalFloat(p.CLV6m),
		optionalInt(p.KMeans),
		optionalInt(p.Hierarchical),
		optionalInt(p.GMM),
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return Missing
	}

	return formatFloat(*v)
}

func optionalInt(v *int) string {
	if v == nil {
		return Missing
	}

	return strconv.Itoa(*v)
}

// WriteReport writes the run metadata and model report as YAML.
func WriteReport(w io.Writer, run *segment.Run) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	return enc.Close()
}

// Service exports persisted runs.
type Service struct {
	segments *segment.Service
}

func NewService(segments *segment.Service) *Service {
	return &Service{segments: segments}
}

// Export writes the profile table and the report of a stored run into
// outputDir and returns the paths written.
func (s *Service) Export(ctx context.Context, runID uuid.UUID, outputDir string) ([]string, error) {
	run, err := s.segments.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}

	profiles, err := s.segments.Profiles(ctx, runID, segment.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}

	return WriteFiles(outputDir, run, profiles)
}

// WriteFiles writes ProfilesFile and ReportFile into dir, creating it if
// needed.
func WriteFiles(dir string, run *segment.Run, profiles []segment.Profile) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	profilesPath := filepath.Join(dir, ProfilesFile)
	if err := writeFile(profilesPath, func(w io.Writer) error { return WriteCSV(w, profiles) }); err != nil {
		return nil, err
	}

	reportPath := filepath.Join(dir, ReportFile)
	if err := writeFile(reportPath, func(w io.Writer) error { return WriteReport(w, run) }); err != nil {
		return nil, err
	}

	return []string{profilesPath, reportPath}, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}

	return nil
}
