package run

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/segmenter/internal/segment"
	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

type runResponse struct {
	ID        uuid.UUID              `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	Source    string                 `json:"source"`
	Horizon   time.Time              `json:"horizon"`
	Stats     transaction.CleanStats `json:"clean_stats"`
	Customers int                    `json:"customers"`
	Models    segment.Report         `json:"models"`
	Warnings  []string               `json:"warnings"`
}

type profileListResponse struct {
	RunID    uuid.UUID         `json:"run_id"`
	Count    int               `json:"count"`
	Profiles []segment.Profile `json:"profiles"`
}

func toRunResponse(run *segment.Run) runResponse {
	return runResponse{
		ID:        run.ID,
		CreatedAt: run.CreatedAt,
		Source:    run.Source,
		Horizon:   run.Horizon,
		Stats:     run.Stats,
		Customers: run.Customers,
		Models:    run.Report,
		Warnings:  nonNil(run.Warnings),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
