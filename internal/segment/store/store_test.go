package store

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/segmenter/internal/segment"
)

func TestProfilesQuery(t *testing.T) {
	runID := uuid.MustParse("0b1c2d3e-4f50-4617-8293-a4b5c6d7e8f9")

	tests := []struct {
		name      string
		filter    segment.ListFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "No Filter",
			wantWhere: "WHERE run_id = $1 ORDER",
			wantArgs:  []any{runID},
		},
		{
			name:      "Country",
			filter:    segment.ListFilter{Country: new("France")},
			wantWhere: "WHERE run_id = $1 AND primary_country = $2 ORDER",
			wantArgs:  []any{runID, "France"},
		},
		{
			name:      "Country And Cluster",
			filter:    segment.ListFilter{Country: new("France"), KMeansCluster: new(2)},
			wantWhere: "WHERE run_id = $1 AND primary_country = $2 AND cluster_kmeans = $3 ORDER",
			wantArgs:  []any{runID, "France", 2},
		},
		{
			name:      "Cluster Only",
			filter:    segment.ListFilter{KMeansCluster: new(0)},
			wantWhere: "WHERE run_id = $1 AND cluster_kmeans = $2 ORDER",
			wantArgs:  []any{runID, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := profilesQuery(runID, tt.filter)

			assert.Contains(t, query, tt.wantWhere)
			assert.Equal(t, tt.wantArgs, args)
			assert.True(t, strings.HasSuffix(query, `ORDER BY customer_id COLLATE "C" ASC`), query)
		})
	}
}
