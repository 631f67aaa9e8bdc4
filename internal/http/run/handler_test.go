package run_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/segmenter/internal/cluster"
	"github.com/MrJamesThe3rd/segmenter/internal/clv"
	"github.com/MrJamesThe3rd/segmenter/internal/feature"
	"github.com/MrJamesThe3rd/segmenter/internal/http/run"
	"github.com/MrJamesThe3rd/segmenter/internal/importer"
	"github.com/MrJamesThe3rd/segmenter/internal/pipeline"
	"github.com/MrJamesThe3rd/segmenter/internal/segment"
)

func setup(t *testing.T, strict bool) (*segment.MockRepository, http.Handler) {
	t.Helper()

	ctrl := gomock.NewController(t)
	repo := segment.NewMockRepository(ctrl)

	h := run.NewHandler(
		segment.NewService(repo),
		importer.NewService(),
		pipeline.NewRunner(nil, clv.DefaultConfig(), cluster.DefaultConfig(), strict),
		1,
	)

	router := chi.NewRouter()
	router.Route("/runs", h.Routes)

	return repo, router
}

func do(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func storedRun() *segment.Run {
	return &segment.Run{
		ID:        uuid.MustParse("0b1c2d3e-4f50-4617-8293-a4b5c6d7e8f9"),
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Source:    "online_retail.csv",
		Customers: 2,
		Report:    segment.Report{BGNBD: &clv.BGNBD{R: 0.24, Alpha: 4.41, A: 0.79, B: 2.43}},
	}
}

func TestHandler_Latest(t *testing.T) {
	tests := []struct {
		name       string
		repoRun    *segment.Run
		repoErr    error
		wantStatus int
	}{
		{name: "Found", repoRun: storedRun(), wantStatus: http.StatusOK},
		{name: "Empty Store", repoErr: segment.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "Store Failure", repoErr: errors.New("connection refused"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, router := setup(t, false)
			repo.EXPECT().LatestRun(gomock.Any()).Return(tt.repoRun, tt.repoErr)

			rec := do(router, httptest.NewRequest(http.MethodGet, "/runs/latest", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus != http.StatusOK {
				return
			}

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "0b1c2d3e-4f50-4617-8293-a4b5c6d7e8f9", body["id"])
			assert.Equal(t, []any{}, body["warnings"])
			assert.InDelta(t, 0.24, body["models"].(map[string]any)["bgnbd"].(map[string]any)["r"], 1e-12)
		})
	}
}

func TestHandler_Get(t *testing.T) {
	t.Run("Invalid ID", func(t *testing.T) {
		_, router := setup(t, false)

		rec := do(router, httptest.NewRequest(http.MethodGet, "/runs/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Not Found", func(t *testing.T) {
		repo, router := setup(t, false)
		id := uuid.New()
		repo.EXPECT().GetRun(gomock.Any(), id).Return(nil, segment.ErrNotFound)

		rec := do(router, httptest.NewRequest(http.MethodGet, "/runs/"+id.String(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func profiles() []segment.Profile {
	return []segment.Profile{
		{
			CustomerID:     "12346",
			Frequency:      4,
			Monetary:       120.5,
			Shares:         feature.Shares{0.5, 0.5, 0, 0, 0},
			PrimaryCountry: "France",
			CLV6m:          new(42.0),
			KMeans:         new(1),
			Hierarchical:   new(1),
			GMM:            new(0),
		},
	}
}

func TestHandler_Profiles(t *testing.T) {
	run := storedRun()

	repo, router := setup(t, false)
	repo.EXPECT().GetRun(gomock.Any(), run.ID).Return(run, nil)
	repo.EXPECT().
		ListProfiles(gomock.Any(), run.ID, segment.ListFilter{Country: new("France"), KMeansCluster: new(1)}).
		Return(profiles(), nil)

	rec := do(router, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID.String()+"/profiles?country=France&kmeans=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count    int              `json:"count"`
		Profiles []map[string]any `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "12346", body.Profiles[0]["customer_id"])
	assert.Equal(t, 42.0, body.Profiles[0]["clv_6m"])
	assert.Equal(t, map[string]any{
		"Bags": 0.5, "Kitchen": 0.5, "HomeDecor": 0.0, "Toys": 0.0, "Other": 0.0,
	}, body.Profiles[0]["category_shares"])
}

func TestHandler_ProfilesInvalidFilter(t *testing.T) {
	_, router := setup(t, false)

	rec := do(router, httptest.NewRequest(http.MethodGet, "/runs/"+uuid.NewString()+"/profiles?kmeans=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ProfilesCSV(t *testing.T) {
	run := storedRun()

	repo, router := setup(t, false)
	repo.EXPECT().GetRun(gomock.Any(), run.ID).Return(run, nil)
	repo.EXPECT().ListProfiles(gomock.Any(), run.ID, segment.ListFilter{}).Return(profiles(), nil)

	rec := do(router, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID.String()+"/profiles.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "CustomerID,Recency,Frequency,Monetary,CatShare_Bags"))
	assert.Equal(t, "12346,0,4,120.5,0.5,0.5,0,0,0,France,0,42,1,1,0", lines[1])
}

func upload(t *testing.T, format, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer

	mw := multipart.NewWriter(&body)

	if format != "" {
		require.NoError(t, mw.WriteField("format", format))
	}

	if content != "" {
		part, err := mw.CreateFormFile("file", "export.csv")
		require.NoError(t, err)

		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/runs/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return req
}

const smallExport = `InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country
536365,85123A,LANTERN,6,12/1/2010 8:26,2.55,17850,United Kingdom
536366,22633,TEA CUP,6,12/8/2010 8:28,1.85,17850,United Kingdom
`

func TestHandler_Create(t *testing.T) {
	repo, router := setup(t, false)

	repo.EXPECT().
		SaveRun(gomock.Any(), gomock.Any(), gomock.Len(1)).
		DoAndReturn(func(_ context.Context, run *segment.Run, _ []segment.Profile) error {
			assert.Equal(t, "export.csv", run.Source)
			assert.Equal(t, 2, run.Stats.Kept)
			assert.Len(t, run.Warnings, 2)
			return nil
		})

	rec := do(router, upload(t, "", smallExport))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/api/v1/runs/"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1.0, body["customers"])
}

func TestHandler_CreateErrors(t *testing.T) {
	tests := []struct {
		name       string
		strict     bool
		format     string
		content    string
		wantStatus int
	}{
		{name: "Missing File", wantStatus: http.StatusBadRequest},
		{name: "Unknown Format", format: "xlsx", content: smallExport, wantStatus: http.StatusBadRequest},
		{name: "No Header", content: "a,b\n1,2\n", wantStatus: http.StatusBadRequest},
		{
			name:       "No Usable Rows",
			content:    strings.SplitN(smallExport, "\n", 2)[0] + "\n1,A,MUG,-1,12/1/2010 8:26,1.0,17850,France\n",
			wantStatus: http.StatusBadRequest,
		},
		{name: "Strict Model Failure", strict: true, content: smallExport, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router := setup(t, tt.strict)

			rec := do(router, upload(t, tt.format, tt.content))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}
