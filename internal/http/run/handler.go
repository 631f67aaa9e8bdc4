package run

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/segmenter/internal/cluster"
	"github.com/MrJamesThe3rd/segmenter/internal/clv"
	"github.com/MrJamesThe3rd/segmenter/internal/export"
	"github.com/MrJamesThe3rd/segmenter/internal/importer"
	"github.com/MrJamesThe3rd/segmenter/internal/pipeline"
	"github.com/MrJamesThe3rd/segmenter/internal/segment"
	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

type Handler struct {
	segments  *segment.Service
	importer  *importer.Service
	runner    *pipeline.Runner
	maxUpload int64
}

func NewHandler(segments *segment.Service, importSvc *importer.Service, runner *pipeline.Runner, maxUploadMB int64) *Handler {
	return &Handler{
		segments:  segments,
		importer:  importSvc,
		runner:    runner,
		maxUpload: maxUploadMB << 20,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/latest", h.latest)
	r.Get("/{id}", h.get)
	r.Get("/{id}/profiles", h.profiles)
	r.Get("/{id}/profiles.csv", h.profilesCSV)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rows, err := h.importer.Import(importer.Format(r.FormValue("format")), file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.runner.Run(r.Context(), rows)
	if err != nil {
		var (
			fitErr  *clv.ModelFitError
			dataErr *cluster.InsufficientDataError
		)

		switch {
		case errors.Is(err, transaction.ErrEmptyDataset):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.As(err, &fitErr), errors.As(err, &dataErr):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			slog.Error("pipeline failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}

		return
	}

	run := result.Run(header.Filename)

	if err := h.segments.Save(r.Context(), run, result.Profiles); err != nil {
		slog.Error("failed to save run", "run", run.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/v1/runs/"+run.ID.String())
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(toRunResponse(run)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	run, err := h.segments.Latest(r.Context())
	if err != nil {
		writeLookupError(w, err)
		return
	}

	writeJSON(w, toRunResponse(run))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	run, err := h.segments.Get(r.Context(), id)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	writeJSON(w, toRunResponse(run))
}

func (h *Handler) profiles(w http.ResponseWriter, r *http.Request) {
	id, filter, ok := parseProfilesRequest(w, r)
	if !ok {
		return
	}

	profiles, err := h.segments.Profiles(r.Context(), id, filter)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	writeJSON(w, profileListResponse{
		RunID:    id,
		Count:    len(profiles),
		Profiles: nonNil(profiles),
	})
}

func (h *Handler) profilesCSV(w http.ResponseWriter, r *http.Request) {
	id, filter, ok := parseProfilesRequest(w, r)
	if !ok {
		return
	}

	profiles, err := h.segments.Profiles(r.Context(), id, filter)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.ProfilesFile+`"`)

	if err := export.WriteCSV(w, profiles); err != nil {
		slog.Error("failed to write csv", "run", id, "error", err)
	}
}

func parseProfilesRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, segment.ListFilter, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, segment.ListFilter{}, false
	}

	filter := segment.ListFilter{}

	if s := r.URL.Query().Get("country"); s != "" {
		filter.Country = new(s)
	}

	if s := r.URL.Query().Get("kmeans"); s != "" {
		k, err := strconv.Atoi(s)
		if err != nil || k < 0 {
			http.Error(w, "invalid kmeans cluster", http.StatusBadRequest)
			return uuid.Nil, segment.ListFilter{}, false
		}

		filter.KMeansCluster = new(k)
	}

	return id, filter, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, segment.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	slog.Error("lookup failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
