package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"reviewpulse/internal/app"
	"reviewpulse/internal/domain"
)

type Handlers struct {
	Q    *app.QueryService
	Ing  *app.IngestionService
	Repo domain.ReviewRepository
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/kpis", h.allKPIs)
	s.mux.Get("/v1/companies/{id}/kpis", h.companyKPIs)
	s.mux.Get("/v1/companies/{id}/trend", h.trend)
	s.mux.Get("/v1/companies/{id}/reviews", h.listReviews)
	s.mux.Post("/v1/companies/{id}/fetch", h.manualFetch)
	s.mux.Put("/v1/companies/{id}/reviews/{reviewID}/reply", h.editReply)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func companyID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handlers) allKPIs(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.KPIs(r.Context(), nil)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to compute KPIs")
		return
	}
	writeJSON(w, r, out)
}

func (h *Handlers) companyKPIs(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	out, err := h.Q.KPIs(r.Context(), &id)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to compute KPIs")
		return
	}
	writeJSON(w, r, out)
}

func (h *Handlers) trend(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	if b := r.URL.Query().Get("bucket"); b != "" && b != "month" {
		writeProblem(w, http.StatusBadRequest, "Invalid bucket", "only bucket=month is supported")
		return
	}
	fill := r.URL.Query().Get("fill") == "1"
	out, err := h.Q.Trend(r.Context(), id, fill)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to compute trend")
		return
	}
	if out == nil {
		out = []domain.TrendPoint{}
	}
	writeJSON(w, r, out)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}
	out, err := h.Q.ListReviews(r.Context(), id, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to list reviews")
		return
	}
	if out == nil {
		out = []domain.Review{}
	}
	writeJSON(w, r, out)
}

// manualFetch runs the pipeline once for a company, outside the periodic
// cycle, and surfaces the typed error to the caller.
func (h *Handlers) manualFetch(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	c, err := h.Repo.GetCompany(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "company not found")
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to load company")
		return
	}

	added, err := h.Ing.IngestCompany(r.Context(), c)
	switch {
	case err == nil:
		writeJSON(w, r, map[string]any{"added": added})
	case errors.Is(err, domain.ErrProviderRejected):
		writeProblem(w, http.StatusUnprocessableEntity, "Provider Rejected", "bad credentials or invalid place id")
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeProblem(w, http.StatusServiceUnavailable, "Provider Unavailable", "provider temporarily unavailable; try again later")
	case errors.Is(err, domain.ErrStorageUnavailable):
		writeProblem(w, http.StatusServiceUnavailable, "Storage Unavailable", "storage temporarily unavailable; try again later")
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "fetch failed")
	}
}

func (h *Handlers) editReply(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	reviewID := chi.URLParam(r, "reviewID")
	if reviewID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid review ID", "reviewID is required")
		return
	}
	var body struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Reply == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", `expected {"reply": "..."}`)
		return
	}
	if err := h.Q.EditReply(r.Context(), id, reviewID, body.Reply); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "review not found")
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to save reply")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
