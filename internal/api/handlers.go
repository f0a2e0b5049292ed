package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/recordservice"
)

const maxBodyBytes = 64 << 10

// Handler holds API route handlers.
type Handler struct {
	svc    *recordservice.Service
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *recordservice.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

func recordAddress(r *http.Request) models.RecordAddress {
	return models.RecordAddress{
		ProgramID: chi.URLParam(r, "program"),
		Key:       chi.URLParam(r, "key"),
	}
}

// ListRecords handles GET /api/programs/{program}/records.
//
//	@Summary		List initialized records of a program
//	@Tags			records
//	@Produce		json
//	@Param			program	path		string	true	"Program ID"
//	@Success		200		{object}	RecordListResponse
//	@Router			/programs/{program}/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListRecords(r.Context(), chi.URLParam(r, "program"))
	if err != nil {
		writeError(w, h.logger, "list records", err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: list})
}

// GetRecord handles GET /api/programs/{program}/records/{key}.
//
//	@Summary		Fetch a record with its contributions
//	@Tags			records
//	@Produce		json
//	@Param			program	path		string	true	"Program ID"
//	@Param			key		path		string	true	"Record key"
//	@Success		200		{object}	RecordDetail
//	@Success		304
//	@Failure		404		{object}	errResponse
//	@Router			/programs/{program}/records/{key} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRecord(r.Context(), recordAddress(r))
	if err != nil {
		writeError(w, h.logger, "get record", err)
		return
	}
	etag := `"` + rec.Digest + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// InitializeRecord handles POST /api/programs/{program}/records/{key}.
//
//	@Summary		Create an empty record owned by the caller
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			body	body		InitializeRecordRequest	true	"Owner"
//	@Success		201		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/programs/{program}/records/{key} [post]
func (h *Handler) InitializeRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req InitializeRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}
	caller, _ := identityFrom(r.Context())
	if req.Owner != caller {
		writeJSON(w, http.StatusUnauthorized, errorBody("owner does not match token subject"))
		return
	}

	rec, err := h.svc.InitializeRecord(r.Context(), recordAddress(r), req.Owner)
	if err != nil {
		writeError(w, h.logger, "initialize record", err)
		return
	}
	w.Header().Set("ETag", `"`+rec.Digest+`"`)
	writeJSON(w, http.StatusCreated, rec)
}

// AppendContribution handles POST /api/programs/{program}/records/{key}/contributions.
//
//	@Summary		Append a word to a record
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AppendContributionRequest	true	"Contribution"
//	@Success		201		{object}	models.Contribution
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/programs/{program}/records/{key}/contributions [post]
func (h *Handler) AppendContribution(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req AppendContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}
	caller, _ := identityFrom(r.Context())
	if req.Author != caller {
		writeJSON(w, http.StatusUnauthorized, errorBody("author does not match token subject"))
		return
	}

	c, err := h.svc.AppendContribution(r.Context(), recordAddress(r), req.Author, req.Text)
	if err != nil {
		writeError(w, h.logger, "append contribution", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
