package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wastetrack/bulk-movements/internal/auth"
	"github.com/wastetrack/bulk-movements/internal/domain"
)

// Handler exposes the batch service as a REST surface.
type Handler struct {
	service *Service
}

// NewHTTPHandler builds the batch router.
func NewHTTPHandler(service *Service) http.Handler {
	h := &Handler{service: service}

	r := mux.NewRouter()
	r.HandleFunc("/batches", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/batches/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/batches/{id}/rows/{rowNumber}", h.handleGetRow).Methods(http.MethodGet)
	r.HandleFunc("/batches/{id}/columns/{columnRef}", h.handleGetColumn).Methods(http.MethodGet)
	r.HandleFunc("/batches/{id}/finalize", h.handleFinalize).Methods(http.MethodPost)
	r.HandleFunc("/batches/{id}/submissions", h.handleListSubmissions).Methods(http.MethodGet)
	r.HandleFunc("/batches/{id}/download", h.handleDownload).Methods(http.MethodGet)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "account scope required")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	batch, err := h.service.Create(r.Context(), accountID, header.Filename, data)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": batch.ID.String()})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	accountID, batchID, ok := h.scope(w, r)
	if !ok {
		return
	}

	batch, err := h.service.Get(r.Context(), accountID, batchID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    batch.ID,
		"state": batch.State,
	})
}

func (h *Handler) handleGetRow(w http.ResponseWriter, r *http.Request) {
	accountID, batchID, ok := h.scope(w, r)
	if !ok {
		return
	}

	rowNumber, err := strconv.Atoi(mux.Vars(r)["rowNumber"])
	if err != nil || rowNumber < 0 {
		writeError(w, http.StatusBadRequest, "invalid row number")
		return
	}

	rowError, err := h.service.GetRowError(r.Context(), accountID, batchID, rowNumber)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rowError)
}

func (h *Handler) handleGetColumn(w http.ResponseWriter, r *http.Request) {
	accountID, batchID, ok := h.scope(w, r)
	if !ok {
		return
	}

	columnRef := strings.TrimSpace(mux.Vars(r)["columnRef"])
	if columnRef == "" {
		writeError(w, http.StatusBadRequest, "invalid column ref")
		return
	}

	columnError, err := h.service.GetColumnError(r.Context(), accountID, batchID, columnRef)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, columnError)
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	accountID, batchID, ok := h.scope(w, r)
	if !ok {
		return
	}

	submissions, err := h.service.Finalize(r.Context(), accountID, batchID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"submissions": submissions})
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	accountID, batchID, ok := h.scope(w, r)
	if !ok {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = parsed
	}

	result, err := h.service.ListSubmissions(r.Context(), accountID, batchID, page)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	accountID, batchID, ok := h.scope(w, r)
	if !ok {
		return
	}

	fileName, data, err := h.service.DownloadSource(r.Context(), accountID, batchID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	contentType := "text/csv"
	if strings.ToLower(filepath.Ext(fileName)) == ".xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// scope resolves the account id and batch id shared by every batch route.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "account scope required")
		return uuid.Nil, uuid.Nil, false
	}

	batchID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return uuid.Nil, uuid.Nil, false
	}
	return accountID, batchID, true
}

// writeServiceError maps domain error kinds to HTTP statuses. Anything
// unrecognized is logged in full and reported to the client as a fixed
// message only.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, "the batch is not in a state that allows this operation")
	case errors.Is(err, ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[HTTP] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
