package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "bestiary/pkg/domain-errors"
)

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.queries.Status(r.Context())
	if err != nil {
		h.logFailure(r, "read status", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.queries.Record(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	doc, err := h.queries.Document(r.Context(), id)
	if err != nil {
		h.logFailure(r, "render document", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func recordID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "record id must be a positive integer"))
		return 0, false
	}
	return id, true
}
