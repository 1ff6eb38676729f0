package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListDataSources handles GET /data-sources?projectId=.
func (h *Handler) ListDataSources(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	list, total, err := h.sources.List(r.Context(), r.URL.Query().Get("projectId"), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(mapSlice(list, dataSourceToAPI), page, total))
}

// GetDataSource handles GET /data-sources/{id}.
func (h *Handler) GetDataSource(w http.ResponseWriter, r *http.Request) {
	ds, err := h.sources.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataSourceToAPI(*ds))
}

// ListDataEntries handles GET /data-sources/{id}/entries.
func (h *Handler) ListDataEntries(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, total, err := h.sources.ListEntries(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(mapSlice(entries, dataEntryToAPI), page, total))
}
