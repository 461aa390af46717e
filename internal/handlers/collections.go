package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"tubefeed/internal/store"
)

func (h *Handlers) ListCollections(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListFeedCollectionSources(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

type updateCollectionRequest struct {
	Enabled            *bool `json:"enabled"`
	RefreshIntervalSec *int  `json:"refresh_interval_sec"`
	ClearInterval      bool  `json:"clear_interval"`
}

func (h *Handlers) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	var req updateCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	src, err := h.svc.UpdateCollection(r.Context(), mux.Vars(r)["id"], store.CollectionUpdate{
		Enabled:            req.Enabled,
		RefreshIntervalSec: req.RefreshIntervalSec,
		ClearInterval:      req.ClearInterval,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

// DeleteCollection stops tracking a playlist; member episodes stay.
func (h *Handlers) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveCollection(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
