package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"tubefeed/internal/models"
)

type createFeedRequest struct {
	Title       string  `json:"title"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
}

func (h *Handlers) CreateFeed(w http.ResponseWriter, r *http.Request) {
	var req createFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	feed, err := h.store.CreateFeed(r.Context(), &models.Feed{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, feed)
}

func (h *Handlers) ListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.store.ListFeeds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feeds)
}

func (h *Handlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.store.GetFeed(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *Handlers) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Collect episode files before the cascade removes the rows.
	episodes, err := h.store.ListFeedEpisodes(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.DeleteFeed(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	for i := range episodes {
		if err := h.svc.RemoveEpisodeFiles(&episodes[i]); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ForceRefresh enqueues refresh jobs for every enabled collection of a
// feed, ignoring due-time.
func (h *Handlers) ForceRefresh(w http.ResponseWriter, r *http.Request) {
	queued, err := h.svc.ForceRefresh(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
}
