package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tubefeed/internal/ingest"
	"tubefeed/internal/store"
)

type submitIngestRequest struct {
	URLs []string `json:"urls"`
}

type submitIngestResponse struct {
	AcceptedItems       int `json:"accepted_items"`
	AcceptedCollections int `json:"accepted_collections"`
	Skipped             int `json:"skipped"`
}

// SubmitIngest accepts a batch of video/playlist URLs for a feed.
func (h *Handlers) SubmitIngest(w http.ResponseWriter, r *http.Request) {
	var req submitIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if len(req.URLs) == 0 {
		http.Error(w, "At least one URL is required", http.StatusBadRequest)
		return
	}

	result, err := h.svc.SubmitIngest(r.Context(), mux.Vars(r)["id"], req.URLs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitIngestResponse{
		AcceptedItems:       result.AcceptedItems,
		AcceptedCollections: result.AcceptedCollections,
		Skipped:             result.Skipped,
	})
}

// SubmitUpload accepts a multipart audio upload for a feed.
func (h *Handlers) SubmitUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "File too large or malformed upload", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A 'file' part is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	meta := ingest.UploadMetadata{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}
	if v := r.FormValue("published_at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "published_at must be RFC 3339", http.StatusBadRequest)
			return
		}
		meta.PublishedAt = &t
	}

	ep, err := h.svc.SubmitUpload(r.Context(), mux.Vars(r)["id"], header.Filename, file, meta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ep)
}

func (h *Handlers) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	episodes, err := h.store.ListFeedEpisodes(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, episodes)
}

func (h *Handlers) GetEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := h.store.GetEpisode(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

type updateEpisodeRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	PublishedAt *time.Time `json:"published_at"`
}

// UpdateEpisode edits the user-editable fields only; status and media
// fields are never writable here.
func (h *Handlers) UpdateEpisode(w http.ResponseWriter, r *http.Request) {
	var req updateEpisodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	ep, err := h.svc.UpdateEpisode(r.Context(), mux.Vars(r)["id"], store.EpisodeUpdate{
		Title:       req.Title,
		Description: req.Description,
		PublishedAt: req.PublishedAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// RevertEpisode restores the metadata captured at ingestion time.
func (h *Handlers) RevertEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := h.svc.RevertEpisode(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// RetryEpisode re-enqueues a failed episode. 409 for any other state.
func (h *Handlers) RetryEpisode(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Retry(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) DeleteEpisode(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEpisode(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
