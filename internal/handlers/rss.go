package handlers

import (
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"tubefeed/internal/feed"
)

// GetRSSFeed renders the public feed document. Unauthenticated: podcast
// clients fetch it directly.
func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	feedID := mux.Vars(r)["id"]

	f, err := h.store.GetFeed(r.Context(), feedID)
	if err != nil {
		http.Error(w, "Feed not found", http.StatusNotFound)
		return
	}

	episodes, err := h.store.ListReadyEpisodes(r.Context(), feedID)
	if err != nil {
		log.Printf("Error getting episodes: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateRSS(f, episodes, h.cfg.BaseURL)
	if err != nil {
		log.Printf("Error generating RSS: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}

// ServeAudioFile serves a normalized audio file from the audio dir.
func (h *Handlers) ServeAudioFile(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Reject anything that could escape the audio directory.
	if filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, filepath.Join(h.cfg.AudioDir, filename))
}
