package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"tubefeed/internal/config"
	"tubefeed/internal/ingest"
	"tubefeed/internal/store"
)

// Handlers is the HTTP surface over the ingestion core. It never touches
// media or the queue directly; everything goes through the service.
type Handlers struct {
	svc   *ingest.Service
	store store.Store
	cfg   *config.Config
}

func New(svc *ingest.Service, st store.Store, cfg *config.Config) *Handlers {
	return &Handlers{svc: svc, store: st, cfg: cfg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError maps service errors onto HTTP statuses without leaking
// internals to the client.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		http.Error(w, "Already exists", http.StatusConflict)
	case errors.Is(err, ingest.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ingest.ErrUnsupportedFile):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
