package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"tubefeed/internal/middleware"
)

// Router wires the HTTP surface. The admin API sits behind the API key
// and rate limiter; RSS and audio are public so podcast clients work.
func (h *Handlers) Router(rl *middleware.RateLimiterMiddleware) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/rss/{id}", h.GetRSSFeed).Methods(http.MethodGet)
	r.HandleFunc("/audio/{filename}", h.ServeAudioFile).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(h.cfg.APIKey))
	api.Use(rl.Middleware)

	api.HandleFunc("/feeds", h.CreateFeed).Methods(http.MethodPost)
	api.HandleFunc("/feeds", h.ListFeeds).Methods(http.MethodGet)
	api.HandleFunc("/feeds/{id}", h.GetFeed).Methods(http.MethodGet)
	api.HandleFunc("/feeds/{id}", h.DeleteFeed).Methods(http.MethodDelete)
	api.HandleFunc("/feeds/{id}/items", h.SubmitIngest).Methods(http.MethodPost)
	api.HandleFunc("/feeds/{id}/upload", h.SubmitUpload).Methods(http.MethodPost)
	api.HandleFunc("/feeds/{id}/episodes", h.ListEpisodes).Methods(http.MethodGet)
	api.HandleFunc("/feeds/{id}/collections", h.ListCollections).Methods(http.MethodGet)
	api.HandleFunc("/feeds/{id}/refresh", h.ForceRefresh).Methods(http.MethodPost)

	api.HandleFunc("/episodes/{id}", h.GetEpisode).Methods(http.MethodGet)
	api.HandleFunc("/episodes/{id}", h.UpdateEpisode).Methods(http.MethodPatch)
	api.HandleFunc("/episodes/{id}", h.DeleteEpisode).Methods(http.MethodDelete)
	api.HandleFunc("/episodes/{id}/revert", h.RevertEpisode).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/retry", h.RetryEpisode).Methods(http.MethodPost)

	api.HandleFunc("/collections/{id}", h.UpdateCollection).Methods(http.MethodPatch)
	api.HandleFunc("/collections/{id}", h.DeleteCollection).Methods(http.MethodDelete)

	return r
}
