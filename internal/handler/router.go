package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"crmtriage/internal/middleware"
)

// RouterConfig holds everything the HTTP surface is built from
type RouterConfig struct {
	Boards    *BoardHandler
	Customers *CustomerHandler
	Tags      *TagHandler
	Health    *HealthHandler
	Metrics   http.Handler
	Observer  middleware.RequestObserver
	Logger    zerolog.Logger
}

// NewRouter wires all routes. Nil handlers leave their routes out.
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(cfg.Logger, cfg.Observer))
	router.Use(middleware.Recovery)

	if cfg.Health != nil {
		router.HandleFunc("/health", cfg.Health.HandleHealth).Methods(http.MethodGet)
	}
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	if b := cfg.Boards; b != nil {
		boards := router.PathPrefix("/boards/{board}").Subrouter()
		boards.HandleFunc("/messages", b.List).Methods(http.MethodGet)
		boards.HandleFunc("/messages", b.Create).Methods(http.MethodPost)
		boards.HandleFunc("/columns", b.Columns).Methods(http.MethodGet)
		boards.HandleFunc("/messages/{id}", b.Get).Methods(http.MethodGet)
		boards.HandleFunc("/messages/{id}/move", b.Move).Methods(http.MethodPost)
		boards.HandleFunc("/messages/{id}/tags", b.ToggleTag).Methods(http.MethodPost)
		boards.HandleFunc("/messages/{id}/responses", b.AppendResponse).Methods(http.MethodPost)
		boards.HandleFunc("/messages/{id}/responses/preview", b.PreviewResponse).Methods(http.MethodPost)
	}

	if c := cfg.Customers; c != nil {
		router.HandleFunc("/customers", c.List).Methods(http.MethodGet)
		router.HandleFunc("/customers/{id}", c.Get).Methods(http.MethodGet)
		router.HandleFunc("/customers/{id}/tags", c.ToggleTag).Methods(http.MethodPost)
	}

	if t := cfg.Tags; t != nil {
		router.HandleFunc("/tags", t.List).Methods(http.MethodGet)
		router.HandleFunc("/tags", t.Create).Methods(http.MethodPost)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return router
}
