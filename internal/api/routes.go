package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes.
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/overlay", handler.PurchaseOverlay).Methods("POST")
	api.HandleFunc("/pvp/{ticker}", handler.PVP).Methods("GET")
	api.HandleFunc("/funds", handler.ListFunds).Methods("GET")

	return r
}
