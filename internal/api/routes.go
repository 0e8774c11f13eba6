package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.requireAPIKey)

	api.HandleFunc("/auth/signup", h.SignUp).Methods("POST")
	api.HandleFunc("/auth/signin", h.SignIn).Methods("POST")

	api.HandleFunc("/market", h.GetMarket).Methods("GET")
	api.HandleFunc("/market/{symbol}/chart", h.GetChart).Methods("GET")

	api.HandleFunc("/chat", h.ChatWelcome).Methods("GET")
	api.HandleFunc("/chat", h.Chat).Methods("POST")

	protected := api.NewRoute().Subrouter()
	protected.Use(h.requireSession)

	protected.HandleFunc("/auth/signout", h.SignOut).Methods("POST")
	protected.HandleFunc("/auth/session", h.GetSession).Methods("GET")

	protected.HandleFunc("/portfolio", h.GetPortfolio).Methods("GET")

	protected.HandleFunc("/trades", h.GetTrades).Methods("GET")
	protected.HandleFunc("/trades", h.CreateTrade).Methods("POST")

	protected.HandleFunc("/strategies", h.GetStrategies).Methods("GET")
	protected.HandleFunc("/strategies", h.CreateStrategy).Methods("POST")

	protected.HandleFunc("/stream", h.Stream).Methods("GET")

	return r
}
