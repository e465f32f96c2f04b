/**
 * @description
 * HTTP router for the fundraising service. Every business route sits under
 * /internal and is called by the API gateway, which has already authenticated
 * the actor and forwards its id in the request body.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: routing and standard middleware.
 * - github.com/go-chi/cors: CORS handling for the admin dashboard.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the fundraising routes.
func NewRouter(h *Handler, internalKey string, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", internalKeyHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Fundraising service is healthy"))
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.handleCreateCampaign)
			r.Get("/{id}", h.handleGetCampaign)
			r.Get("/{id}/accepting-donations", h.handleCheckAcceptingDonations)
			r.Post("/{id}/complete", h.handleCompleteCampaign)
			r.Post("/{id}/cancel", h.handleCancelCampaign)
		})

		r.Route("/adoption-requests", func(r chi.Router) {
			r.Post("/", h.handleCreateAdoptionRequest)
			r.Get("/{id}", h.handleGetAdoptionRequest)
			r.Post("/{id}/approve", h.handleApproveAdoptionRequest)
			r.Post("/{id}/deny", h.handleDenyAdoptionRequest)
			r.Post("/{id}/cancel", h.handleCancelAdoptionRequest)
		})

		r.Route("/pets/{id}/funding", func(r chi.Router) {
			r.Post("/", h.handleRegisterPetFunding)
			r.Get("/", h.handleGetPetFunding)
			r.Put("/goals", h.handleUpdatePetFundingGoals)
		})

		r.Post("/reconciliation/run", h.handleRunReconciliation)
	})

	return r
}
