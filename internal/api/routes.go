package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

// SetupRoutes wires every route onto a fresh router. Everything under
// /api requires an authenticated session except checkout and settlement
// verification, which the public marketing pages call; campaign
// engagement tracking under /t is hit by recipient mail clients.
func SetupRoutes(h *Handlers, hc *HealthChecker) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS - allow credentials for the session cookie (explicit origins)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Server.Origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks (no auth required)
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)

	// Campaign engagement tracking
	r.Get("/t/open/{recipientID}", h.HandleTrackOpen)
	r.Get("/t/click/{recipientID}", h.HandleTrackClick)

	// API routes (protected by session auth)
	r.Route("/api", func(r chi.Router) {
		r.Use(h.auth.RequireAuth)

		r.Get("/auth/me", h.HandleMe)

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", h.HandleListLeads)
			r.Post("/", h.HandleCreateLead)
			r.Get("/{id}", h.HandleGetLead)
			r.Put("/{id}", h.HandleUpdateLead)
			r.Patch("/{id}", h.HandleUpdateLead)
			r.Post("/{id}/convert", h.HandleConvertLead)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.HandleListClients)
			r.Post("/", h.HandleCreateClient)
			r.Get("/{id}", h.HandleGetClient)
			r.Put("/{id}", h.HandleUpdateClient)
			r.Delete("/{id}", h.HandleDeleteClient)
		})

		r.Route("/tax-returns", func(r chi.Router) {
			r.Get("/", h.HandleListReturns)
			r.Post("/", h.HandleCreateReturn)
			r.Get("/{id}", h.HandleGetReturn)
			r.Put("/{id}", h.HandleUpdateReturn)
			r.Delete("/{id}", h.HandleDeleteReturn)
		})

		r.Get("/payments", h.HandleListPayments)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.HandleListCampaigns)
			r.Post("/", h.HandleCreateCampaign)
			r.Get("/{id}", h.HandleGetCampaign)
			r.Put("/{id}", h.HandleUpdateCampaign)
			r.Delete("/{id}", h.HandleDeleteCampaign)
			// Sending mail is restricted to staff
			r.With(auth.RequireRole(domain.RoleAdmin, domain.RoleStaff)).
				Post("/{id}/send", h.HandleSendCampaign)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", h.HandleListDocuments)
			r.Post("/", h.HandleUploadDocument)
			r.Get("/{id}", h.HandleGetDocument)
			r.Get("/{id}/content", h.HandleDocumentContent)
			r.Delete("/{id}", h.HandleDeleteDocument)
		})

		r.Route("/assistant", func(r chi.Router) {
			r.Get("/sessions", h.HandleListChatSessions)
			r.Post("/sessions", h.HandleCreateChatSession)
			r.Get("/sessions/{sessionID}/messages", h.HandleChatHistory)
			r.Post("/chat", h.HandleChat)
		})

		r.Get("/dashboard/stats", h.HandleDashboardStats)
		r.Get("/analytics/real-stats", h.HandleAnalytics)
		r.Get("/notifications/outcomes", h.HandleNotificationOutcomes)
	})

	// Public routes under /api registered outside the auth group.
	r.Post("/api/auth/login", h.HandleLogin)
	r.Post("/api/auth/logout", h.HandleLogout)
	r.Post("/api/auth/signup", h.HandleSignup)

	// Checkout works with or without a session; verification is called by
	// the post-checkout redirect page before any login. Both are
	// rate-limited because they face the open internet.
	r.Group(func(r chi.Router) {
		r.Use(rateLimit(h.cache, "payments", 10, time.Minute))
		r.Post("/api/payments/create-session", h.HandleCreatePaymentSession)
		r.Get("/api/payments/verify-session", h.HandleVerifyPaymentSession)
	})

	return r
}
