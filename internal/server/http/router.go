// Package httpserver exposes the hogar REST API.
package httpserver

import (
	"context"
	"net/http"

	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Services are the use cases reachable over HTTP.
type Services struct {
	Sessions      service.SessionManager
	Auth          service.AuthService
	Households    service.HouseholdService
	Invitations   service.InvitationService
	Lists         service.ListService
	Expenses      service.ExpenseService
	Incomes       service.IncomeService
	Reports       service.ReportService
	Notifications service.NotificationService

	// Ping reports storage readiness for /health; nil skips the check.
	Ping func(ctx context.Context) error
}

// Handler wires services into HTTP handlers.
type Handler struct {
	svc Services
	log *zap.Logger
}

// NewRouter builds the chi router with middleware and every route.
func NewRouter(svc Services, corsOrigins []string, log *zap.Logger) http.Handler {
	h := &Handler{svc: svc, log: log}
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(Recoverer(log))
	r.Use(middleware.Compress(5))

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(svc.Sessions, log))
			r.Get("/me", h.me)
			r.Patch("/me", h.updateProfile)
			r.Patch("/password", h.changePassword)
			r.Post("/logout", h.logout)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(svc.Sessions, log))

		r.Route("/households", func(r chi.Router) {
			r.Get("/me", h.currentHousehold)
			r.Post("/me", h.createHousehold)
			r.Patch("/me", h.renameMine)
			r.Get("/me/all", h.listMyHouseholds)
			r.Post("/me/switch", h.switchPrimary)
			r.Get("/me/members", h.listMyMembers)
			r.Post("/me/members/register", h.registerMember)
			r.Post("/invitations", h.inviteToMine)
			r.Post("/invitations/accept", h.acceptInvitation)
			r.Post("/search-user", h.searchUser)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", h.updateHousehold)
				r.Delete("/", h.deleteHousehold)
				r.Get("/members", h.listMembers)
				r.Patch("/members/{userId}/role", h.setMemberRole)
				r.Delete("/members/{userId}", h.removeMember)
				r.Post("/invitations", h.inviteTo)
				r.Get("/invitations", h.listInvitations)
				r.Delete("/invitations/{invitationId}", h.revokeInvitation)
			})
		})

		r.Route("/lists", func(r chi.Router) {
			r.Get("/", h.listLists)
			r.Post("/", h.createList)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getList)
				r.Patch("/", h.updateList)
				r.Delete("/", h.deleteList)
				r.Get("/items", h.pendingItems)
				r.Get("/history", h.history)
				r.Post("/items", h.addItem)
				r.Patch("/items/{itemId}", h.updateItem)
				r.Delete("/items/{itemId}", h.deleteItem)
				r.Post("/items/{itemId}/purchase", h.purchaseItem)
			})
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", h.listExpenses)
			r.Post("/", h.createExpense)
			r.Get("/summary", h.expenseSummary)
			r.Get("/summary/shared", h.sharedSummary)
			r.Get("/summary/personal", h.personalSummary)
			r.Get("/summary/mine", h.mineSummary)
			r.Get("/history/shared", h.sharedHistory)
			r.Get("/history/personal", h.personalHistory)
			r.Get("/{id}", h.getExpense)
			r.Delete("/{id}", h.deleteExpense)
		})

		r.Route("/incomes", func(r chi.Router) {
			r.Get("/", h.listIncomes)
			r.Post("/", h.createIncome)
			r.Get("/summary", h.incomeSummary)
			r.Get("/{id}", h.getIncome)
			r.Patch("/{id}", h.updateIncome)
			r.Delete("/{id}", h.deleteIncome)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/expenses/by-payer", h.expensesByPayer)
			r.Get("/expenses/by-category", h.expensesByCategory)
			r.Get("/balance", h.balance)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/register-token", h.registerToken)
			r.Delete("/token/{token}", h.removeToken)
			r.Post("/send", h.sendNotification)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.svc.Ping != nil {
		if err := h.svc.Ping(r.Context()); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// caller returns the identity placed in context by RequireAuth.
func caller(r *http.Request) model.Identity {
	id, _ := IdentityFromCtx(r.Context())
	return id
}

func userID(r *http.Request) uuid.UUID { return caller(r).UserID }
