package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"fleetservice/internal/actor"
	"fleetservice/internal/api"
	"fleetservice/internal/audit"
	"fleetservice/internal/auth"
	"fleetservice/internal/dispatch"
	"fleetservice/internal/invoice"
	"fleetservice/internal/notify"
	"fleetservice/internal/part"
	"fleetservice/internal/request"
	"fleetservice/internal/settings"
	"fleetservice/internal/technician"
	"fleetservice/pkg/config"
)

type Dependencies struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Log      *logrus.Logger
	Notifier notify.Sender
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	requestRepo := request.NewRepository(deps.DB)
	partRepo := part.NewRepository(deps.DB)
	auditRepo := audit.NewRepository(deps.DB)
	technicianRepo := technician.NewRepository(deps.DB)
	settingsRepo := settings.NewRepository(deps.DB, deps.Cfg.DefaultTaxRate)
	invoiceRepo := invoice.NewRepository(deps.DB)

	authHandlers := auth.Handlers{Cfg: deps.Cfg}
	requestHandlers := request.Handlers{
		DB:       deps.DB,
		Requests: requestRepo,
		Parts:    partRepo,
		Audits:   auditRepo,
		Notifier: deps.Notifier,
		Log:      deps.Log,
	}
	dispatchHandlers := dispatch.Handlers{
		DB:       deps.DB,
		Requests: requestRepo,
		Notifier: deps.Notifier,
		Log:      deps.Log,
	}
	invoiceHandlers := invoice.Handlers{
		DB:       deps.DB,
		Invoices: invoiceRepo,
		Requests: requestRepo,
		Settings: settingsRepo,
		Notifier: deps.Notifier,
		Log:      deps.Log,
	}
	technicianHandlers := technician.Handlers{Repo: technicianRepo}
	partHandlers := part.Handlers{Repo: partRepo}
	settingsHandlers := settings.Handlers{Repo: settingsRepo}

	// v1
	r.Route("/v1", func(r chi.Router) {
		r.Use(api.CORSMiddleware(api.CORSOptions{
			AllowedOrigins: deps.Cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Actor-Id", "X-Actor-Role"},
			MaxAgeSeconds:  600,
		}))

		// Dev-only token mint; disabled in prod.
		r.Post("/auth/token", authHandlers.Mint)

		r.Group(func(r chi.Router) {
			r.Use(api.SessionAuth(deps.Cfg))

			// Requests + lifecycle. Edge-level role checks live in the
			// lifecycle engine; routes stay open to any authenticated actor.
			r.Post("/requests", requestHandlers.Create)
			r.Get("/requests", requestHandlers.List)
			r.Get("/requests/{id}", requestHandlers.Get)
			r.Patch("/requests/{id}", requestHandlers.PatchMetadata)
			r.Patch("/requests/{id}/status", requestHandlers.PatchStatus)
			r.Patch("/requests/{id}/notes", requestHandlers.PatchNotes)
			r.Post("/requests/{id}/start", requestHandlers.Start)
			r.Post("/requests/{id}/complete", requestHandlers.Complete)
			r.Post("/requests/{id}/parts", requestHandlers.AddPart)
			r.Get("/requests/{id}/audit", requestHandlers.AuditTrail)

			// Dispatch board
			r.Put("/requests/{id}/assignment", dispatchHandlers.Assign)

			// Billing
			r.Post("/requests/{id}/invoice", invoiceHandlers.Finalize)
			r.Get("/requests/{id}/invoice", invoiceHandlers.Get)

			// Technician registry
			r.Get("/technicians", technicianHandlers.List)
			r.Group(func(r chi.Router) {
				r.Use(api.RequireRoles(actor.RoleOffice, actor.RoleAdmin))
				r.Post("/technicians", technicianHandlers.Create)
				r.Post("/technicians/{id}/deactivate", technicianHandlers.Deactivate)
			})

			// Parts catalog
			r.Get("/catalog/parts", partHandlers.ListCatalog)
			r.Group(func(r chi.Router) {
				r.Use(api.RequireRoles(actor.RoleOffice, actor.RoleAdmin))
				r.Put("/catalog/parts", partHandlers.UpsertCatalog)
			})

			// Shop settings
			r.Get("/settings", settingsHandlers.Get)
			r.Group(func(r chi.Router) {
				r.Use(api.RequireRoles(actor.RoleAdmin))
				r.Put("/settings", settingsHandlers.Put)
			})
		})
	})

	return r
}
