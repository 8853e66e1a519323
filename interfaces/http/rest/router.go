package rest

import (
	"net/http"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/application/services"
	"bookkeeper-backend/infrastructure/config"
	"bookkeeper-backend/interfaces/http/rest/handlers"
	"bookkeeper-backend/interfaces/http/rest/middleware"
	"bookkeeper-backend/pkg/auth"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies carries everything the router needs wired in.
type Dependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Validator  *auth.JWTValidator
	Attachment *services.AttachmentService
	Inventory  *services.InventoryService
	Numbering  *services.NumberingService
	Jobs       ports.TimeBasedJobRepository
}

// NewRouter assembles the HTTP surface: operational endpoints stay open,
// everything under /api/v1 requires a valid token.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(middleware.Logger(deps.Logger))

	if deps.Config.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	if deps.Config.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	attachmentHandler := handlers.NewAttachmentHandler(deps.Attachment, deps.Logger)
	inventoryHandler := handlers.NewInventoryHandler(deps.Inventory, deps.Logger)
	numberingHandler := handlers.NewNumberingHandler(deps.Numbering, deps.Logger)
	jobHandler := handlers.NewJobHandler(deps.Jobs, deps.Logger)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Authenticate(deps.Validator, deps.Logger))

		api.Route("/attachments", func(ar chi.Router) {
			ar.Post("/", attachmentHandler.RequestUpload)
			ar.Get("/", attachmentHandler.List)
			ar.Get("/orphaned", attachmentHandler.ListOrphaned)
			ar.Post("/orphaned/cleanup", attachmentHandler.CleanupOrphans)
			ar.Route("/{id}", func(sr chi.Router) {
				sr.Get("/", attachmentHandler.Get)
				sr.Put("/", attachmentHandler.Rename)
				sr.Delete("/", attachmentHandler.Delete)
				sr.Post("/confirm", attachmentHandler.ConfirmUpload)
				sr.Put("/invoice", attachmentHandler.LinkInvoice)
				sr.Put("/inventory-item", attachmentHandler.LinkInventoryItem)
				sr.Put("/expenses", attachmentHandler.AssignExpenses)
				sr.Delete("/links", attachmentHandler.Unlink)
			})
		})

		api.Route("/inventory", func(ir chi.Router) {
			ir.Route("/locations", func(lr chi.Router) {
				lr.Post("/", inventoryHandler.CreateLocation)
				lr.Get("/", inventoryHandler.ListLocations)
				lr.Get("/{id}", inventoryHandler.GetLocation)
				lr.Put("/{id}", inventoryHandler.UpdateLocation)
				lr.Delete("/{id}", inventoryHandler.DeleteLocation)
			})
			ir.Route("/types", func(tr chi.Router) {
				tr.Post("/", inventoryHandler.CreateType)
				tr.Get("/", inventoryHandler.ListTypes)
				tr.Get("/{id}", inventoryHandler.GetType)
				tr.Put("/{id}", inventoryHandler.UpdateType)
				tr.Delete("/{id}", inventoryHandler.DeleteType)
			})
			ir.Route("/items", func(itr chi.Router) {
				itr.Post("/", inventoryHandler.CreateItem)
				itr.Get("/", inventoryHandler.ListItems)
				itr.Get("/{id}", inventoryHandler.GetItem)
				itr.Put("/{id}", inventoryHandler.UpdateItem)
				itr.Post("/{id}/adjust", inventoryHandler.AdjustItemQuantity)
				itr.Delete("/{id}", inventoryHandler.DeleteItem)
			})
		})

		api.Route("/numbers", func(nr chi.Router) {
			nr.Get("/{sequence}", numberingHandler.Peek)
			nr.Post("/{sequence}/next", numberingHandler.Next)
		})

		api.Route("/jobs", func(jr chi.Router) {
			jr.Post("/", jobHandler.Schedule)
			jr.Get("/", jobHandler.List)
			jr.Get("/{id}", jobHandler.Get)
			jr.Put("/{id}", jobHandler.Reschedule)
			jr.Delete("/{id}", jobHandler.Delete)
		})
	})

	return r
}
