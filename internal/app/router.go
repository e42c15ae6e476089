package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vebops/store/internal/appdata"
	"github.com/vebops/store/internal/bom"
	"github.com/vebops/store/internal/inventory"
	"github.com/vebops/store/internal/masterdata"
	"github.com/vebops/store/internal/observability"
	"github.com/vebops/store/internal/procurement"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	InventoryHandler   *inventory.Handler
	BomHandler         *bom.Handler
	MasterDataHandler  *masterdata.Handler
	ProcurementHandler *procurement.Handler
	AppDataHandler     *appdata.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.BomHandler != nil {
			params.BomHandler.MountRoutes(r)
		}
		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(r)
		}
		if params.ProcurementHandler != nil {
			params.ProcurementHandler.MountRoutes(r)
		}
		if params.AppDataHandler != nil {
			params.AppDataHandler.MountRoutes(r)
		}
	})

	return r
}
