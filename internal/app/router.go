package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fieldline/fieldline/internal/invoices"
	"github.com/fieldline/fieldline/internal/jobcosting"
	"github.com/fieldline/fieldline/internal/observability"
	"github.com/fieldline/fieldline/internal/platform/httpx"
	"github.com/fieldline/fieldline/internal/servicejobs"
	"github.com/fieldline/fieldline/internal/shared"
	"github.com/fieldline/fieldline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	InvoiceHandler    *invoices.Handler
	PaymentsHandler   *invoices.PaymentsHandler
	JobCostingHandler *jobcosting.Handler
	ServiceJobHandler *servicejobs.Handler
	QueueHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with Fieldline defaults.
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

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(shared.PrincipalMiddleware)
		if params.InvoiceHandler != nil {
			r.Route("/invoices", params.InvoiceHandler.MountRoutes)
		}
		if params.PaymentsHandler != nil {
			r.Route("/invoices-payments", params.PaymentsHandler.MountRoutes)
		}
		if params.JobCostingHandler != nil {
			r.Route("/job-costing", params.JobCostingHandler.MountRoutes)
		}
		if params.ServiceJobHandler != nil {
			r.Route("/jobs", params.ServiceJobHandler.MountRoutes)
		}
		if params.QueueHandler != nil {
			r.Route("/queue", params.QueueHandler.MountRoutes)
		}
	})

	return r
}
