package jobcosting

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldline/fieldline/internal/platform/httpx"
	"github.com/fieldline/fieldline/internal/shared"
)

// Handler manages job costing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers job costing routes. The analysis route shares the {id}
// segment with the cost routes; there it names a job.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/summary/overview", h.overview)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/analysis", h.analysis)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	jobID, err := httpx.OptionalUUID(q.Get("jobId"), "jobId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, perPage := httpx.PageParams(r)
	result, err := h.service.List(r.Context(), ListCostsRequest{
		AccountID: principal.AccountID,
		JobID:     jobID,
		CostType:  q.Get("costType"),
	}, page, perPage)
	if err != nil {
		h.fail(w, "list job costs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req CreateCostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		h.fail(w, "create job cost", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ToResponse(c))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r, "job cost id")
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), principal.AccountID, id)
	if err != nil {
		h.fail(w, "get job cost", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(c))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r, "job cost id")
	if !ok {
		return
	}
	var req UpdateCostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Update(r.Context(), principal, id, req)
	if err != nil {
		h.fail(w, "update job cost", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(c))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r, "job cost id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.fail(w, "delete job cost", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) analysis(w http.ResponseWriter, r *http.Request) {
	principal, jobID, ok := h.target(w, r, "job id")
	if !ok {
		return
	}
	out, err := h.service.Analysis(r.Context(), principal.AccountID, jobID)
	if err != nil {
		h.fail(w, "job cost analysis", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	out, err := h.service.Overview(r.Context(), principal.AccountID)
	if err != nil {
		h.fail(w, "job cost overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request, name string) (shared.Principal, uuid.UUID, bool) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return shared.Principal{}, uuid.Nil, false
	}
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"), name)
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Principal{}, uuid.Nil, false
	}
	return principal, id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
