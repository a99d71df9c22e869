package servicejobs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/fieldline/internal/platform/httpx"
	"github.com/fieldline/fieldline/internal/shared"
)

// Handler manages job endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	customerID, err := httpx.OptionalUUID(q.Get("customerId"), "customerId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	technicianID, err := httpx.OptionalUUID(q.Get("technicianId"), "technicianId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, perPage := httpx.PageParams(r)
	result, err := h.service.List(r.Context(), ListJobsRequest{
		AccountID:    principal.AccountID,
		Status:       Status(q.Get("status")),
		CustomerID:   customerID,
		TechnicianID: technicianID,
	}, page, perPage)
	if err != nil {
		h.fail(w, "list jobs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"), "job id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service.Get(r.Context(), principal.AccountID, id)
	if err != nil {
		h.fail(w, "get job", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req CreateJobRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		h.fail(w, "create job", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, job)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"), "job id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateJobRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service.Update(r.Context(), principal, id, req)
	if err != nil {
		h.fail(w, "update job", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"), "job id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.fail(w, "delete job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
