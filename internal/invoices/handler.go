package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldline/fieldline/internal/platform/httpx"
	"github.com/fieldline/fieldline/internal/shared"
	"github.com/fieldline/fieldline/report"
)

// PDFRenderer produces a printable invoice.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, doc report.InvoiceDocument) ([]byte, error)
}

// Handler manages invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pdf     PDFRenderer
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, pdf PDFRenderer) *Handler {
	return &Handler{logger: logger, service: service, pdf: pdf}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Post("/send", h.send)
		r.Post("/payment", h.recordPayment)
		r.Get("/payments", h.listPayments)
		r.Get("/pdf", h.renderPDF)
	})
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
	jobID, err := httpx.OptionalUUID(q.Get("jobId"), "jobId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, perPage := httpx.PageParams(r)
	result, err := h.service.List(r.Context(), ListInvoicesRequest{
		AccountID:  principal.AccountID,
		Status:     Status(q.Get("status")),
		CustomerID: customerID,
		JobID:      jobID,
	}, page, perPage)
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ToResponse(inv))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), principal.AccountID, id)
	if err != nil {
		h.fail(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(inv))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req UpdateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Update(r.Context(), principal, id, req)
	if err != nil {
		h.fail(w, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(inv))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.fail(w, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req SendInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Send(r.Context(), principal, id, req)
	if err != nil {
		h.fail(w, "send invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(inv))
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), principal, id, req, r.Header.Get(shared.HeaderIdempotencyKey))
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToPaymentResponse(payment))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if _, err := h.service.Get(r.Context(), principal.AccountID, id); err != nil {
		h.fail(w, "get invoice", err)
		return
	}
	page, perPage := httpx.PageParams(r)
	result, err := h.service.ListPayments(r.Context(), ListPaymentsRequest{
		AccountID: principal.AccountID,
		InvoiceID: uuid.NullUUID{UUID: id, Valid: true},
	}, page, perPage)
	if err != nil {
		h.fail(w, "list invoice payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) renderPDF(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), principal.AccountID, id)
	if err != nil {
		h.fail(w, "get invoice", err)
		return
	}
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "pdf rendering is not configured")
		return
	}
	pdf, err := h.pdf.RenderPDF(r.Context(), Document(inv))
	if err != nil {
		if errors.Is(err, report.ErrConverterUnavailable) {
			httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "pdf rendering is not configured")
			return
		}
		h.logger.Error("render invoice pdf", slog.String("invoice_id", id.String()), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "pdf rendering failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", inv.InvoiceNumber))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (shared.Principal, uuid.UUID, bool) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return shared.Principal{}, uuid.Nil, false
	}
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"), "invoice id")
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

// Document maps an invoice onto its printable view.
func Document(inv Invoice) report.InvoiceDocument {
	return report.InvoiceDocument{
		InvoiceNumber: inv.InvoiceNumber,
		Status:        string(inv.Status),
		CustomerID:    inv.CustomerID.String(),
		JobID:         inv.JobID.String(),
		InvoiceDate:   inv.InvoiceDate,
		DueDate:       inv.DueDate,
		LaborHours:    inv.LaborHours,
		HourlyRate:    inv.HourlyRate,
		LaborAmount:   inv.LaborAmount,
		MaterialCost:  inv.MaterialCost,
		Subtotal:      inv.Subtotal,
		TaxRate:       inv.TaxRate,
		TaxAmount:     inv.TaxAmount,
		TotalAmount:   inv.TotalAmount,
		PaidAmount:    inv.PaidAmount,
		BalanceDue:    inv.BalanceDue(),
		Notes:         inv.Notes,
	}
}
