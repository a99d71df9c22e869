package invoices

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/fieldline/internal/platform/httpx"
	"github.com/fieldline/fieldline/internal/shared"
)

// PaymentsHandler serves the invoices-payments collaborator surface.
type PaymentsHandler struct {
	logger  *slog.Logger
	service *Service
}

// NewPaymentsHandler builds PaymentsHandler instance.
func NewPaymentsHandler(logger *slog.Logger, service *Service) *PaymentsHandler {
	return &PaymentsHandler{logger: logger, service: service}
}

// MountRoutes registers invoices-payments routes.
func (h *PaymentsHandler) MountRoutes(r chi.Router) {
	r.Get("/payments", h.list)
	r.Post("/payments", h.create)
	r.Get("/summary", h.summary)
}

// create records a payment against the invoice named in the body. It applies
// the payment exactly like POST /invoices/{id}/payment.
func (h *PaymentsHandler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req CreatePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), principal, req.InvoiceID, req.RecordPaymentRequest, r.Header.Get(shared.HeaderIdempotencyKey))
	if err != nil {
		h.fail(w, "create payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ToPaymentResponse(payment))
}

func (h *PaymentsHandler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	invoiceID, err := httpx.OptionalUUID(r.URL.Query().Get("invoiceId"), "invoiceId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, perPage := httpx.PageParams(r)
	result, err := h.service.ListPayments(r.Context(), ListPaymentsRequest{
		AccountID: principal.AccountID,
		InvoiceID: invoiceID,
	}, page, perPage)
	if err != nil {
		h.fail(w, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *PaymentsHandler) summary(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.RequirePrincipal(w, r)
	if !ok {
		return
	}
	accountID, err := httpx.OptionalUUID(r.URL.Query().Get("accountId"), "accountId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.Summary(r.Context(), principal, accountID)
	if err != nil {
		h.fail(w, "invoice summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *PaymentsHandler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
