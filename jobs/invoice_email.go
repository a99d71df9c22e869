package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	jobmetrics "github.com/fieldline/fieldline/internal/jobs"
)

// InvoiceEmailJob delivers invoice notifications.
type InvoiceEmailJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	unit    currency.Unit
	printer *message.Printer
}

// NewInvoiceEmailJob initialises the email handler. Amounts are shown in the
// given ISO 4217 currency; unknown codes fall back to USD.
func NewInvoiceEmailJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics, currencyCode string) *InvoiceEmailJob {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		unit = currency.USD
	}
	return &InvoiceEmailJob{
		Mailer:  mailer,
		Logger:  logger,
		Metrics: metrics,
		unit:    unit,
		printer: message.NewPrinter(language.AmericanEnglish),
	}
}

// Handle sends one invoice email. Malformed payloads are not retried.
func (j *InvoiceEmailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("invoice email: handler not configured")
	}
	var payload InvoiceEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invoice email: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.RecipientEmail) == "" {
		return fmt.Errorf("invoice email: missing recipient: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskInvoiceSendEmail)
	defer func() {
		err = tracker.End(err)
	}()

	msg, err := j.compose(payload)
	if err != nil {
		return fmt.Errorf("invoice email: %v: %w", err, asynq.SkipRetry)
	}
	if err := j.Mailer.Send(ctx, msg); err != nil {
		j.logger().Error("invoice email failed",
			slog.String("invoice_id", payload.InvoiceID.String()),
			slog.Any("error", err))
		return err
	}
	j.Metrics.AddItems(TaskInvoiceSendEmail, 1)
	j.logger().Info("invoice email sent",
		slog.String("invoice_id", payload.InvoiceID.String()),
		slog.String("invoice_number", payload.InvoiceNumber))
	return nil
}

func (j *InvoiceEmailJob) compose(p InvoiceEmailPayload) (Message, error) {
	total, err := decimal.NewFromString(p.TotalAmount)
	if err != nil {
		return Message{}, fmt.Errorf("total amount %q: %w", p.TotalAmount, err)
	}
	balance, err := decimal.NewFromString(p.BalanceDue)
	if err != nil {
		return Message{}, fmt.Errorf("balance due %q: %w", p.BalanceDue, err)
	}
	name := p.RecipientName
	if name == "" {
		name = "there"
	}
	printer := j.printer
	if printer == nil {
		printer = message.NewPrinter(language.AmericanEnglish)
	}
	unit := j.unit
	if unit == (currency.Unit{}) {
		unit = currency.USD
	}
	body := printer.Sprintf("Hi %s,\n\nInvoice %s for %v is ready.\nBalance due: %v by %s.\n\nThank you for your business.\n",
		name,
		p.InvoiceNumber,
		currency.Symbol(unit.Amount(total.InexactFloat64())),
		currency.Symbol(unit.Amount(balance.InexactFloat64())),
		p.DueDate.Format("January 2, 2006"))
	return Message{
		To:      p.RecipientEmail,
		Subject: "Invoice " + p.InvoiceNumber,
		Body:    body,
	}, nil
}

func (j *InvoiceEmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
