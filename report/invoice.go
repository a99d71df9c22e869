package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// InvoiceDocument is the printable view of an invoice.
type InvoiceDocument struct {
	InvoiceNumber string
	Status        string
	CustomerID    string
	JobID         string
	InvoiceDate   time.Time
	DueDate       time.Time
	LaborHours    decimal.NullDecimal
	HourlyRate    decimal.NullDecimal
	LaborAmount   decimal.Decimal
	MaterialCost  decimal.Decimal
	Subtotal      decimal.Decimal
	TaxRate       decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
	BalanceDue    decimal.Decimal
	Notes         string
}

// PDFConverter turns HTML into a PDF document.
type PDFConverter interface {
	RenderHTML(ctx context.Context, filename, html string) ([]byte, error)
}

// InvoiceRenderer builds invoice HTML and hands it to a PDF converter.
type InvoiceRenderer struct {
	converter PDFConverter
	printer   *message.Printer
	unit      currency.Unit
	tmpl      *template.Template
}

// NewInvoiceRenderer returns a renderer formatting money in the given ISO
// currency. Unknown codes fall back to USD.
func NewInvoiceRenderer(converter PDFConverter, currencyCode string) *InvoiceRenderer {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		unit = currency.USD
	}
	r := &InvoiceRenderer{
		converter: converter,
		printer:   message.NewPrinter(language.AmericanEnglish),
		unit:      unit,
	}
	r.tmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
		"money":   r.money,
		"percent": r.percent,
		"qty":     r.quantity,
		"date":    func(t time.Time) string { return t.Format("Jan 2, 2006") },
	}).Parse(invoiceTemplate))
	return r
}

// HTML renders the invoice markup.
func (r *InvoiceRenderer) HTML(doc InvoiceDocument) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render invoice html: %w", err)
	}
	return buf.String(), nil
}

// RenderPDF renders the invoice and converts it to PDF.
func (r *InvoiceRenderer) RenderPDF(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	if r.converter == nil {
		return nil, ErrConverterUnavailable
	}
	html, err := r.HTML(doc)
	if err != nil {
		return nil, err
	}
	return r.converter.RenderHTML(ctx, doc.InvoiceNumber+".html", html)
}

func (r *InvoiceRenderer) money(d decimal.Decimal) string {
	return r.printer.Sprintf("%s %v", r.unit, number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

func (r *InvoiceRenderer) percent(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).String() + "%"
}

func (r *InvoiceRenderer) quantity(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice {{.InvoiceNumber}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
td, th { padding: 6px 8px; border-bottom: 1px solid #ddd; text-align: left; }
td.amount, th.amount { text-align: right; }
.total td { font-weight: bold; }
</style>
</head>
<body>
<h1>Invoice {{.InvoiceNumber}}</h1>
<p>Status: {{.Status}}<br>Invoice date: {{date .InvoiceDate}}<br>Due date: {{date .DueDate}}</p>
<p>Customer: {{.CustomerID}}<br>Job: {{.JobID}}</p>
<table>
<tr><th>Item</th><th class="amount">Quantity</th><th class="amount">Rate</th><th class="amount">Amount</th></tr>
<tr><td>Labor</td><td class="amount">{{qty .LaborHours}}</td><td class="amount">{{if .HourlyRate.Valid}}{{money .HourlyRate.Decimal}}{{else}}-{{end}}</td><td class="amount">{{money .LaborAmount}}</td></tr>
<tr><td>Materials</td><td class="amount"></td><td class="amount"></td><td class="amount">{{money .MaterialCost}}</td></tr>
<tr><td colspan="3">Subtotal</td><td class="amount">{{money .Subtotal}}</td></tr>
<tr><td colspan="3">Tax ({{percent .TaxRate}})</td><td class="amount">{{money .TaxAmount}}</td></tr>
<tr class="total"><td colspan="3">Total</td><td class="amount">{{money .TotalAmount}}</td></tr>
<tr><td colspan="3">Paid</td><td class="amount">{{money .PaidAmount}}</td></tr>
<tr class="total"><td colspan="3">Balance due</td><td class="amount">{{money .BalanceDue}}</td></tr>
</table>
{{with .Notes}}<p>{{.}}</p>{{end}}
</body>
</html>
`
