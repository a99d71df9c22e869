package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type captureConverter struct {
	filename string
	html     string
}

func (c *captureConverter) RenderHTML(ctx context.Context, filename, html string) ([]byte, error) {
	c.filename = filename
	c.html = html
	return []byte("%PDF-1.7"), nil
}

func sampleDocument() InvoiceDocument {
	return InvoiceDocument{
		InvoiceNumber: "INV-202610-ABC123",
		Status:        "sent",
		InvoiceDate:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC),
		LaborHours:    decimal.NewNullDecimal(decimal.RequireFromString("2")),
		HourlyRate:    decimal.NewNullDecimal(decimal.RequireFromString("50")),
		LaborAmount:   decimal.RequireFromString("100"),
		MaterialCost:  decimal.RequireFromString("30"),
		Subtotal:      decimal.RequireFromString("130"),
		TaxRate:       decimal.RequireFromString("0.08"),
		TaxAmount:     decimal.RequireFromString("10.4"),
		TotalAmount:   decimal.RequireFromString("140.4"),
		PaidAmount:    decimal.RequireFromString("60"),
		BalanceDue:    decimal.RequireFromString("80.4"),
		Notes:         "Thanks <for> your business",
	}
}

func TestInvoiceRendererHTML(t *testing.T) {
	r := NewInvoiceRenderer(nil, "USD")

	html, err := r.HTML(sampleDocument())
	require.NoError(t, err)
	require.Contains(t, html, "Invoice INV-202610-ABC123")
	require.Contains(t, html, "USD 140.40")
	require.Contains(t, html, "USD 80.40")
	require.Contains(t, html, "Tax (8%)")
	require.Contains(t, html, "Oct 31, 2026")
	require.Contains(t, html, "Thanks &lt;for&gt; your business")
}

func TestInvoiceRendererPDF(t *testing.T) {
	conv := &captureConverter{}
	r := NewInvoiceRenderer(conv, "not-a-code")

	pdf, err := r.RenderPDF(context.Background(), sampleDocument())
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.7"), pdf)
	require.Equal(t, "INV-202610-ABC123.html", conv.filename)
	require.Contains(t, conv.html, "USD 100.00")
}

func TestInvoiceRendererWithoutConverter(t *testing.T) {
	r := NewInvoiceRenderer(nil, "USD")
	_, err := r.RenderPDF(context.Background(), sampleDocument())
	require.ErrorIs(t, err, ErrConverterUnavailable)
}

func TestClientRenderHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "8.5", r.FormValue("paperWidth"))
		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		require.Equal(t, "index.html", header.Filename)
		body, _ := io.ReadAll(file)
		require.Contains(t, string(body), "<h1>hi</h1>")
		_, _ = w.Write([]byte("pdf-bytes"))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL+"/").RenderHTML(context.Background(), "doc.html", "<h1>hi</h1>")
	require.NoError(t, err)
	require.Equal(t, "pdf-bytes", string(out))
}

func TestClientRenderHTMLFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RenderHTML(context.Background(), "doc.html", "<p/>")
	require.ErrorContains(t, err, "status 502")
}

func TestNilClient(t *testing.T) {
	c := NewClient("  ")
	require.Nil(t, c)
	require.ErrorIs(t, c.Ping(context.Background()), ErrConverterUnavailable)
}
