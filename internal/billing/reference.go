package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewInvoiceNumber returns a number such as INV-202610-3F9A1C.
func NewInvoiceNumber(now time.Time) string {
	return "INV-" + now.UTC().Format("200601") + "-" + randomSuffix()
}

// NewPaymentReference returns a reference such as PAY-20261018-153045-3F9A1C.
func NewPaymentReference(now time.Time) string {
	return "PAY-" + now.UTC().Format("20060102-150405") + "-" + randomSuffix()
}

func randomSuffix() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:6])
}
