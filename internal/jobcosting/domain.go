// Package jobcosting records job expenses and estimates job profitability.
package jobcosting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldline/fieldline/internal/billing"
	"github.com/fieldline/fieldline/internal/platform/httpx"
)

var ErrCostNotFound = httpx.NotFound("job cost not found")

// Cost is an expense recorded against a job.
type Cost struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	CostType    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Entry reduces the cost to what the aggregator needs.
func (c Cost) Entry() billing.CostEntry {
	return billing.CostEntry{JobID: c.JobID.String(), Type: c.CostType, Amount: c.Amount}
}

// ListCostsRequest filters cost listings.
type ListCostsRequest struct {
	AccountID uuid.UUID
	JobID     uuid.NullUUID
	CostType  string
	Limit     int
	Offset    int
}
