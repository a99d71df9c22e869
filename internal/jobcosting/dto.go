package jobcosting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldline/fieldline/internal/billing"
)

type CreateCostRequest struct {
	JobID       uuid.UUID        `json:"jobId" validate:"required"`
	Amount      *decimal.Decimal `json:"amount" validate:"required,gte=0"`
	CostType    string           `json:"costType" validate:"max=50"`
	Description string           `json:"description" validate:"max=2000"`
}

type UpdateCostRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty" validate:"omitempty,gte=0"`
	CostType    *string          `json:"costType,omitempty" validate:"omitempty,max=50"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
}

type CostResponse struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"jobId"`
	AccountID   uuid.UUID `json:"accountId"`
	Amount      float64   `json:"amount"`
	CostType    string    `json:"costType"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TypeBreakdown is one cost type bucket.
type TypeBreakdown struct {
	CostType string  `json:"costType"`
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
}

// Analysis is the per-job cost and profitability view.
type Analysis struct {
	JobID            uuid.UUID       `json:"jobId"`
	JobTitle         string          `json:"jobTitle"`
	TotalCost        float64         `json:"totalCost"`
	CostCount        int             `json:"costCount"`
	ByType           []TypeBreakdown `json:"byType"`
	InvoiceID        *uuid.UUID      `json:"invoiceId"`
	InvoiceNumber    string          `json:"invoiceNumber,omitempty"`
	InvoiceTotal     *float64        `json:"invoiceTotal"`
	EstimatedRevenue float64         `json:"estimatedRevenue"`
	EstimatedProfit  float64         `json:"estimatedProfit"`
	ProfitMargin     float64         `json:"profitMargin"`
	RevenueEstimated bool            `json:"revenueEstimated"`
}

// Overview summarises every cost in an account.
type Overview struct {
	TotalCost         float64         `json:"totalCost"`
	EntryCount        int             `json:"entryCount"`
	JobCount          int             `json:"jobCount"`
	AverageCostPerJob float64         `json:"averageCostPerJob"`
	ByType            []TypeBreakdown `json:"byType"`
}

// ToResponse converts a cost to its wire form.
func ToResponse(c Cost) CostResponse {
	return CostResponse{
		ID:          c.ID,
		JobID:       c.JobID,
		AccountID:   c.AccountID,
		Amount:      c.Amount.InexactFloat64(),
		CostType:    c.CostType,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func breakdown(buckets []billing.CostBucket) []TypeBreakdown {
	out := make([]TypeBreakdown, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, TypeBreakdown{CostType: b.CostType, Count: b.Count, Total: b.Total.InexactFloat64()})
	}
	return out
}
