package billing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Known cost types. Any other non-empty value is kept as entered.
const (
	CostTypeLabor     = "labor"
	CostTypeMaterial  = "material"
	CostTypeEquipment = "equipment"
	CostTypeOther     = "other"
)

// RevenueMarkup estimates revenue for a job that has not been invoiced yet.
var RevenueMarkup = decimal.RequireFromString("1.35")

// NormalizeCostType lower-cases the type and defaults blanks to "other".
func NormalizeCostType(costType string) string {
	costType = strings.ToLower(strings.TrimSpace(costType))
	if costType == "" {
		return CostTypeOther
	}
	return costType
}

// CostEntry is the part of a job cost the aggregator needs.
type CostEntry struct {
	JobID  string
	Type   string
	Amount decimal.Decimal
}

// CostBucket totals entries of one cost type.
type CostBucket struct {
	CostType string
	Count    int
	Total    decimal.Decimal
}

// CostSummary aggregates a set of cost entries.
type CostSummary struct {
	Total   decimal.Decimal
	Entries int
	Jobs    int
	ByType  []CostBucket
}

// AveragePerJob divides the total across distinct jobs, or returns zero.
func (s CostSummary) AveragePerJob() decimal.Decimal {
	if s.Jobs == 0 {
		return decimal.Zero
	}
	return s.Total.Div(decimal.NewFromInt(int64(s.Jobs)))
}

// SummarizeCosts totals entries and buckets them by type, ordered by type name.
func SummarizeCosts(entries []CostEntry) CostSummary {
	summary := CostSummary{Total: decimal.Zero, Entries: len(entries)}
	buckets := make(map[string]*CostBucket)
	jobs := make(map[string]struct{})
	for _, e := range entries {
		summary.Total = summary.Total.Add(e.Amount)
		if e.JobID != "" {
			jobs[e.JobID] = struct{}{}
		}
		kind := NormalizeCostType(e.Type)
		b, ok := buckets[kind]
		if !ok {
			b = &CostBucket{CostType: kind, Total: decimal.Zero}
			buckets[kind] = b
		}
		b.Count++
		b.Total = b.Total.Add(e.Amount)
	}
	summary.Jobs = len(jobs)
	summary.ByType = make([]CostBucket, 0, len(buckets))
	for _, b := range buckets {
		summary.ByType = append(summary.ByType, *b)
	}
	sort.Slice(summary.ByType, func(i, j int) bool {
		return summary.ByType[i].CostType < summary.ByType[j].CostType
	})
	return summary
}

// Profitability is the estimated outcome of a job.
type Profitability struct {
	Revenue   decimal.Decimal
	Profit    decimal.Decimal
	Margin    decimal.Decimal
	Estimated bool
}

// EstimateProfitability compares total cost against the invoiced total, or
// against a marked-up cost when invoiceTotal is nil. The margin is a percentage
// and is zero when there is no cost basis or the revenue is zero.
func EstimateProfitability(totalCost decimal.Decimal, invoiceTotal *decimal.Decimal) Profitability {
	p := Profitability{}
	if invoiceTotal != nil {
		p.Revenue = *invoiceTotal
	} else {
		p.Revenue = totalCost.Mul(RevenueMarkup)
		p.Estimated = true
	}
	p.Profit = p.Revenue.Sub(totalCost)
	p.Margin = decimal.Zero
	if totalCost.IsPositive() && !p.Revenue.IsZero() {
		p.Margin = p.Profit.Div(p.Revenue).Mul(hundred)
	}
	return p
}
