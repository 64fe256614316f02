package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary is an aggregated analytics view over receipts whose date falls
// within an inclusive range. Breakdowns group by exact, case-sensitive
// string match on the stored category and payment method.
type Summary struct {
	PeriodStart     time.Time                  `json:"period_start"`
	PeriodEnd       time.Time                  `json:"period_end"`
	Count           int                        `json:"count"`
	TotalAmount     decimal.Decimal            `json:"total_amount"`
	ByCategory      map[string]decimal.Decimal `json:"by_category"`
	ByPaymentMethod map[string]decimal.Decimal `json:"by_payment_method"`
	AverageAmount   decimal.Decimal            `json:"average_amount"`
}

// GenerateSummary aggregates receipts dated within [start, end]. The
// average is zero, not an error, when nothing matches.
func (s *Service) GenerateSummary(start, end time.Time) *Summary {
	receipts := s.ListReceipts(ReceiptFilter{From: &start, To: &end})

	summary := &Summary{
		PeriodStart:     start,
		PeriodEnd:       end,
		Count:           len(receipts),
		TotalAmount:     decimal.Zero,
		ByCategory:      make(map[string]decimal.Decimal),
		ByPaymentMethod: make(map[string]decimal.Decimal),
		AverageAmount:   decimal.Zero,
	}

	for _, r := range receipts {
		summary.TotalAmount = summary.TotalAmount.Add(r.Amount)
		summary.ByCategory[r.Category] = summary.ByCategory[r.Category].Add(r.Amount)
		summary.ByPaymentMethod[r.PaymentMethod] = summary.ByPaymentMethod[r.PaymentMethod].Add(r.Amount)
	}

	if summary.Count > 0 {
		summary.AverageAmount = summary.TotalAmount.Div(decimal.NewFromInt(int64(summary.Count))).Round(2)
	}
	return summary
}
