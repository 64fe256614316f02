package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the approval-workflow state of an expense report.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// statusTransitions holds the only legal moves in the workflow. Draft is
// the initial state; approved and rejected are terminal.
var statusTransitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
}

// CanTransition reports whether the workflow allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// ExpenseReport is a named bundle of receipts subject to an approval
// workflow. TotalAmount is derived: it is recomputed from the referenced
// receipts every time the report is read, so receipts deleted after
// creation simply stop counting toward the total.
type ExpenseReport struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	EmployeeName string          `json:"employee_name"`
	Department   string          `json:"department"`
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	ReceiptIDs   []string        `json:"receipt_ids"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	SubmittedAt  *time.Time      `json:"submitted_at,omitempty"`
}

// ReportFilter narrows ListReports results. Zero-value fields match
// everything. From and To select reports whose period overlaps the
// given range.
type ReportFilter struct {
	Status     Status
	Department string
	Employee   string
	From       *time.Time
	To         *time.Time
}

// Matches reports whether r passes the filter.
func (f ReportFilter) Matches(r *ExpenseReport) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Department != "" && r.Department != f.Department {
		return false
	}
	if f.Employee != "" && r.EmployeeName != f.Employee {
		return false
	}
	if f.From != nil && r.PeriodEnd.Before(*f.From) {
		return false
	}
	if f.To != nil && r.PeriodStart.After(*f.To) {
		return false
	}
	return true
}
