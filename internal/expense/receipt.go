package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods commonly recorded on receipts. Any other string is
// accepted as-is; these constants only exist so callers and tests have
// canonical spellings.
const (
	PaymentCash   = "Cash"
	PaymentCredit = "Credit"
	PaymentDebit  = "Debit"
	PaymentCheck  = "Check"
)

// DefaultCategories is the category set a new service starts with when the
// store has none persisted. RegisterCategory extends the set at runtime.
var DefaultCategories = []string{
	"Office Supplies",
	"Travel",
	"Meals & Entertainment",
	"Software/Subscriptions",
	"Equipment",
	"Marketing",
	"Professional Services",
	"Utilities",
	"Other",
}

// Receipt is a single recorded expense transaction. Receipts are immutable
// once created; the only mutation is deletion by ID.
type Receipt struct {
	ID             string          `json:"id"`
	Date           time.Time       `json:"date"`
	Vendor         string          `json:"vendor"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	CustomCategory bool            `json:"custom_category,omitempty"` // category was not registered at add time
	Description    string          `json:"description,omitempty"`
	PaymentMethod  string          `json:"payment_method"`
	AttachmentPath string          `json:"attachment_path,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ReceiptFilter narrows ListReceipts results. Zero-value fields match
// everything. Category and PaymentMethod compare with exact, case-sensitive
// string equality. From and To bound the receipt date inclusively.
type ReceiptFilter struct {
	From          *time.Time
	To            *time.Time
	Category      string
	PaymentMethod string
	NewestFirst   bool // sort by date descending instead of insertion order
}

// Matches reports whether r passes the filter.
func (f ReceiptFilter) Matches(r *Receipt) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.PaymentMethod != "" && r.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.From != nil && r.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Date.After(*f.To) {
		return false
	}
	return true
}
