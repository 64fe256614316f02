package expense

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opsdesk/expense-tracker/internal/scanning"
)

// IDGenerator generates unique IDs for receipts and reports
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates short random IDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()[:8]
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service owns the in-memory receipt and report stores and writes through
// to the persistence adapter after every mutation. It is built for one
// sequential caller; there is no internal locking.
//
// When a write-through fails the in-memory mutation stands and the caller
// gets a PersistenceError alongside the mutated record, so memory may run
// ahead of disk until the next successful save.
type Service struct {
	store       Store
	files       Storage
	scanner     scanning.Scanner
	idGenerator IDGenerator
	timeSource  TimeSource

	receipts     map[string]*Receipt
	reports      map[string]*ExpenseReport
	receiptOrder []string
	reportOrder  []string
	categories   []string
}

// NewService creates a Service with default ID generation and clock,
// loading persisted state from the store. scanner may be nil when receipt
// scanning is not configured.
func NewService(store Store, files Storage, scanner scanning.Scanner) (*Service, error) {
	return NewServiceWithDeps(store, files, scanner, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing.
func NewServiceWithDeps(store Store, files Storage, scanner scanning.Scanner, idGen IDGenerator, timeSrc TimeSource) (*Service, error) {
	s := &Service{
		store:       store,
		files:       files,
		scanner:     scanner,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads persisted state once at startup. Insertion order is not
// stored on disk, so it is reconstructed by creation time.
func (s *Service) load() error {
	receipts, reports, categories, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("loading store: %w", err)
	}

	s.receipts = receipts
	s.reports = reports
	s.receiptOrder = orderedIDs(receipts, func(r *Receipt) time.Time { return r.CreatedAt })
	s.reportOrder = orderedIDs(reports, func(r *ExpenseReport) time.Time { return r.CreatedAt })

	if categories == nil {
		categories = append([]string(nil), DefaultCategories...)
	}
	s.categories = categories
	return nil
}

func orderedIDs[T any](records map[string]T, createdAt func(T) time.Time) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti := createdAt(records[ids[i]])
		tj := createdAt(records[ids[j]])
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.Before(tj)
	})
	return ids
}

// newID generates an ID not currently in use by either store.
func (s *Service) newID() string {
	id := s.idGenerator.Generate()
	for {
		_, usedR := s.receipts[id]
		_, usedRep := s.reports[id]
		if !usedR && !usedRep {
			return id
		}
		id = s.idGenerator.Generate()
	}
}

// sanitizeFilename cleans up an attachment filename by removing special
// characters and truncating phone-generated long names.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// dayOf strips the time of day, keeping the calendar date. Receipt dates
// are day-granular so same-day range bounds stay inclusive.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddReceiptParams carries the caller-supplied fields for a new receipt.
// A zero Date means "today". Attachment is optional file data stored
// alongside the record.
type AddReceiptParams struct {
	Vendor         string
	Amount         decimal.Decimal
	Category       string
	Description    string
	PaymentMethod  string
	Date           time.Time
	AttachmentName string
	Attachment     []byte
}

// AddReceipt validates and records a new receipt, returning the stored
// record. Amounts must be strictly positive and the vendor non-empty.
// An unregistered category is accepted but flagged as custom.
func (s *Service) AddReceipt(params AddReceiptParams) (*Receipt, error) {
	if strings.TrimSpace(params.Vendor) == "" {
		return nil, &ValidationError{Field: "vendor", Reason: "must not be empty"}
	}
	if !params.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	id := s.newID()
	now := s.timeSource.Now()

	date := params.Date
	if date.IsZero() {
		date = dayOf(now)
	}

	receipt := &Receipt{
		ID:             id,
		Date:           date,
		Vendor:         params.Vendor,
		Amount:         params.Amount,
		Category:       params.Category,
		CustomCategory: !s.knownCategory(params.Category),
		Description:    params.Description,
		PaymentMethod:  params.PaymentMethod,
		CreatedAt:      now,
	}

	if len(params.Attachment) > 0 {
		name := sanitizeFilename(params.AttachmentName)
		savedPath, err := s.files.Save(fmt.Sprintf("%s_%s", id, name), params.Attachment)
		if err != nil {
			return nil, fmt.Errorf("saving attachment: %w", err)
		}
		receipt.AttachmentPath = savedPath
	}

	s.receipts[id] = receipt
	s.receiptOrder = append(s.receiptOrder, id)

	if err := s.store.SaveReceipt(receipt); err != nil {
		return receipt, &PersistenceError{Op: "receipt " + id, Err: err}
	}
	return receipt, nil
}

// GetReceipt retrieves a receipt by ID.
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, ok := s.receipts[id]
	if !ok {
		return nil, &NotFoundError{Kind: "receipt", ID: id}
	}
	return receipt, nil
}

// GetAttachment retrieves the attachment file data for a receipt.
func (s *Service) GetAttachment(id string) ([]byte, error) {
	receipt, err := s.GetReceipt(id)
	if err != nil {
		return nil, err
	}
	if receipt.AttachmentPath == "" {
		return nil, fmt.Errorf("receipt %s has no attachment", id)
	}
	data, err := s.files.Get(receipt.AttachmentPath)
	if err != nil {
		return nil, fmt.Errorf("getting attachment: %w", err)
	}
	return data, nil
}

// DeleteReceipt removes a receipt and its attachment. Deletion is allowed
// even when reports still reference the receipt; their totals simply stop
// counting it (see ComputeTotal).
func (s *Service) DeleteReceipt(id string) error {
	receipt, ok := s.receipts[id]
	if !ok {
		return &NotFoundError{Kind: "receipt", ID: id}
	}

	if receipt.AttachmentPath != "" {
		if err := s.files.Delete(receipt.AttachmentPath); err != nil {
			slog.Warn("Failed to delete attachment", "path", receipt.AttachmentPath, "error", err)
		}
	}

	delete(s.receipts, id)
	s.receiptOrder = removeID(s.receiptOrder, id)

	if err := s.store.DeleteReceipt(id); err != nil {
		return &PersistenceError{Op: "receipt " + id, Err: err}
	}
	return nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// ListReceipts returns receipts matching the filter, in insertion order
// unless the filter asks for newest first.
func (s *Service) ListReceipts(filter ReceiptFilter) []*Receipt {
	receipts := make([]*Receipt, 0, len(s.receiptOrder))
	for _, id := range s.receiptOrder {
		if r := s.receipts[id]; filter.Matches(r) {
			receipts = append(receipts, r)
		}
	}
	if filter.NewestFirst {
		sort.SliceStable(receipts, func(i, j int) bool {
			return receipts[i].Date.After(receipts[j].Date)
		})
	}
	return receipts
}

// Categories returns a copy of the registered category set.
func (s *Service) Categories() []string {
	return append([]string(nil), s.categories...)
}

// RegisterCategory adds a category to the known set and returns the
// updated set. Registering an existing category is a no-op.
func (s *Service) RegisterCategory(name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "category", Reason: "must not be empty"}
	}
	if s.knownCategory(name) {
		return s.Categories(), nil
	}

	s.categories = append(s.categories, name)
	if err := s.store.SaveCategories(s.categories); err != nil {
		return s.Categories(), &PersistenceError{Op: "categories", Err: err}
	}
	return s.Categories(), nil
}

func (s *Service) knownCategory(name string) bool {
	for _, c := range s.categories {
		if c == name {
			return true
		}
	}
	return false
}

// CreateReportParams carries the caller-supplied fields for a new report.
type CreateReportParams struct {
	Title        string
	EmployeeName string
	Department   string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	ReceiptIDs   []string
}

// CreateReport validates and records a new expense report in draft status.
// Every referenced receipt must exist at creation time; duplicates are
// collapsed.
func (s *Service) CreateReport(params CreateReportParams) (*ExpenseReport, error) {
	if strings.TrimSpace(params.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(params.EmployeeName) == "" {
		return nil, &ValidationError{Field: "employee_name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(params.Department) == "" {
		return nil, &ValidationError{Field: "department", Reason: "must not be empty"}
	}
	if params.PeriodEnd.Before(params.PeriodStart) {
		return nil, &ValidationError{Field: "period_end", Reason: "must not precede period_start"}
	}

	seen := make(map[string]bool, len(params.ReceiptIDs))
	receiptIDs := make([]string, 0, len(params.ReceiptIDs))
	for _, rid := range params.ReceiptIDs {
		if seen[rid] {
			continue
		}
		seen[rid] = true
		if _, ok := s.receipts[rid]; !ok {
			return nil, &ValidationError{Field: "receipt_ids", Reason: fmt.Sprintf("unknown receipt %s", rid)}
		}
		receiptIDs = append(receiptIDs, rid)
	}

	report := &ExpenseReport{
		ID:           s.newID(),
		Title:        params.Title,
		EmployeeName: params.EmployeeName,
		Department:   params.Department,
		PeriodStart:  params.PeriodStart,
		PeriodEnd:    params.PeriodEnd,
		ReceiptIDs:   receiptIDs,
		Status:       StatusDraft,
		CreatedAt:    s.timeSource.Now(),
	}
	report.TotalAmount = s.ComputeTotal(report)

	s.reports[report.ID] = report
	s.reportOrder = append(s.reportOrder, report.ID)

	if err := s.store.SaveReport(report); err != nil {
		return report, &PersistenceError{Op: "report " + report.ID, Err: err}
	}
	return report, nil
}

// SubmitReport moves a draft report to submitted and stamps the
// submission time.
func (s *Service) SubmitReport(id string) (*ExpenseReport, error) {
	return s.transitionReport(id, "submit", StatusSubmitted)
}

// ApproveReport moves a submitted report to the terminal approved status.
func (s *Service) ApproveReport(id string) (*ExpenseReport, error) {
	return s.transitionReport(id, "approve", StatusApproved)
}

// RejectReport moves a submitted report to the terminal rejected status.
func (s *Service) RejectReport(id string) (*ExpenseReport, error) {
	return s.transitionReport(id, "reject", StatusRejected)
}

func (s *Service) transitionReport(id, action string, next Status) (*ExpenseReport, error) {
	report, ok := s.reports[id]
	if !ok {
		return nil, &NotFoundError{Kind: "report", ID: id}
	}
	if !report.Status.CanTransition(next) {
		return nil, &InvalidStateError{ID: id, Status: report.Status, Action: action}
	}

	report.Status = next
	if next == StatusSubmitted {
		now := s.timeSource.Now()
		report.SubmittedAt = &now
	}

	if err := s.store.SaveReport(report); err != nil {
		return report, &PersistenceError{Op: "report " + id, Err: err}
	}
	return report, nil
}

// GetReport retrieves a report by ID with its total freshly recomputed.
func (s *Service) GetReport(id string) (*ExpenseReport, error) {
	report, ok := s.reports[id]
	if !ok {
		return nil, &NotFoundError{Kind: "report", ID: id}
	}
	report.TotalAmount = s.ComputeTotal(report)
	return report, nil
}

// DeleteReport removes a report unconditionally.
func (s *Service) DeleteReport(id string) error {
	if _, ok := s.reports[id]; !ok {
		return &NotFoundError{Kind: "report", ID: id}
	}

	delete(s.reports, id)
	s.reportOrder = removeID(s.reportOrder, id)

	if err := s.store.DeleteReport(id); err != nil {
		return &PersistenceError{Op: "report " + id, Err: err}
	}
	return nil
}

// ListReports returns reports matching the filter in insertion order,
// each with its total freshly recomputed.
func (s *Service) ListReports(filter ReportFilter) []*ExpenseReport {
	reports := make([]*ExpenseReport, 0, len(s.reportOrder))
	for _, id := range s.reportOrder {
		r := s.reports[id]
		r.TotalAmount = s.ComputeTotal(r)
		if filter.Matches(r) {
			reports = append(reports, r)
		}
	}
	return reports
}

// ComputeTotal sums the amounts of the report's referenced receipts.
// Receipts deleted since report creation are silently excluded.
func (s *Service) ComputeTotal(report *ExpenseReport) decimal.Decimal {
	total := decimal.Zero
	for _, rid := range report.ReceiptIDs {
		if receipt, ok := s.receipts[rid]; ok {
			total = total.Add(receipt.Amount)
		}
	}
	return total
}

// ScanReceipt runs the configured scanner over a receipt image or PDF and
// records a receipt from the extracted fields, attaching the original file.
func (s *Service) ScanReceipt(filename string, data []byte, contentType, paymentMethod string) (*Receipt, error) {
	if s.scanner == nil {
		return nil, fmt.Errorf("no scanner configured")
	}

	scanned, err := s.scanner.ScanReceipt(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	date, err := time.Parse("2006-01-02", scanned.Date)
	if err != nil {
		date = dayOf(s.timeSource.Now())
	}

	return s.AddReceipt(AddReceiptParams{
		Vendor:         scanned.Vendor,
		Amount:         decimal.NewFromFloat(scanned.Amount).Round(2),
		Category:       scanned.Category,
		Description:    scanned.Description,
		PaymentMethod:  paymentMethod,
		Date:           date,
		AttachmentName: filename,
		Attachment:     data,
	})
}
