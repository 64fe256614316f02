package tests

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/opsdesk/expense-tracker/internal/expense"
	"github.com/opsdesk/expense-tracker/internal/scanning"
)

func TestIntegration(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Integration Suite")
}

// fakeScanner stands in for a vision model
type fakeScanner struct {
	data *scanning.ReceiptData
}

func (f *fakeScanner) ScanReceipt(imageData []byte, contentType string) (*scanning.ReceiptData, error) {
	return f.data, nil
}

func (f *fakeScanner) Close() error {
	return nil
}

var _ = Describe("Integration", func() {
	var (
		tempDir string
		dbPath  string
		store   *expense.BoltStore
		files   expense.Storage
		scanner *fakeScanner
		service *expense.Service
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tempDir, "expense-tracker.db")

		var err error
		store, err = expense.NewBoltStore(dbPath)
		Expect(err).NotTo(HaveOccurred())

		files, err = expense.NewLocalStorage(filepath.Join(tempDir, "attachments"))
		Expect(err).NotTo(HaveOccurred())

		scanner = &fakeScanner{
			data: &scanning.ReceiptData{
				Vendor:      "CVS Pharmacy",
				Date:        "2024-01-18",
				Amount:      25.99,
				Category:    "Office Supplies",
				Description: "Printer paper",
			},
		}

		service, err = expense.NewService(store, files, scanner)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	addReceipt := func(vendor, amount, category, payment string, day int) *expense.Receipt {
		receipt, err := service.AddReceipt(expense.AddReceiptParams{
			Vendor:        vendor,
			Amount:        decimal.RequireFromString(amount),
			Category:      category,
			PaymentMethod: payment,
			Date:          time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		})
		Expect(err).NotTo(HaveOccurred())
		return receipt
	}

	It("runs a full expense cycle end to end", func() {
		r1 := addReceipt("Staples", "45.99", "Office Supplies", expense.PaymentCredit, 10)
		r2 := addReceipt("Uber", "12.50", "Travel", expense.PaymentCredit, 12)
		r3 := addReceipt("Olive Garden", "89.00", "Meals & Entertainment", expense.PaymentCash, 14)

		report, err := service.CreateReport(expense.CreateReportParams{
			Title:        "January expenses",
			EmployeeName: "Dana Whitfield",
			Department:   "Operations",
			PeriodStart:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			ReceiptIDs:   []string{r1.ID, r2.ID, r3.ID},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.TotalAmount).To(Equal(decimal.RequireFromString("147.49")))

		_, err = service.SubmitReport(report.ID)
		Expect(err).NotTo(HaveOccurred())
		approved, err := service.ApproveReport(report.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(approved.Status).To(Equal(expense.StatusApproved))

		summary := service.GenerateSummary(
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		)
		Expect(summary.Count).To(Equal(3))
		Expect(summary.AverageAmount).To(Equal(decimal.RequireFromString("49.16")))
	})

	It("persists state across a restart", func() {
		r1 := addReceipt("Staples", "45.99", "Office Supplies", expense.PaymentCredit, 10)
		r2 := addReceipt("Uber", "12.50", "Travel", expense.PaymentCredit, 12)

		report, err := service.CreateReport(expense.CreateReportParams{
			Title:        "Mid-month",
			EmployeeName: "Dana Whitfield",
			Department:   "Operations",
			PeriodStart:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			ReceiptIDs:   []string{r1.ID, r2.ID},
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = service.SubmitReport(report.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = service.RegisterCategory("Training")
		Expect(err).NotTo(HaveOccurred())

		Expect(store.Close()).To(Succeed())

		reopened, err := expense.NewBoltStore(dbPath)
		Expect(err).NotTo(HaveOccurred())
		store = reopened

		restarted, err := expense.NewService(reopened, files, nil)
		Expect(err).NotTo(HaveOccurred())

		receipts := restarted.ListReceipts(expense.ReceiptFilter{})
		Expect(receipts).To(HaveLen(2))

		got, err := restarted.GetReport(report.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(expense.StatusSubmitted))
		Expect(got.TotalAmount).To(Equal(decimal.RequireFromString("58.49")))

		Expect(restarted.Categories()).To(ContainElement("Training"))
	})

	It("recomputes report totals after a referenced receipt is deleted", func() {
		r1 := addReceipt("Staples", "45.99", "Office Supplies", expense.PaymentCredit, 10)
		r2 := addReceipt("Uber", "12.50", "Travel", expense.PaymentCredit, 12)

		report, err := service.CreateReport(expense.CreateReportParams{
			Title:        "Shrinking",
			EmployeeName: "Dana Whitfield",
			Department:   "Operations",
			PeriodStart:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			ReceiptIDs:   []string{r1.ID, r2.ID},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(service.DeleteReceipt(r2.ID)).To(Succeed())

		got, err := service.GetReport(report.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.TotalAmount).To(Equal(decimal.RequireFromString("45.99")))
	})

	It("scans a receipt file into a stored record with attachment", func() {
		receipt, err := service.ScanReceipt("receipt.jpg", []byte("fake image data"), "image/jpeg", expense.PaymentDebit)
		Expect(err).NotTo(HaveOccurred())
		Expect(receipt.Vendor).To(Equal("CVS Pharmacy"))
		Expect(receipt.Amount).To(Equal(decimal.RequireFromString("25.99")))
		Expect(receipt.PaymentMethod).To(Equal(expense.PaymentDebit))

		data, err := service.GetAttachment(receipt.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("fake image data")))
	})

	It("exports receipts to CSV", func() {
		addReceipt("Staples", "45.99", "Office Supplies", expense.PaymentCredit, 10)
		addReceipt("Uber", "12.50", "Travel", expense.PaymentCredit, 12)

		data, err := expense.ExportCSV(service.ListReceipts(expense.ReceiptFilter{}))
		Expect(err).NotTo(HaveOccurred())

		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[1][2]).To(Equal("Staples"))
		Expect(rows[2][3]).To(Equal("12.50"))
	})
})
