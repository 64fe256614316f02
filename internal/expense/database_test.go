package expense

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("BoltStore", func() {
	var (
		tmpDir string
		dbPath string
		store  *BoltStore
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		store, err = NewBoltStore(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("Load", func() {
		When("the database is fresh", func() {
			It("should return empty maps and no categories", func() {
				receipts, reports, categories, err := store.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(BeEmpty())
				Expect(reports).To(BeEmpty())
				Expect(categories).To(BeNil())
			})
		})
	})

	Describe("SaveReceipt", func() {
		var receipt *Receipt

		BeforeEach(func() {
			receipt = &Receipt{
				ID:             "test-id",
				Date:           time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				Vendor:         "Staples",
				Amount:         decimal.RequireFromString("25.99"),
				Category:       "Office Supplies",
				Description:    "Toner",
				PaymentMethod:  PaymentCredit,
				AttachmentPath: "test-id_receipt.jpg",
				CreatedAt:      time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			}
		})

		It("should round-trip the receipt through Load", func() {
			Expect(store.SaveReceipt(receipt)).To(Succeed())
			receipts, _, _, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveKey("test-id"))

			got := receipts["test-id"]
			Expect(got.Vendor).To(Equal("Staples"))
			Expect(got.Amount).To(Equal(decimal.RequireFromString("25.99")))
			Expect(got.Date.Equal(receipt.Date)).To(BeTrue())
			Expect(got.AttachmentPath).To(Equal("test-id_receipt.jpg"))
		})

		It("should overwrite an existing record with the same ID", func() {
			Expect(store.SaveReceipt(receipt)).To(Succeed())
			receipt.Vendor = "Office Depot"
			Expect(store.SaveReceipt(receipt)).To(Succeed())

			receipts, _, _, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(1))
			Expect(receipts["test-id"].Vendor).To(Equal("Office Depot"))
		})
	})

	Describe("DeleteReceipt", func() {
		It("should remove the record", func() {
			Expect(store.SaveReceipt(&Receipt{ID: "gone", Vendor: "X", Amount: decimal.New(1, 0)})).To(Succeed())
			Expect(store.DeleteReceipt("gone")).To(Succeed())
			receipts, _, _, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
		})

		It("should be a no-op for an unknown ID", func() {
			Expect(store.DeleteReceipt("missing")).To(Succeed())
		})
	})

	Describe("SaveReport", func() {
		var (
			report    *ExpenseReport
			submitted time.Time
		)

		BeforeEach(func() {
			submitted = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
			report = &ExpenseReport{
				ID:           "rep-1",
				Title:        "January expenses",
				EmployeeName: "Dana Whitfield",
				Department:   "Operations",
				PeriodStart:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				PeriodEnd:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
				ReceiptIDs:   []string{"a", "b"},
				TotalAmount:  decimal.RequireFromString("147.49"),
				Status:       StatusSubmitted,
				CreatedAt:    time.Date(2024, 1, 31, 17, 0, 0, 0, time.UTC),
				SubmittedAt:  &submitted,
			}
		})

		It("should round-trip the report through Load", func() {
			Expect(store.SaveReport(report)).To(Succeed())
			_, reports, _, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveKey("rep-1"))

			got := reports["rep-1"]
			Expect(got.Status).To(Equal(StatusSubmitted))
			Expect(got.ReceiptIDs).To(Equal([]string{"a", "b"}))
			Expect(got.TotalAmount).To(Equal(decimal.RequireFromString("147.49")))
			Expect(got.SubmittedAt).NotTo(BeNil())
			Expect(got.SubmittedAt.Equal(submitted)).To(BeTrue())
		})
	})

	Describe("DeleteReport", func() {
		It("should remove the record", func() {
			Expect(store.SaveReport(&ExpenseReport{ID: "rep-1", Status: StatusDraft})).To(Succeed())
			Expect(store.DeleteReport("rep-1")).To(Succeed())
			_, reports, _, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(BeEmpty())
		})
	})

	Describe("SaveCategories", func() {
		It("should round-trip the category set", func() {
			categories := append(append([]string(nil), DefaultCategories...), "Training")
			Expect(store.SaveCategories(categories)).To(Succeed())
			_, _, got, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(categories))
		})
	})

	Describe("reopening", func() {
		It("should see data written before Close", func() {
			Expect(store.SaveReceipt(&Receipt{ID: "keep", Vendor: "X", Amount: decimal.New(5, 0)})).To(Succeed())
			Expect(store.Close()).To(Succeed())

			reopened, err := NewBoltStore(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			receipts, _, _, err := reopened.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveKey("keep"))
			store = nil
		})
	})
})
