package expense

import (
	"bytes"
	"encoding/csv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("ExportCSV", func() {
	var receipts []*Receipt

	BeforeEach(func() {
		receipts = []*Receipt{
			{
				ID:             "r-1",
				Date:           time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				Vendor:         "Staples",
				Amount:         decimal.RequireFromString("45.9"),
				Category:       "Office Supplies",
				Description:    "Toner, \"premium\"",
				PaymentMethod:  PaymentCredit,
				AttachmentPath: "r-1_receipt.jpg",
				CreatedAt:      time.Date(2024, 1, 10, 14, 30, 0, 0, time.UTC),
			},
			{
				ID:            "r-2",
				Date:          time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
				Vendor:        "Uber",
				Amount:        decimal.RequireFromString("12.50"),
				Category:      "Travel",
				PaymentMethod: PaymentCash,
				CreatedAt:     time.Date(2024, 1, 12, 9, 15, 0, 0, time.UTC),
			},
		}
	})

	It("should write a header and one row per receipt", func() {
		data, err := ExportCSV(receipts)
		Expect(err).NotTo(HaveOccurred())

		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[0]).To(Equal([]string{"ID", "Date", "Vendor", "Amount", "Category", "Description", "Payment Method", "Created At"}))
	})

	It("should render amounts with two decimal places", func() {
		data, err := ExportCSV(receipts)
		Expect(err).NotTo(HaveOccurred())

		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows[1][3]).To(Equal("45.90"))
		Expect(rows[2][3]).To(Equal("12.50"))
	})

	It("should survive quoting in free-text fields", func() {
		data, err := ExportCSV(receipts)
		Expect(err).NotTo(HaveOccurred())

		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows[1][5]).To(Equal("Toner, \"premium\""))
	})

	It("should not include attachment paths", func() {
		data, err := ExportCSV(receipts)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).NotTo(ContainSubstring("r-1_receipt.jpg"))
	})

	It("should emit only a header for no receipts", func() {
		data, err := ExportCSV(nil)
		Expect(err).NotTo(HaveOccurred())

		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
	})
})
