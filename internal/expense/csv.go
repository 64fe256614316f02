package expense

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// ExportCSV renders receipts as a CSV byte stream. Attachment paths are
// internal storage detail and are not exported.
func ExportCSV(receipts []*Receipt) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"ID", "Date", "Vendor", "Amount", "Category", "Description", "Payment Method", "Created At"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}

	for _, r := range receipts {
		row := []string{
			r.ID,
			r.Date.Format("2006-01-02"),
			r.Vendor,
			r.Amount.StringFixed(2),
			r.Category,
			r.Description,
			r.PaymentMethod,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("writing CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
