package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// parseReceiptJSON parses the JSON response returned by a vision model.
// Models sometimes wrap the object in markdown fences or prose, so the
// object boundaries are located before unmarshaling.
func parseReceiptJSON(text string) (*ReceiptData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var data ReceiptData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// Normalize the date to YYYY-MM-DD, falling back to today
	if data.Date != "" {
		parsedDate, err := time.Parse("2006-01-02", data.Date)
		if err != nil {
			formats := []string{
				"2006/01/02",
				"01/02/2006",
				"02-01-2006",
			}
			parsed := false
			for _, format := range formats {
				if d, e := time.Parse(format, data.Date); e == nil {
					data.Date = d.Format("2006-01-02")
					parsed = true
					break
				}
			}
			if !parsed {
				data.Date = time.Now().Format("2006-01-02")
			}
		} else {
			data.Date = parsedDate.Format("2006-01-02")
		}
	} else {
		data.Date = time.Now().Format("2006-01-02")
	}

	data.Vendor = strings.TrimSpace(data.Vendor)
	if data.Vendor == "" {
		data.Vendor = "Unknown Vendor"
	}
	data.Category = strings.TrimSpace(data.Category)
	data.Description = strings.TrimSpace(data.Description)

	// Amount stays a float64 here; the service converts it to a decimal
	// when creating the receipt record.

	return &data, nil
}
