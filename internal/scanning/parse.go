package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// maxQuantity bounds how many unit lines a single receipt line may unroll into
const maxQuantity = 100

type rawLineItem struct {
	Description string           `json:"description"`
	Quantity    *float64         `json:"quantity"`
	Amount      *decimal.Decimal `json:"amount"`
}

type rawExtraction struct {
	IsReceipt *bool            `json:"isReceipt"`
	Total     *decimal.Decimal `json:"total"`
	Items     []rawLineItem    `json:"items"`
}

// extractJSONObject strips markdown fences and any text around the outermost JSON object
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("%w: no JSON object found in response", ErrInvalidResponse)
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return "", fmt.Errorf("%w: invalid JSON object in response", ErrInvalidResponse)
	}
	return text[startIdx : endIdx+1], nil
}

// parseExtractionJSON parses a model reply, validates it, and unrolls
// multi-quantity lines into unit lines
func parseExtractionJSON(text string) (*Extraction, error) {
	text, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling json: %v", ErrInvalidResponse, err)
	}
	if raw.IsReceipt == nil {
		return nil, fmt.Errorf("%w: missing isReceipt", ErrInvalidResponse)
	}

	// A negative classification carries nothing else, whatever the model sent
	if !*raw.IsReceipt {
		return &Extraction{IsReceipt: false}, nil
	}

	extraction := &Extraction{IsReceipt: true}
	if raw.Total != nil {
		total := raw.Total.Round(2)
		extraction.Total = &total
	}

	if raw.Items != nil {
		items, err := unrollItems(raw.Items)
		if err != nil {
			return nil, err
		}
		extraction.Items = items
	}

	return extraction, nil
}

// unrollItems validates each line and expands quantity q > 1 into q unit lines
// that share the line amount
func unrollItems(raw []rawLineItem) ([]LineItem, error) {
	items := make([]LineItem, 0, len(raw))
	for i, r := range raw {
		description := strings.TrimSpace(r.Description)
		if description == "" {
			return nil, fmt.Errorf("%w: item %d has no description", ErrInvalidResponse, i)
		}
		if r.Amount == nil {
			return nil, fmt.Errorf("%w: item %d (%s) has no amount", ErrInvalidResponse, i, description)
		}

		quantity := 1
		if r.Quantity != nil {
			q := *r.Quantity
			if q < 0 || q != float64(int(q)) || q > maxQuantity {
				return nil, fmt.Errorf("%w: item %d (%s) has invalid quantity %v", ErrInvalidResponse, i, description, q)
			}
			if q > 0 {
				quantity = int(q)
			}
		}

		if quantity == 1 {
			item := LineItem{Description: description, Amount: r.Amount.Round(2)}
			if r.Quantity != nil {
				item.Quantity = unitQuantity()
			}
			items = append(items, item)
			continue
		}

		for _, amount := range SplitAmount(*r.Amount, quantity) {
			items = append(items, LineItem{
				Description: description,
				Amount:      amount,
				Quantity:    unitQuantity(),
			})
		}
	}
	return items, nil
}

func unitQuantity() *int {
	one := 1
	return &one
}

// SplitAmount divides amount (rounded to cents) into n parts that sum to it exactly.
// Leftover cents go to the first parts: 3.01 split three ways is 1.01, 1.00, 1.00.
func SplitAmount(amount decimal.Decimal, n int) []decimal.Decimal {
	if n < 1 {
		return nil
	}

	cents := amount.Shift(2).Round(0).IntPart()
	base := cents / int64(n)
	remainder := cents % int64(n)
	step := int64(1)
	if remainder < 0 {
		step, remainder = -1, -remainder
	}

	parts := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		c := base
		if int64(i) < remainder {
			c += step
		}
		parts[i] = decimal.New(c, -2)
	}
	return parts
}
