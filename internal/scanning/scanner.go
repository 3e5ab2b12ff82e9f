package scanning

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotImage is returned when the supplied file is not an image
	ErrNotImage = errors.New("file is not an image")
	// ErrInvalidDataURI is returned when a data URI cannot be parsed
	ErrInvalidDataURI = errors.New("invalid data URI")
	// ErrInvalidResponse is returned when the model reply does not match the extraction schema
	ErrInvalidResponse = errors.New("invalid extraction response")
)

// LineItem is a single priced entry on a receipt
type LineItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Quantity    *int            `json:"quantity,omitempty"` // nil or 1 after extraction
}

// Extraction contains the structured result of scanning an image
type Extraction struct {
	IsReceipt bool             `json:"is_receipt"`
	Total     *decimal.Decimal `json:"total,omitempty"`
	Items     []LineItem       `json:"items,omitempty"`
}

// Scanner defines the interface for receipt extraction
type Scanner interface {
	// Extract sends the image to the model and returns the normalized extraction.
	// A non-receipt image is not an error; it yields IsReceipt == false.
	Extract(ctx context.Context, photo DataURI) (*Extraction, error)
	// Close closes the scanner and releases resources
	Close() error
}
