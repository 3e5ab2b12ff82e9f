package receipt

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/snapbill/internal/scanning"
)

var (
	// ErrSessionNotFound is returned when a session ID is unknown
	ErrSessionNotFound = errors.New("session not found")
	// ErrExtractionInProgress is returned when an upload arrives while a receipt is still being analyzed
	ErrExtractionInProgress = errors.New("receipt is still being analyzed")
	// ErrExtractionFailed wraps scanner failures; it is distinct from a not-a-receipt result
	ErrExtractionFailed = errors.New("could not analyze receipt")
	// ErrSessionBusy is returned for item changes while an extraction is outstanding
	ErrSessionBusy = errors.New("session is busy")
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusEmpty      Status = "empty"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Item is an extracted line item tagged with its position at extraction time
type Item struct {
	ID          int             `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Assignment partitions the extracted items into unassigned and mine.
// Every item is in exactly one of the two sequences, each sorted by ID.
type Assignment struct {
	Unassigned []Item `json:"unassigned"`
	Mine       []Item `json:"mine"`
}

// Session is one user's receipt: the uploaded image, the extraction result
// and the item assignment derived from it
type Session struct {
	ID         string               `json:"id"`
	Status     Status               `json:"status"`
	Image      string               `json:"image,omitempty"` // data URI as uploaded
	Filename   string               `json:"filename,omitempty"`
	Extraction *scanning.Extraction `json:"extraction,omitempty"`
	Assignment Assignment           `json:"assignment"`
	Error      string               `json:"error,omitempty"`
	Generation uint64               `json:"generation"` // bumped on every extraction start and reset
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}
