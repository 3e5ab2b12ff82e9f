package receipt

import (
	"time"

	"github.com/zombor/snapbill/internal/scanning"
)

// failedExtractionMessage is shown to the user when the scanner errors
const failedExtractionMessage = "Could not analyze receipt. Please try again."

// interruptedExtractionMessage is shown when a restart cut an extraction short
const interruptedExtractionMessage = "The scan was interrupted. Please upload the receipt again."

// NewSession creates an empty session
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		Status:     StatusEmpty,
		Assignment: Assignment{Unassigned: []Item{}, Mine: []Item{}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Begin clears any previous receipt, stores the new image and marks the
// session as processing. The returned generation must be passed to Complete
// or Fail.
func (s *Session) Begin(image, filename string, now time.Time) (uint64, error) {
	if s.Status == StatusProcessing {
		return 0, ErrExtractionInProgress
	}
	s.clear()
	s.Generation++
	s.Status = StatusProcessing
	s.Image = image
	s.Filename = filename
	s.UpdatedAt = now
	return s.Generation, nil
}

// Complete applies an extraction result. It reports false, leaving the session
// untouched, if the session was reset or restarted since generation began.
func (s *Session) Complete(generation uint64, extraction *scanning.Extraction, now time.Time) bool {
	if !s.current(generation) {
		return false
	}
	s.Extraction = extraction
	if extraction.IsReceipt {
		s.Assignment = NewAssignment(extraction.Items)
	}
	s.Status = StatusReady
	s.UpdatedAt = now
	return true
}

// Fail records a failed extraction so the user can retry
func (s *Session) Fail(generation uint64, message string, now time.Time) bool {
	if !s.current(generation) {
		return false
	}
	s.Status = StatusFailed
	s.Error = message
	s.UpdatedAt = now
	return true
}

// Interrupt fails an extraction that can no longer finish, such as one
// cut short by a restart. The generation is bumped so any late result is
// discarded. It reports false if nothing was in flight.
func (s *Session) Interrupt(now time.Time) bool {
	if s.Status != StatusProcessing {
		return false
	}
	s.Generation++
	s.Status = StatusFailed
	s.Error = interruptedExtractionMessage
	s.UpdatedAt = now
	return true
}

// Reset removes the image, the extraction and all assignments at once
func (s *Session) Reset(now time.Time) {
	s.clear()
	s.Generation++
	s.Status = StatusEmpty
	s.Image = ""
	s.Filename = ""
	s.UpdatedAt = now
}

// Select marks an item as mine. Unknown or already selected items are ignored.
func (s *Session) Select(itemID int, now time.Time) error {
	if s.Status == StatusProcessing {
		return ErrSessionBusy
	}
	if s.Assignment.Select(itemID) {
		s.UpdatedAt = now
	}
	return nil
}

// Deselect returns an item to the unassigned list
func (s *Session) Deselect(itemID int, now time.Time) error {
	if s.Status == StatusProcessing {
		return ErrSessionBusy
	}
	if s.Assignment.Deselect(itemID) {
		s.UpdatedAt = now
	}
	return nil
}

// IsReceipt reports whether the current extraction classified the image as a receipt
func (s *Session) IsReceipt() bool {
	return s.Extraction != nil && s.Extraction.IsReceipt
}

func (s *Session) current(generation uint64) bool {
	return s.Status == StatusProcessing && s.Generation == generation
}

func (s *Session) clear() {
	s.Extraction = nil
	s.Assignment.Reset()
	s.Error = ""
}
