package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/snapbill/internal/scanning"
)

// IDGenerator generates unique IDs for sessions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt sessions
type Service struct {
	db          DB
	scanner     scanning.Scanner
	metrics     *Metrics
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, metrics *Metrics) *Service {
	return NewServiceWithDeps(db, scanner, metrics, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, metrics *Metrics, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		metrics:     metrics,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Extract runs the stateless extraction boundary on a data URI
func (s *Service) Extract(ctx context.Context, photoDataURI string) (*scanning.Extraction, error) {
	photo, err := scanning.ParseDataURI(photoDataURI)
	if err != nil {
		return nil, err
	}
	data, err := photo.Bytes()
	if err != nil {
		return nil, err
	}
	if err := s.checkImage(data, photo.MIMEType); err != nil {
		return nil, err
	}
	return s.extract(ctx, photo)
}

// checkImage rejects anything the model should never see
func (s *Service) checkImage(data []byte, contentType string) error {
	if err := scanning.CheckImage(data, contentType); err != nil {
		s.metrics.rejectedUploads.Inc()
		slog.Warn("Rejected non-image input", "content_type", contentType, "size", len(data), "error", err)
		return err
	}
	return nil
}

func (s *Service) extract(ctx context.Context, photo scanning.DataURI) (*scanning.Extraction, error) {
	start := s.timeSource.Now()
	extraction, err := s.scanner.Extract(ctx, photo)
	elapsed := s.timeSource.Now().Sub(start)

	if errors.Is(err, scanning.ErrNotImage) {
		s.metrics.rejectedUploads.Inc()
		return nil, err
	}
	if err != nil {
		s.metrics.observeExtraction(resultError, 0, elapsed)
		slog.Error("Failed to extract receipt",
			"content_type", photo.MIMEType,
			"payload_size", len(photo.Base64()),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	if !extraction.IsReceipt {
		s.metrics.observeExtraction(resultNotReceipt, 0, elapsed)
		slog.Info("Image is not a receipt", "elapsed", elapsed)
		return extraction, nil
	}

	s.metrics.observeExtraction(resultReceipt, len(extraction.Items), elapsed)
	slog.Info("Extracted receipt", "items", len(extraction.Items), "elapsed", elapsed)
	return extraction, nil
}

// CreateSession starts a new empty session
func (s *Service) CreateSession() (*Session, error) {
	session := NewSession(s.idGenerator.Generate(), s.timeSource.Now())
	if err := s.db.SaveSession(session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by ID
func (s *Service) GetSession(id string) (*Session, error) {
	session, err := s.db.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session
func (s *Service) DeleteSession(id string) error {
	if err := s.db.DeleteSession(id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// ScanReceipt replaces the session's receipt with a new image and extracts it.
// Empty, undecodable and non-image files are rejected before the scanner is
// called. If the session is reset
// while the scanner runs, the result is discarded.
func (s *Service) ScanReceipt(ctx context.Context, id string, filename string, data []byte, contentType string) (*Session, error) {
	if err := s.checkImage(data, contentType); err != nil {
		return nil, fmt.Errorf("rejecting %s: %w", filename, err)
	}

	photo := scanning.NewDataURI(contentType, data)

	var generation uint64
	_, err := s.db.UpdateSession(id, func(session *Session) error {
		var err error
		generation, err = session.Begin(photo.String(), filename, s.timeSource.Now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("starting extraction: %w", err)
	}

	// the result belongs to the session, not to this request
	extraction, extractErr := s.extract(context.WithoutCancel(ctx), photo)

	stale := false
	session, err := s.db.UpdateSession(id, func(session *Session) error {
		now := s.timeSource.Now()
		if extractErr != nil {
			stale = !session.Fail(generation, failedExtractionMessage, now)
		} else {
			stale = !session.Complete(generation, extraction, now)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving extraction: %w", err)
	}

	if stale {
		s.metrics.staleResults.Inc()
		slog.Info("Discarding stale extraction", "session", id, "generation", generation)
		return session, nil
	}
	if extractErr != nil {
		return session, extractErr
	}
	return session, nil
}

// SelectItem marks an item as mine
func (s *Service) SelectItem(id string, itemID int) (*Session, error) {
	s.metrics.itemToggles.WithLabelValues("select").Inc()
	session, err := s.db.UpdateSession(id, func(session *Session) error {
		return session.Select(itemID, s.timeSource.Now())
	})
	if err != nil {
		return nil, fmt.Errorf("selecting item %d: %w", itemID, err)
	}
	return session, nil
}

// DeselectItem returns an item to the unassigned list
func (s *Service) DeselectItem(id string, itemID int) (*Session, error) {
	s.metrics.itemToggles.WithLabelValues("deselect").Inc()
	session, err := s.db.UpdateSession(id, func(session *Session) error {
		return session.Deselect(itemID, s.timeSource.Now())
	})
	if err != nil {
		return nil, fmt.Errorf("deselecting item %d: %w", itemID, err)
	}
	return session, nil
}

// RemoveReceipt clears the image, extraction and assignments of a session
func (s *Service) RemoveReceipt(id string) (*Session, error) {
	session, err := s.db.UpdateSession(id, func(session *Session) error {
		session.Reset(s.timeSource.Now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("removing receipt: %w", err)
	}
	return session, nil
}

// RecoverInterrupted fails sessions left processing by a previous run so
// users can upload again. It must run before the server accepts requests.
func (s *Service) RecoverInterrupted() (int, error) {
	sessions, err := s.db.ListSessions()
	if err != nil {
		return 0, fmt.Errorf("listing sessions: %w", err)
	}

	recovered := 0
	for _, stored := range sessions {
		if stored.Status != StatusProcessing {
			continue
		}
		interrupted := false
		_, err := s.db.UpdateSession(stored.ID, func(session *Session) error {
			interrupted = session.Interrupt(s.timeSource.Now())
			return nil
		})
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return recovered, fmt.Errorf("recovering session %s: %w", stored.ID, err)
		}
		if interrupted {
			recovered++
		}
	}

	if recovered > 0 {
		slog.Warn("Failed extractions interrupted by restart", "count", recovered)
	}
	return recovered, nil
}

// PruneSessions removes sessions idle for longer than maxAge
func (s *Service) PruneSessions(maxAge time.Duration) (int, error) {
	removed, err := s.db.PruneSessions(s.timeSource.Now().Add(-maxAge))
	if err != nil {
		return removed, fmt.Errorf("pruning sessions: %w", err)
	}
	if removed > 0 {
		slog.Info("Pruned idle sessions", "count", removed)
	}
	return removed, nil
}
