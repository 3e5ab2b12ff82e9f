package receipt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const sessionBucketName = "sessions"

// DB defines the interface for session persistence
type DB interface {
	// SaveSession stores a session, replacing any existing one with the same ID
	SaveSession(session *Session) error

	// GetSession retrieves a session by ID
	GetSession(id string) (*Session, error)

	// UpdateSession atomically loads a session, applies fn and stores the
	// result. Nothing is stored if fn returns an error.
	UpdateSession(id string, fn func(*Session) error) (*Session, error)

	// ListSessions returns every stored session
	ListSessions() ([]*Session, error)

	// DeleteSession removes a session
	DeleteSession(id string) error

	// PruneSessions removes sessions last updated before cutoff and returns how many were removed
	PruneSessions(cutoff time.Time) (int, error)

	// Close closes the database connection
	Close() error
}

func encodeSession(session *Session) ([]byte, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}
	return data, nil
}

func decodeSession(data []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &session, nil
}

// BoltDB implements the DB interface using BoltDB, so sessions survive restarts
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveSession saves a session to the database
func (b *BoltDB) SaveSession(session *Session) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeSession(session)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(sessionBucketName)).Put([]byte(session.ID), data)
	})
}

// GetSession retrieves a session by ID
func (b *BoltDB) GetSession(id string) (*Session, error) {
	var session *Session
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(sessionBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		var err error
		session, err = decodeSession(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateSession applies fn to a session inside a single read-write transaction
func (b *BoltDB) UpdateSession(id string, fn func(*Session) error) (*Session, error) {
	var session *Session
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}

		var err error
		session, err = decodeSession(data)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}

		data, err = encodeSession(session)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), data)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns all sessions in key order
func (b *BoltDB) ListSessions() ([]*Session, error) {
	var sessions []*Session
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucketName)).ForEach(func(k, v []byte) error {
			session, err := decodeSession(v)
			if err != nil {
				return fmt.Errorf("session %s: %w", k, err)
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes a session from the database
func (b *BoltDB) DeleteSession(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// PruneSessions removes sessions not updated since cutoff
func (b *BoltDB) PruneSessions(cutoff time.Time) (int, error) {
	removed := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))

		// collect first; deleting through a cursor skips the following key
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			session, err := decodeSession(v)
			if err != nil {
				return err
			}
			if session.UpdatedAt.Before(cutoff) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("deleting session %s: %w", k, err)
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// MemoryDB implements the DB interface in process memory. Sessions are stored
// encoded so callers never share state with the store.
type MemoryDB struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

// NewMemoryDB creates an empty MemoryDB
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{sessions: make(map[string][]byte)}
}

// SaveSession saves a session
func (m *MemoryDB) SaveSession(session *Session) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = data
	return nil
}

// GetSession retrieves a session by ID
func (m *MemoryDB) GetSession(id string) (*Session, error) {
	m.mu.Lock()
	data, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return decodeSession(data)
}

// UpdateSession applies fn to a session while holding the store lock
func (m *MemoryDB) UpdateSession(id string, fn func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	session, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	data, err = encodeSession(session)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = data
	return session, nil
}

// ListSessions returns all sessions in no particular order
func (m *MemoryDB) ListSessions() ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, data := range m.sessions {
		session, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// DeleteSession removes a session
func (m *MemoryDB) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

// PruneSessions removes sessions not updated since cutoff
func (m *MemoryDB) PruneSessions(cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, data := range m.sessions {
		session, err := decodeSession(data)
		if err != nil {
			return removed, err
		}
		if session.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op
func (m *MemoryDB) Close() error {
	return nil
}
