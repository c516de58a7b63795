// Package storage persists the bot's durable state as whole-file JSON
// under a single data directory: the login session, the temporary
// pre-two-factor session, and the bid ledger. Writes are whole-file
// read-modify-write; single-tenant usage makes that acceptable.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"aucbid/pkg/models"
)

const (
	sessionFile     = "session.json"
	tempSessionFile = "session_pending.json"
	bidsFile        = "bids.json"
	diagnosticsDir  = "diagnostics"
)

// ErrNotFound is returned when a requested state file does not exist.
var ErrNotFound = fmt.Errorf("not found")

// Store owns the data directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the data directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, diagnosticsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DiagnosticsDir is where bid failure screenshots land.
func (s *Store) DiagnosticsDir() string {
	return filepath.Join(s.dir, diagnosticsDir)
}

// SaveSession persists the durable login session, replacing any previous one.
func (s *Store) SaveSession(sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(sessionFile, sess)
}

// LoadSession returns the durable login session. ErrNotFound when absent.
func (s *Store) LoadSession() (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sess models.Session
	if err := s.readJSON(sessionFile, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SaveTempSession persists the pre-two-factor session state.
func (s *Store) SaveTempSession(sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(tempSessionFile, sess)
}

// LoadTempSession returns the pre-two-factor session. ErrNotFound when absent.
func (s *Store) LoadTempSession() (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sess models.Session
	if err := s.readJSON(tempSessionFile, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteTempSession removes the pre-two-factor session file. Missing files
// are not an error.
func (s *Store) DeleteTempSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(filepath.Join(s.dir, tempSessionFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// UpsertBid inserts or replaces the ledger record for rec.ProductURL.
func (s *Store) UpsertBid(rec models.BidRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bids := s.loadBidsLocked()
	replaced := false
	for i := range bids {
		if bids[i].ProductURL == rec.ProductURL {
			bids[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		bids = append(bids, rec)
	}
	return s.writeJSON(bidsFile, bids)
}

// UpdateBidPrice refreshes the current price on an existing ledger record.
// The second return value reports whether a record for the URL existed.
func (s *Store) UpdateBidPrice(productURL, price string) (models.BidRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bids := s.loadBidsLocked()
	for i := range bids {
		if bids[i].ProductURL == productURL {
			bids[i].CurrentPrice = price
			bids[i].Timestamp = time.Now()
			if err := s.writeJSON(bidsFile, bids); err != nil {
				return models.BidRecord{}, false, err
			}
			return bids[i], true, nil
		}
	}
	return models.BidRecord{}, false, nil
}

// ListBids returns every ledger record. A missing or corrupt ledger file
// degrades to an empty list.
func (s *Store) ListBids() ([]models.BidRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadBidsLocked(), nil
}

func (s *Store) loadBidsLocked() []models.BidRecord {
	var bids []models.BidRecord
	if err := s.readJSON(bidsFile, &bids); err != nil {
		return []models.BidRecord{}
	}
	if bids == nil {
		bids = []models.BidRecord{}
	}
	return bids
}

func (s *Store) readJSON(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("corrupt state file %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, name), data, 0644)
}
