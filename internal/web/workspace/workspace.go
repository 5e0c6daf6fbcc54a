// Package workspace keeps per-session scratch state: the lead lists of
// campaign views and the contact book. It is not durable. Everything is
// wiped when the server starts and a session's data goes with its sign out.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/coldreach/internal/web/models"
)

var (
	bucketLeads    = []byte("leads")
	bucketContacts = []byte("contacts")
	keyContacts    = []byte("all")
)

type Store struct {
	db    *bolt.DB
	locks keyedMutex
}

// keyedMutex hands out one mutex per key and forgets it once unused
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			k.mu.Lock()
			if m.refs--; m.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}

// held returns the number of keys with a holder or waiter
func (k *keyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// LockLeads serializes changes to one campaign's lead list. Callers hold
// it from reading the list until the new list is saved.
func (s *Store) LockLeads(sessionID, campaignID string) (unlock func()) {
	return s.locks.lock(sessionID + "/leads/" + campaignID)
}

// LockContacts serializes changes to a session's contact book
func (s *Store) LockContacts(sessionID string) (unlock func()) {
	return s.locks.lock(sessionID + "/contacts")
}

// Open opens the workspace file and clears whatever a previous run left
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	s := &Store{db: db}
	if err := s.Reset(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Reset drops every session's data
func (s *Store) Reset() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset workspace: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// sessionBucket returns the nested bucket name of a session, creating it
// when create is set. It returns nil when the bucket is missing.
func sessionBucket(tx *bolt.Tx, sessionID string, name []byte, create bool) (*bolt.Bucket, error) {
	if create {
		root, err := tx.CreateBucketIfNotExists([]byte(sessionID))
		if err != nil {
			return nil, err
		}
		return root.CreateBucketIfNotExists(name)
	}

	root := tx.Bucket([]byte(sessionID))
	if root == nil {
		return nil, nil
	}
	return root.Bucket(name), nil
}

// Leads returns the lead list of a campaign, or nil if none was saved
func (s *Store) Leads(sessionID, campaignID string) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := sessionBucket(tx, sessionID, bucketLeads, false)
		if err != nil || b == nil {
			return err
		}
		data := b.Get([]byte(campaignID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &leads)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read leads: %w", err)
	}
	return leads, nil
}

// SaveLeads replaces the lead list of a campaign
func (s *Store) SaveLeads(sessionID, campaignID string, leads []models.Lead) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	data, err := json.Marshal(leads)
	if err != nil {
		return fmt.Errorf("failed to marshal leads: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := sessionBucket(tx, sessionID, bucketLeads, true)
		if err != nil {
			return err
		}
		return b.Put([]byte(campaignID), data)
	})
}

// Contacts returns the contact book and whether one was saved
func (s *Store) Contacts(sessionID string) ([]models.Contact, bool, error) {
	var (
		contacts []models.Contact
		found    bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := sessionBucket(tx, sessionID, bucketContacts, false)
		if err != nil || b == nil {
			return err
		}
		data := b.Get(keyContacts)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &contacts)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read contacts: %w", err)
	}
	return contacts, found, nil
}

// SaveContacts replaces the contact book
func (s *Store) SaveContacts(sessionID string, contacts []models.Contact) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	data, err := json.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("failed to marshal contacts: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := sessionBucket(tx, sessionID, bucketContacts, true)
		if err != nil {
			return err
		}
		return b.Put(keyContacts, data)
	})
}

// DropSession removes everything stored for a session
func (s *Store) DropSession(sessionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(sessionID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Sessions returns the number of sessions holding data
func (s *Store) Sessions() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(_ []byte, _ *bolt.Bucket) error {
			n++
			return nil
		})
	})
	return n, err
}
