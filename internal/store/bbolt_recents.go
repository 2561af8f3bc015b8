package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketRecents = []byte("recent_conversations")

type bboltRecentsStore struct {
	db  *bolt.DB
	now func() time.Time
	mu  sync.Mutex
}

type Option func(*bboltRecentsStore)

func WithClock(now func() time.Time) Option {
	return func(s *bboltRecentsStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewBboltRecentsStore(path string, opts ...Option) (RecentsStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("recents db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecents)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &bboltRecentsStore{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Record inserts or replaces an entry. StartedAt of an existing entry is kept.
func (s *bboltRecentsStore) Record(ctx context.Context, entry RecentConversation) (RecentConversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = strings.TrimSpace(entry.ID)
	if entry.ID == "" {
		return RecentConversation{}, errors.New("recent conversation requires id")
	}
	now := s.now().UTC()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecents)
		if b == nil {
			return errors.New("recents bucket missing")
		}
		if existing, ok, err := decodeRecent(b.Get([]byte(entry.ID))); err != nil {
			return err
		} else if ok && !existing.StartedAt.IsZero() {
			entry.StartedAt = existing.StartedAt
		}
		if entry.StartedAt.IsZero() {
			entry.StartedAt = now
		}
		if entry.LastOpenedAt.IsZero() {
			entry.LastOpenedAt = now
		}
		return putRecent(b, entry)
	})
	if err != nil {
		return RecentConversation{}, err
	}
	return entry, nil
}

func (s *bboltRecentsStore) Touch(ctx context.Context, id string) (RecentConversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		entry RecentConversation
		ok    bool
	)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecents)
		if b == nil {
			return errors.New("recents bucket missing")
		}
		var err error
		entry, ok, err = decodeRecent(b.Get([]byte(strings.TrimSpace(id))))
		if err != nil || !ok {
			return err
		}
		entry.LastOpenedAt = s.now().UTC()
		return putRecent(b, entry)
	})
	if err != nil {
		return RecentConversation{}, false, err
	}
	return entry, ok, nil
}

func (s *bboltRecentsStore) Get(ctx context.Context, id string) (RecentConversation, bool, error) {
	var (
		entry RecentConversation
		ok    bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecents)
		if b == nil {
			return nil
		}
		var err error
		entry, ok, err = decodeRecent(b.Get([]byte(strings.TrimSpace(id))))
		return err
	})
	if err != nil {
		return RecentConversation{}, false, err
	}
	return entry, ok, nil
}

// List returns entries most recently opened first. A limit <= 0 returns all.
func (s *bboltRecentsStore) List(ctx context.Context, limit int) ([]RecentConversation, error) {
	out := make([]RecentConversation, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecents)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			entry, ok, err := decodeRecent(v)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, entry)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastOpenedAt.Equal(out[j].LastOpenedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].LastOpenedAt.After(out[j].LastOpenedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *bboltRecentsStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecents)
		if b == nil {
			return errors.New("recents bucket missing")
		}
		return b.Delete([]byte(strings.TrimSpace(id)))
	})
}

func (s *bboltRecentsStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func decodeRecent(raw []byte) (RecentConversation, bool, error) {
	if len(raw) == 0 {
		return RecentConversation{}, false, nil
	}
	var entry RecentConversation
	if err := json.Unmarshal(raw, &entry); err != nil {
		return RecentConversation{}, false, err
	}
	return entry, true, nil
}

func putRecent(b *bolt.Bucket, entry RecentConversation) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return b.Put([]byte(entry.ID), raw)
}
