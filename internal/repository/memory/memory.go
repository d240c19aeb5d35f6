// Package memory keeps documents in process. It backs STORE_DRIVER=memory and
// the HTTP tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scripty-dev/starter-api/internal/domain"
	"github.com/scripty-dev/starter-api/internal/repository"
)

// Store implements repository.Store on maps guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	items  map[string]itemRecord
	users  map[string]domain.User
	emails map[string]string
	seq    uint64
	now    func() time.Time
}

type itemRecord struct {
	item domain.Item
	seq  uint64
}

var _ repository.Store = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		items:  make(map[string]itemRecord),
		users:  make(map[string]domain.User),
		emails: make(map[string]string),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateItem stores a new item and stamps its timestamps.
func (s *Store) CreateItem(ctx context.Context, item *domain.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return repository.ErrConflict
	}
	now := s.now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.seq++
	s.items[item.ID] = itemRecord{item: *item, seq: s.seq}
	return nil
}

// GetItemByID returns a copy of the stored item.
func (s *Store) GetItemByID(ctx context.Context, id string) (*domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	item := rec.item
	return &item, nil
}

// ListItems returns all items, newest first.
func (s *Store) ListItems(ctx context.Context) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	records := make([]itemRecord, 0, len(s.items))
	for _, rec := range s.items {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.item.CreatedAt.Equal(b.item.CreatedAt) {
			return a.item.CreatedAt.After(b.item.CreatedAt)
		}
		return a.seq > b.seq
	})
	items := make([]domain.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.item)
	}
	return items, nil
}

// UpdateItem replaces the stored fields and refreshes UpdatedAt.
func (s *Store) UpdateItem(ctx context.Context, item *domain.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[item.ID]
	if !ok {
		return repository.ErrNotFound
	}
	item.CreatedAt = rec.item.CreatedAt
	item.UpdatedAt = s.now().UTC()
	rec.item = *item
	s.items[item.ID] = rec
	return nil
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// CreateUser stores a user; the email must be unused.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[user.Email]; taken {
		return repository.ErrConflict
	}
	if _, exists := s.users[user.ID]; exists {
		return repository.ErrConflict
	}
	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	s.emails[user.Email] = user.ID
	return nil
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := s.users[id]
	return &user, nil
}

// GetUserByID fetches a user by identifier.
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}
