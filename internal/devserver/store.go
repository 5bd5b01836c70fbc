package devserver

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idilsaglam/posts/internal/model"
)

var ErrNotFound = errors.New("item not found")

// Store is the backing collection of the dev server.
type Store interface {
	List(userID string) []model.Item
	Create(userID string, req model.CreateRequest) model.Item
	Update(userID, id string, req model.UpdateRequest) error
	Delete(userID, id string) error
}

type userItems struct {
	order []string
	items map[string]model.Item
}

// MemoryStore keeps items per user in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userItems
	now   func() time.Time
	newID func() string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*userItems),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *MemoryStore) user(userID string) *userItems {
	u, ok := s.users[userID]
	if !ok {
		u = &userItems{items: make(map[string]model.Item)}
		s.users[userID] = u
	}
	return u
}

func (s *MemoryStore) List(userID string) []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return []model.Item{}
	}
	out := make([]model.Item, 0, len(u.order))
	for _, id := range u.order {
		out = append(out, u.items[id])
	}
	return out
}

func (s *MemoryStore) Create(userID string, req model.CreateRequest) model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.now().UTC()
	it := model.Item{
		ID:        s.newID(),
		Name:      req.Name,
		DueDate:   req.DueDate,
		CreatedAt: &created,
	}
	u := s.user(userID)
	u.order = append(u.order, it.ID)
	u.items[it.ID] = it
	return it
}

func (s *MemoryStore) Update(userID, id string, req model.UpdateRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	it, ok := u.items[id]
	if !ok {
		return ErrNotFound
	}
	u.items[id] = it.Apply(req)
	return nil
}

func (s *MemoryStore) Delete(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := u.items[id]; !ok {
		return ErrNotFound
	}
	delete(u.items, id)
	for i, v := range u.order {
		if v == id {
			u.order = append(u.order[:i], u.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetAttachment records an uploaded image URL for an item. The upload itself
// happens outside this server.
func (s *MemoryStore) SetAttachment(userID, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	it, ok := u.items[id]
	if !ok {
		return ErrNotFound
	}
	it.AttachmentURL = url
	u.items[id] = it
	return nil
}

// Get returns a single item, mainly for tests.
func (s *MemoryStore) Get(userID, id string) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return model.Item{}, false
	}
	it, ok := u.items[id]
	return it, ok
}
