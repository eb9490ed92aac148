package customer

//go:generate mockgen -source=store.go -destination=mock_store.go -package=customer

import (
	"context"
	"sync"

	"github.com/aquamarinepk/customers/internal/aqm"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the document store the service depends on. Identifiers are the
// hex form of ObjectIDs; implementations return aqm.ErrInvalidID (wrapped)
// for anything else and ErrNotFound when FindByID has no match.
type Store interface {
	Insert(ctx context.Context, c Customer) (Customer, error)
	FindAll(ctx context.Context) ([]Customer, error)
	FindByID(ctx context.Context, id string) (Customer, error)
	UpdateByID(ctx context.Context, id string, fields Fields) (aqm.UpdateResult, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
}

// MemoryStore keeps customers in process memory in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	order []primitive.ObjectID
	items map[primitive.ObjectID]Customer
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[primitive.ObjectID]Customer)}
}

func (s *MemoryStore) Insert(_ context.Context, c Customer) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = primitive.NewObjectID()
	s.items[c.ID] = c
	s.order = append(s.order, c.ID)
	return c, nil
}

func (s *MemoryStore) FindAll(_ context.Context) ([]Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Customer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (Customer, error) {
	oid, err := aqm.ParseID(id)
	if err != nil {
		return Customer{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[oid]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) UpdateByID(_ context.Context, id string, fields Fields) (aqm.UpdateResult, error) {
	oid, err := aqm.ParseID(id)
	if err != nil {
		return aqm.UpdateResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[oid]
	if !ok {
		return aqm.UpdateResult{}, nil
	}
	res := aqm.UpdateResult{Matched: 1}
	if current.Fields() != fields {
		res.Modified = 1
	}
	updated := fields.Customer()
	updated.ID = oid
	s.items[oid] = updated
	return res, nil
}

func (s *MemoryStore) DeleteByID(_ context.Context, id string) (int64, error) {
	oid, err := aqm.ParseID(id)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[oid]; !ok {
		return 0, nil
	}
	delete(s.items, oid)
	for i, existing := range s.order {
		if existing == oid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return 1, nil
}

// Ping always succeeds; the memory store has nothing to reach.
func (s *MemoryStore) Ping(context.Context) error { return nil }
