// Package memory: хранилище в памяти для тестов и локального запуска без БД.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"svs-mapping/internal/mapping/model"
)

type overrideKey struct {
	org     int64
	product int64
}

type Store struct {
	mu        sync.RWMutex
	products  map[int64]model.Product
	overrides map[overrideKey]model.Override
	updates   []model.CatalogUpdate
	nextID    int64

	// Now подменяется в тестах.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		products:  make(map[int64]model.Product),
		overrides: make(map[overrideKey]model.Override),
		Now:       time.Now,
	}
}

func (s *Store) ActiveProducts(_ context.Context) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Product(_ context.Context, id int64) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, model.ErrNotFound
	}
	return p, nil
}

func (s *Store) SetGlobalCode(_ context.Context, productID int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return model.ErrNotFound
	}
	p.SvsCode = code
	p.UpdatedAt = s.Now().UTC()
	s.products[productID] = p
	return nil
}

func (s *Store) UpsertProducts(_ context.Context, products []model.Product) (model.ImportSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := model.ImportSummary{Total: len(products)}
	now := s.Now().UTC()
	for _, in := range products {
		if id, ok := s.findLocked(in); ok {
			ex := s.products[id]
			ex.Name, ex.Category, ex.ExternalID, ex.Unit = in.Name, in.Category, in.ExternalID, in.Unit
			if in.Price.Valid {
				ex.Price = in.Price
			}
			ex.IsActive = true
			ex.UpdatedAt = now
			s.products[id] = ex
			sum.Updated++
			continue
		}
		s.nextID++
		in.ID = s.nextID
		in.IsActive = true
		in.CreatedAt, in.UpdatedAt = now, now
		s.products[in.ID] = in
		sum.Created++
	}
	return sum, nil
}

// findLocked ищет продукт по шифру, без шифра: по наименованию.
// Из нескольких подходящих берётся наименьший id, как ORDER BY id в sqlstore.
func (s *Store) findLocked(p model.Product) (int64, bool) {
	var found int64
	for id, ex := range s.products {
		match := ex.Code == p.Code
		if p.Code == "" {
			match = ex.Code == "" && ex.Name == p.Name
		}
		if match && (found == 0 || id < found) {
			found = id
		}
	}
	return found, found != 0
}

func (s *Store) Override(_ context.Context, orgID, productID int64) (model.Override, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[overrideKey{orgID, productID}]
	return o, ok, nil
}

func (s *Store) Overrides(_ context.Context, orgID int64) (map[int64]model.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]model.Override)
	for k, o := range s.overrides {
		if k.org == orgID {
			out[k.product] = o
		}
	}
	return out, nil
}

func (s *Store) UpsertOverride(_ context.Context, o model.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := overrideKey{o.OrganizationID, o.ProductID}
	now := s.Now().UTC()
	if ex, ok := s.overrides[k]; ok {
		o.CreatedAt = ex.CreatedAt
	} else {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	s.overrides[k] = o
	return nil
}

func (s *Store) AddCatalogUpdate(_ context.Context, u model.CatalogUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
	return nil
}

func (s *Store) CatalogUpdates(_ context.Context, limit int) ([]model.CatalogUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CatalogUpdate, 0, len(s.updates))
	for i := len(s.updates) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.updates[i])
	}
	return out, nil
}

// AddProduct кладёт продукт как есть (ID назначается, если не задан).
func (s *Store) AddProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextID++
		p.ID = s.nextID
	} else if p.ID > s.nextID {
		s.nextID = p.ID
	}
	now := s.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	s.products[p.ID] = p
	return p
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
