package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultRefreshInterval matches the till's background product refresh.
const DefaultRefreshInterval = 60 * time.Second

// Snapshot is an immutable product list with the time it was fetched.
// Callers must not mutate Products.
type Snapshot struct {
	Products   []Product  `json:"products"`
	Categories []Category `json:"categories,omitempty"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// Source fetches the current catalog from the backend.
type Source interface {
	Products(ctx context.Context) ([]Product, error)
	Categories(ctx context.Context) ([]Category, error)
}

// Cache persists the last good snapshot between runs.
type Cache interface {
	Save(snap Snapshot) error
	Load() (Snapshot, bool, error)
}

// Store holds the latest catalog snapshot.
//
// Thread-safety: Products() and Snapshot() are safe from any goroutine and
// never block; Refresh swaps the snapshot atomically. A failed refresh keeps
// the previous snapshot.
type Store struct {
	source Source
	cache  Cache
	logger *slog.Logger
	now    func() time.Time

	current atomic.Pointer[Snapshot]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCache persists successful refreshes to c and seeds the store from it.
func WithCache(c Cache) StoreOption {
	return func(s *Store) {
		s.cache = c
	}
}

// WithLogger sets the logger used for refresh diagnostics.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a Store with an empty snapshot.
func NewStore(source Source, opts ...StoreOption) *Store {
	s := &Store{
		source: source,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&Snapshot{Products: []Product{}})
	return s
}

// NewStaticStore creates a Store serving a fixed product list.
// Used by the scenario harness and tests.
func NewStaticStore(products []Product) *Store {
	s := NewStore(nil)
	s.Set(Snapshot{Products: products})
	return s
}

// Products returns the latest product list.
func (s *Store) Products() []Product {
	return s.current.Load().Products
}

// Snapshot returns the latest snapshot.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Set replaces the snapshot.
func (s *Store) Set(snap Snapshot) {
	if snap.Products == nil {
		snap.Products = []Product{}
	}
	s.current.Store(&snap)
}

// LoadCache seeds the store from the cache, if one is configured.
// Returns false when there is no cache or it is empty.
func (s *Store) LoadCache() (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	snap, ok, err := s.cache.Load()
	if err != nil {
		return false, fmt.Errorf("load catalog cache: %w", err)
	}
	if !ok {
		return false, nil
	}
	s.Set(snap)
	s.logger.Info("catalog loaded from cache", "products", len(snap.Products), "fetched_at", snap.FetchedAt)
	return true, nil
}

// Refresh fetches products and categories and swaps in the new snapshot.
func (s *Store) Refresh(ctx context.Context) error {
	if s.source == nil {
		return fmt.Errorf("refresh catalog: no source configured")
	}

	products, err := s.source.Products(ctx)
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}
	categories, err := s.source.Categories(ctx)
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}

	snap := Snapshot{
		Products:   products,
		Categories: categories,
		FetchedAt:  s.now(),
	}
	s.Set(snap)
	s.logger.Debug("catalog refreshed", "products", len(products), "categories", len(categories))

	if s.cache != nil {
		if err := s.cache.Save(snap); err != nil {
			// The in-memory snapshot is already current.
			s.logger.Error("failed to save catalog cache", "error", err)
		}
	}
	return nil
}

// Run refreshes immediately and then every interval until ctx is cancelled.
// Refresh failures are logged and the previous snapshot is kept.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("catalog refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("catalog refresh failed", "error", err)
			}
		}
	}
}
