package users

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Config tunes a Service.
type Config struct {
	// RemoteTimeout bounds each remote confirmation call.
	RemoteTimeout time.Duration
	// LenientLoad serves an empty cache instead of failing when the
	// initial load from the source errors.
	LenientLoad bool
	Logger      *slog.Logger
	Observers   []Observer
}

// Service is the data layer the UI talks to: reads go through the query
// engine, writes through the mutation coordinator.
type Service struct {
	store       *Store
	coordinator *Coordinator
	now         func() time.Time
}

// NewService builds a Service with its own empty cache over source.
func NewService(source Source, cfg Config) *Service {
	store := NewStore(source, cfg.Logger, cfg.LenientLoad)
	if cfg.RemoteTimeout > 0 {
		store.loadTimeout = cfg.RemoteTimeout
	}
	return &Service{
		store:       store,
		coordinator: NewCoordinator(store, source, cfg.RemoteTimeout, cfg.Logger, cfg.Observers...),
		now:         time.Now,
	}
}

// Store exposes the underlying cache for lifecycle control.
func (s *Service) Store() *Store {
	return s.store
}

// Query returns one page of records matching opts.
func (s *Service) Query(ctx context.Context, opts QueryOptions) (Page, error) {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return Page{}, err
	}
	return Query(s.store.snapshot(), opts), nil
}

// Get returns a copy of the record with id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return User{}, err
	}
	user, _, ok := s.store.find(id)
	if !ok {
		return User{}, notFound(OpGet, id)
	}
	return user, nil
}

// Cities returns the sorted distinct non-empty cities in the cache.
func (s *Service) Cities(ctx context.Context) ([]string, error) {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	return distinct(s.store.snapshot(), func(u User) string { return u.City }), nil
}

// Companies returns the sorted distinct non-empty companies in the cache.
func (s *Service) Companies(ctx context.Context) ([]string, error) {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	return distinct(s.store.snapshot(), func(u User) string { return u.Company }), nil
}

// Stats aggregates dashboard counters over the whole cache.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return Stats{}, err
	}
	return computeStats(s.store.snapshot(), s.now()), nil
}

// Create adds a user optimistically.
func (s *Service) Create(ctx context.Context, in NewUser) (User, error) {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return User{}, err
	}
	return s.coordinator.Create(ctx, in)
}

// Update patches a user optimistically.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (User, error) {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return User{}, err
	}
	return s.coordinator.Update(ctx, id, patch)
}

// Delete removes a user optimistically.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return err
	}
	return s.coordinator.Delete(ctx, id)
}

// DeleteMany removes several users with all-or-nothing confirmation.
func (s *Service) DeleteMany(ctx context.Context, ids []string) (BatchDeleteResult, error) {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return BatchDeleteResult{}, err
	}
	return s.coordinator.DeleteMany(ctx, ids)
}

// Export renders the listed records, or all of them when ids is nil.
func (s *Service) Export(ctx context.Context, ids []string) (Export, error) {
	if err := s.store.EnsureInitialized(ctx); err != nil {
		return Export{}, err
	}
	var buf strings.Builder
	if err := WriteCSV(&buf, selectForExport(s.store.snapshot(), ids)); err != nil {
		return Export{}, err
	}
	return Export{Data: buf.String(), Filename: ExportFilename(s.now())}, nil
}
