package users

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Source is the remote user directory the cache is seeded from and
// confirms writes against.
type Source interface {
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, in NewUser) (string, error)
	UpdateUser(ctx context.Context, id string, patch Patch) error
	DeleteUser(ctx context.Context, id string) error
}

// Store is the in-memory, ordered record cache for a session.
type Store struct {
	source  Source
	logger  *slog.Logger
	lenient bool
	// loadTimeout bounds the shared initial fetch.
	loadTimeout time.Duration

	mu      sync.RWMutex
	records []User
	nextID  int64
	loaded  bool

	loads singleflight.Group
}

// NewStore constructs an empty Store seeded lazily from source.
// When lenient is true a failed initial load is logged and the cache
// is served empty instead of returning ErrSourceUnavailable.
func NewStore(source Source, logger *slog.Logger, lenient bool) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{source: source, logger: logger, lenient: lenient, loadTimeout: DefaultRemoteTimeout, nextID: 1}
}

// EnsureInitialized seeds the cache from the source when it has never
// been loaded and is empty. Concurrent callers share a single fetch,
// which is detached from any one caller's cancellation and bounded by
// the load timeout. A caller whose ctx ends first gets ctx.Err() while
// the fetch carries on for the others.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	if !s.needsLoad() {
		return nil
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan("load", func() (any, error) {
		if !s.needsLoad() {
			return nil, nil
		}
		loadCtx, cancel := context.WithTimeout(fetchCtx, s.loadTimeout)
		defer cancel()
		records, err := s.source.ListUsers(loadCtx)
		if err != nil {
			return nil, &OpError{Op: OpLoad, Kind: ErrSourceUnavailable, Cause: err}
		}
		s.seed(records)
		return nil, nil
	})

	var err error
	select {
	case res := <-ch:
		err = res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
	if err != nil && s.lenient {
		s.logger.Warn("users: initial load failed, serving empty cache", slog.Any("error", err))
		return nil
	}
	return err
}

// Reset empties the cache so the next EnsureInitialized reloads it.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.nextID = 1
	s.loaded = false
}

// Len reports the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MintID returns the next local id and advances the counter.
func (s *Store) MintID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return strconv.FormatInt(id, 10)
}

func (s *Store) needsLoad() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loaded && len(s.records) == 0
}

func (s *Store) seed(records []User) {
	seen := make(map[string]struct{}, len(records))
	seeded := make([]User, 0, len(records))
	var maxID int64
	for _, u := range records {
		if _, dup := seen[u.ID]; dup {
			s.logger.Warn("users: dropping duplicate id from source", slog.String("id", u.ID))
			continue
		}
		seen[u.ID] = struct{}{}
		seeded = append(seeded, u.clone())
		if n, err := strconv.ParseInt(u.ID, 10, 64); err == nil && n > maxID {
			maxID = n
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = seeded
	s.nextID = maxID + 1
	s.loaded = true
	s.logger.Info("users: cache seeded", slog.Int("records", len(seeded)))
}

// snapshot returns an independent copy of the cached records in order.
func (s *Store) snapshot() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, len(s.records))
	for i, u := range s.records {
		out[i] = u.clone()
	}
	return out
}

func (s *Store) find(id string) (User, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, u := range s.records {
		if u.ID == id {
			return u.clone(), i, true
		}
	}
	return User{}, -1, false
}

func (s *Store) append(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, u.clone())
}

func (s *Store) replaceAt(index int, u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[index] = u.clone()
}

func (s *Store) removeAt(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = slices.Delete(s.records, index, index+1)
}

func (s *Store) removeID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = slices.DeleteFunc(s.records, func(u User) bool { return u.ID == id })
}

func (s *Store) insertAt(index int, u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = slices.Insert(s.records, clampIndex(index, len(s.records)), u.clone())
}

// removal remembers a record taken out by a batch delete and its
// position in the sequence before the batch started.
type removal struct {
	user  User
	index int
}

// removeMany takes every listed id out of the cache in one step.
// Ids that are absent, or repeated, are reported as missing.
func (s *Store) removeMany(ids []string) ([]removal, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions := make(map[string]int, len(s.records))
	for i, u := range s.records {
		positions[u.ID] = i
	}
	var (
		removed []removal
		missing []string
		drop    = make(map[int]struct{}, len(ids))
	)
	for _, id := range ids {
		idx, ok := positions[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if _, taken := drop[idx]; taken {
			missing = append(missing, id)
			continue
		}
		drop[idx] = struct{}{}
		removed = append(removed, removal{user: s.records[idx].clone(), index: idx})
	}
	if len(removed) == 0 {
		return nil, missing
	}
	kept := make([]User, 0, len(s.records)-len(removed))
	for i, u := range s.records {
		if _, ok := drop[i]; !ok {
			kept = append(kept, u)
		}
	}
	s.records = kept
	return removed, missing
}

// restore reinserts removed records at their original positions,
// lowest index first so later positions do not drift.
func (s *Store) restore(removed []removal) {
	ordered := slices.Clone(removed)
	slices.SortFunc(ordered, func(a, b removal) int { return a.index - b.index })

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range ordered {
		s.records = slices.Insert(s.records, clampIndex(r.index, len(s.records)), r.user.clone())
	}
}

func clampIndex(index, length int) int {
	if index < 0 {
		return 0
	}
	if index > length {
		return length
	}
	return index
}
