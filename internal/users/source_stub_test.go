package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var errRemote = errors.New("remote rejected")

// stubSource is an in-memory Source with injectable failures.
type stubSource struct {
	mu        sync.Mutex
	users     []User
	listErr   error
	createErr error
	updateErr error
	deleteErr map[string]error
	delay     time.Duration
	listCalls atomic.Int32
	deletes   []string
}

func (s *stubSource) ListUsers(ctx context.Context) ([]User, error) {
	s.listCalls.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]User, len(s.users))
	copy(out, s.users)
	return out, nil
}

func (s *stubSource) CreateUser(ctx context.Context, in NewUser) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return "", s.createErr
	}
	return "11", nil
}

func (s *stubSource) UpdateUser(ctx context.Context, id string, patch Patch) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateErr
}

func (s *stubSource) DeleteUser(ctx context.Context, id string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, id)
	return s.deleteErr[id]
}

func (s *stubSource) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var fixtureTime = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func fixtureUsers() []User {
	login := fixtureTime.Add(-48 * time.Hour)
	return []User{
		{ID: "1", FirstName: "Leanne", LastName: "Graham", Email: "Sincere@april.biz", Role: RoleAdmin, Status: StatusActive, City: "Gwenborough", Company: "Romaguera-Crona", CreatedAt: fixtureTime.AddDate(0, -3, 0), LastLogin: &login},
		{ID: "2", FirstName: "Ervin", LastName: "Howell", Email: "Shanna@melissa.tv", Role: RoleViewer, Status: StatusActive, City: "Wisokyburgh", Company: "Deckow-Crist", CreatedAt: fixtureTime.AddDate(0, 0, -2)},
		{ID: "3", FirstName: "clementine", LastName: "Bauch", Email: "Nathan@yesenia.net", Role: RoleManager, Status: StatusInactive, City: "McKenziehaven", Company: "Romaguera-Jacobson", CreatedAt: fixtureTime.AddDate(0, -8, 0)},
		{ID: "4", FirstName: "Patricia", LastName: "Lebsack", Email: "Julianne.OConner@kory.org", Role: RoleViewer, Status: StatusInactive, City: "South Elvis", Company: "Robel-Corkery", CreatedAt: fixtureTime.AddDate(0, -1, 0)},
		{ID: "5", FirstName: "Chelsey", LastName: "Dietrich", Email: "Lucio_Hettinger@annie.ca", Role: RoleManager, Status: StatusActive, City: "Roscoeview", Company: "Keebler LLC", CreatedAt: fixtureTime.AddDate(0, 0, -10)},
	}
}

func newTestService(src *stubSource, observers ...Observer) *Service {
	svc := NewService(src, Config{
		RemoteTimeout: time.Second,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Observers:     observers,
	})
	svc.now = func() time.Time { return fixtureTime }
	svc.coordinator.now = func() time.Time { return fixtureTime }
	return svc
}

func cachedIDs(s *Service) []string {
	snap := s.store.snapshot()
	ids := make([]string, len(snap))
	for i, u := range snap {
		ids[i] = u.ID
	}
	return ids
}

func numberedUsers(n int) []User {
	out := make([]User, n)
	for i := range out {
		out[i] = User{ID: strconv.Itoa(i + 1), FirstName: "User" + strconv.Itoa(i+1), Role: RoleViewer, Status: StatusActive, CreatedAt: fixtureTime}
	}
	return out
}
