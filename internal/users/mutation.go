package users

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultRemoteTimeout bounds a remote confirmation call.
const DefaultRemoteTimeout = 10 * time.Second

// Phase is the lifecycle state of one mutation.
type Phase int

const (
	// PhaseRequested marks a mutation that has been received.
	PhaseRequested Phase = iota
	// PhaseAppliedLocally marks an optimistic write visible in the cache.
	PhaseAppliedLocally
	// PhaseConfirmed marks a write the remote source accepted.
	PhaseConfirmed
	// PhaseRolledBack marks a write reverted after a remote failure.
	PhaseRolledBack
	// PhaseRejected marks a request that never touched the cache.
	PhaseRejected
)

func (p Phase) String() string {
	switch p {
	case PhaseRequested:
		return "requested"
	case PhaseAppliedLocally:
		return "applied_locally"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRolledBack:
		return "rolled_back"
	case PhaseRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition follows p.
func (p Phase) Terminal() bool {
	return p == PhaseConfirmed || p == PhaseRolledBack || p == PhaseRejected
}

var allowedTransitions = map[Phase][]Phase{
	PhaseRequested:      {PhaseAppliedLocally, PhaseRejected},
	PhaseAppliedLocally: {PhaseConfirmed, PhaseRolledBack},
}

// Transition is emitted every time a mutation changes phase.
type Transition struct {
	MutationID uuid.UUID
	Op         string
	ID         string
	Phase      Phase
	Err        error
	At         time.Time
}

// Observer receives mutation transitions. Implementations must not block.
type Observer interface {
	ObserveTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

// ObserveTransition calls f.
func (f ObserverFunc) ObserveTransition(ctx context.Context, t Transition) {
	f(ctx, t)
}

// Coordinator applies writes to the Store optimistically and confirms
// them against the Source, rolling back on failure. Mutations run one
// at a time.
type Coordinator struct {
	store     *Store
	source    Source
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
	observers []Observer

	mu sync.Mutex
}

// NewCoordinator wires a Coordinator over store and source.
func NewCoordinator(store *Store, source Source, timeout time.Duration, logger *slog.Logger, observers ...Observer) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:     store,
		source:    source,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger,
		observers: observers,
	}
}

type mutation struct {
	c     *Coordinator
	ctx   context.Context
	state Transition
}

func (c *Coordinator) begin(ctx context.Context, op, id string) *mutation {
	m := &mutation{c: c, ctx: ctx, state: Transition{MutationID: uuid.New(), Op: op, ID: id, Phase: PhaseRequested}}
	m.emit()
	return m
}

func (m *mutation) advance(next Phase, err error) {
	if !slices.Contains(allowedTransitions[m.state.Phase], next) {
		m.c.logger.Error("users: illegal mutation transition",
			slog.String("op", m.state.Op),
			slog.String("from", m.state.Phase.String()),
			slog.String("to", next.String()))
		return
	}
	m.state.Phase = next
	m.state.Err = err
	m.emit()
}

func (m *mutation) emit() {
	m.state.At = m.c.now()
	attrs := []any{
		slog.String("mutation_id", m.state.MutationID.String()),
		slog.String("op", m.state.Op),
		slog.String("id", m.state.ID),
		slog.String("phase", m.state.Phase.String()),
	}
	if m.state.Err != nil {
		m.c.logger.Warn("users: mutation", append(attrs, slog.Any("error", m.state.Err))...)
	} else {
		m.c.logger.Debug("users: mutation", attrs...)
	}
	for _, o := range m.c.observers {
		o.ObserveTransition(m.ctx, m.state)
	}
}

// confirm runs a remote call that must finish once the local write is
// applied: caller cancellation is ignored and the call is bounded by the
// coordinator timeout, which counts as a failure.
func (c *Coordinator) confirm(ctx context.Context, call func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- call(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("remote confirmation: %w", ctx.Err())
	}
}

// Create appends a new record and confirms it remotely. The locally
// minted id is kept even when the source assigns its own.
func (c *Coordinator) Create(ctx context.Context, in NewUser) (User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.begin(ctx, OpCreate, "")
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	user := User{
		ID:        c.store.MintID(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Role:      in.Role,
		Status:    status,
		Phone:     in.Phone,
		City:      in.City,
		Company:   in.Company,
		Website:   in.Website,
		Avatar:    in.Avatar,
		CreatedAt: c.now().UTC(),
	}
	m.state.ID = user.ID
	c.store.append(user)
	m.advance(PhaseAppliedLocally, nil)

	var remoteID string
	err := c.confirm(ctx, func(ctx context.Context) error {
		id, err := c.source.CreateUser(ctx, in)
		remoteID = id
		return err
	})
	if err != nil {
		c.store.removeID(user.ID)
		m.advance(PhaseRolledBack, err)
		return User{}, mutationFailed(OpCreate, user.ID, err)
	}
	if remoteID != "" && remoteID != user.ID {
		c.logger.Debug("users: remote id differs from local id",
			slog.String("id", user.ID), slog.String("remote_id", remoteID))
	}
	m.advance(PhaseConfirmed, nil)
	return user.clone(), nil
}

// Update merges patch over the record with id and confirms it remotely.
func (c *Coordinator) Update(ctx context.Context, id string, patch Patch) (User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.begin(ctx, OpUpdate, id)
	before, index, ok := c.store.find(id)
	if !ok {
		err := notFound(OpUpdate, id)
		m.advance(PhaseRejected, err)
		return User{}, err
	}
	after := patch.apply(before)
	c.store.replaceAt(index, after)
	m.advance(PhaseAppliedLocally, nil)

	err := c.confirm(ctx, func(ctx context.Context) error {
		return c.source.UpdateUser(ctx, id, patch)
	})
	if err != nil {
		c.store.replaceAt(index, before)
		m.advance(PhaseRolledBack, err)
		return User{}, mutationFailed(OpUpdate, id, err)
	}
	m.advance(PhaseConfirmed, nil)
	return after.clone(), nil
}

// Delete removes the record with id and confirms it remotely.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.begin(ctx, OpDelete, id)
	user, index, ok := c.store.find(id)
	if !ok {
		err := notFound(OpDelete, id)
		m.advance(PhaseRejected, err)
		return err
	}
	c.store.removeAt(index)
	m.advance(PhaseAppliedLocally, nil)

	err := c.confirm(ctx, func(ctx context.Context) error {
		return c.source.DeleteUser(ctx, id)
	})
	if err != nil {
		c.store.insertAt(index, user)
		m.advance(PhaseRolledBack, err)
		return mutationFailed(OpDelete, id, err)
	}
	m.advance(PhaseConfirmed, nil)
	return nil
}

// DeleteMany removes every listed id that exists and confirms all removals
// remotely in parallel. Missing ids are reported without aborting the
// batch, but any remote failure restores every removed record.
func (c *Coordinator) DeleteMany(ctx context.Context, ids []string) (BatchDeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.begin(ctx, OpDeleteMany, strings.Join(ids, ","))
	removed, missing := c.store.removeMany(ids)
	result := BatchDeleteResult{
		Deleted: make([]string, 0, len(removed)),
		Errors:  make([]DeleteFailure, 0, len(missing)),
	}
	for _, r := range removed {
		result.Deleted = append(result.Deleted, r.user.ID)
	}
	for _, id := range missing {
		result.Errors = append(result.Errors, DeleteFailure{ID: id, Error: ErrNotFound.Error()})
	}
	m.advance(PhaseAppliedLocally, nil)

	err := c.confirm(ctx, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, r := range removed {
			g.Go(func() error {
				if err := c.source.DeleteUser(gctx, r.user.ID); err != nil {
					return fmt.Errorf("delete %s: %w", r.user.ID, err)
				}
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		c.store.restore(removed)
		m.advance(PhaseRolledBack, err)
		return BatchDeleteResult{}, mutationFailed(OpDeleteMany, strings.Join(result.Deleted, ","), err)
	}
	m.advance(PhaseConfirmed, nil)
	return result, nil
}
