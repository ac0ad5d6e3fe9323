package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/roledash/roledash/internal/observability"
	"github.com/roledash/roledash/internal/shared"
	"github.com/roledash/roledash/internal/users"
)

const auditTimeout = 5 * time.Second

// MetricsObserver counts every mutation transition and refreshes the cache
// size gauge once a mutation settles.
func MetricsObserver(metrics *observability.Metrics, size func() int) users.Observer {
	return users.ObserverFunc(func(ctx context.Context, t users.Transition) {
		metrics.RecordMutation(t.Op, t.Phase.String())
		if t.Phase.Terminal() && size != nil {
			metrics.SetCacheSize(size())
		}
	})
}

// AuditRecorder is satisfied by shared.AuditLogger.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AuditObserver writes settled mutations to the audit trail in the background.
type AuditObserver struct {
	recorder AuditRecorder
	logger   *slog.Logger
	async    bool
}

// NewAuditObserver constructs an AuditObserver.
func NewAuditObserver(recorder AuditRecorder, logger *slog.Logger) *AuditObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditObserver{recorder: recorder, logger: logger, async: true}
}

// ObserveTransition implements users.Observer.
func (o *AuditObserver) ObserveTransition(ctx context.Context, t users.Transition) {
	if o == nil || o.recorder == nil || !t.Phase.Terminal() {
		return
	}
	entry := shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   t.Op,
		Entity:   "user",
		EntityID: t.ID,
		Meta: map[string]any{
			"mutation_id": t.MutationID.String(),
			"phase":       t.Phase.String(),
		},
		At: t.At,
	}
	if entry.EntityID == "" {
		entry.EntityID = "-"
	}
	if t.Err != nil {
		entry.Meta["error"] = t.Err.Error()
	}
	record := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		defer cancel()
		if err := o.recorder.Record(ctx, entry); err != nil {
			o.logger.Warn("audit record failed", slog.String("op", t.Op), slog.Any("error", err))
		}
	}
	if o.async {
		go record()
		return
	}
	record()
}
