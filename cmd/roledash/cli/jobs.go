package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/roledash/roledash/jobs"
)

// Enqueuer is the subset of asynq.Client used by JobsCLI.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueInspector is the subset of asynq.Inspector used by JobsCLI.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for the export queue.
type JobsCLI struct {
	client    Enqueuer
	inspector QueueInspector
	now       func() time.Time
	closers   []func() error
}

// NewJobsCLI initialises the helpers against the given Redis deployment.
func NewJobsCLI(redisOpts asynq.RedisClientOpt) *JobsCLI {
	client := asynq.NewClient(redisOpts)
	inspector := asynq.NewInspector(redisOpts)
	c := NewJobsCLIWith(client, inspector)
	c.closers = []func() error{inspector.Close, client.Close}
	return c
}

// NewJobsCLIWith builds the helpers over existing queue handles.
func NewJobsCLIWith(client Enqueuer, inspector QueueInspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector, now: time.Now}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name. For users:export, ids limits
// the export to those records; none exports the whole directory.
func (c *JobsCLI) Trigger(ctx context.Context, name string, ids []string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskUsersExport:
		payload := jobs.UsersExportPayload{RequestedBy: "cli", ScheduledFor: c.now().UTC()}
		if len(ids) > 0 {
			payload.IDs = ids
		}
		task, err := jobs.NewUsersExportTask(payload)
		if err != nil {
			return nil, err
		}
		return c.client.EnqueueContext(ctx, task)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}
