package cli

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roledash/roledash/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type fakeInspector struct {
	info      *asynq.QueueInfo
	err       error
	scheduled []*asynq.TaskInfo
}

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func (f *fakeInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.scheduled, f.err
}

func TestTriggerUsersExport(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := NewJobsCLIWith(enq, nil)
	c.now = func() time.Time { return time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) }

	info, err := c.Trigger(context.Background(), jobs.TaskUsersExport, []string{"3", "1"})
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskUsersExport, info.Type)

	require.Len(t, enq.tasks, 1)
	var payload jobs.UsersExportPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, []string{"3", "1"}, payload.IDs)
	assert.Equal(t, "cli", payload.RequestedBy)
	assert.True(t, payload.ScheduledFor.Equal(c.now()))
}

func TestTriggerWholeDirectoryLeavesIDsUnset(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := NewJobsCLIWith(enq, nil)

	_, err := c.Trigger(context.Background(), jobs.TaskUsersExport, nil)
	require.NoError(t, err)

	var payload jobs.UsersExportPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Nil(t, payload.IDs)
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c := NewJobsCLIWith(&fakeEnqueuer{}, nil)
	_, err := c.Trigger(context.Background(), "reports:rebuild", nil)
	assert.ErrorContains(t, err, "unsupported job")

	var nilCLI *JobsCLI
	_, err = nilCLI.Trigger(context.Background(), jobs.TaskUsersExport, nil)
	assert.Error(t, err)
}

func TestInspectQueue(t *testing.T) {
	c := NewJobsCLIWith(nil, &fakeInspector{info: &asynq.QueueInfo{Pending: 2, Active: 1, Scheduled: 4, Retry: 3}})

	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 2, Active: 1, Scheduled: 4, Retry: 3}, stats)
}

func TestInspectQueueErrors(t *testing.T) {
	boom := errors.New("redis down")
	c := NewJobsCLIWith(nil, &fakeInspector{err: boom})
	_, err := c.InspectQueue(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = NewJobsCLIWith(nil, nil).InspectQueue(context.Background())
	assert.Error(t, err)
}

func TestListScheduled(t *testing.T) {
	scheduled := []*asynq.TaskInfo{{ID: "a", Type: jobs.TaskUsersExport}}
	c := NewJobsCLIWith(nil, &fakeInspector{scheduled: scheduled})

	got, err := c.ListScheduled(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, scheduled, got)
}

func TestCloseJoinsErrors(t *testing.T) {
	first := errors.New("first")
	c := NewJobsCLIWith(nil, nil)
	c.closers = []func() error{
		func() error { return first },
		func() error { return nil },
	}
	assert.ErrorIs(t, c.Close(), first)
}
