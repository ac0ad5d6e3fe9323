package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/roledash/roledash/internal/jobs"
	"github.com/roledash/roledash/internal/users"
)

type fakeExporter struct {
	ids    []string
	called bool
	err    error
}

func (f *fakeExporter) Export(ctx context.Context, ids []string) (users.Export, error) {
	f.called = true
	f.ids = ids
	if f.err != nil {
		return users.Export{}, f.err
	}
	return users.Export{
		Data:     "ID,First Name\n\"1\",\"Leanne\"\n\"2\",\"Ervin\"",
		Filename: "users_export_2024-06-15.csv",
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUsersExportJobWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	exporter := &fakeExporter{}
	job := NewUsersExportJob(exporter, dir, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2024, 6, 15, 2, 0, 0, 0, time.UTC) }

	task, err := NewUsersExportTask(UsersExportPayload{IDs: []string{"1", "2"}, RequestedBy: "1"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, []string{"1", "2"}, exporter.ids)
	data, err := os.ReadFile(filepath.Join(dir, "users_export_2024-06-15_020000.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ID,First Name\n"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUsersExportJobWholeDirectory(t *testing.T) {
	exporter := &fakeExporter{}
	job := NewUsersExportJob(exporter, t.TempDir(), discardLogger(), nil)

	task, err := NewUsersExportTask(UsersExportPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Nil(t, exporter.ids)
}

func TestUsersExportJobFailures(t *testing.T) {
	boom := errors.New("source down")
	job := NewUsersExportJob(&fakeExporter{err: boom}, t.TempDir(), discardLogger(), nil)
	task, err := NewUsersExportTask(UsersExportPayload{})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)

	bad := asynq.NewTask(TaskUsersExport, []byte("{"))
	assert.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	var unconfigured *UsersExportJob
	assert.Error(t, unconfigured.Handle(context.Background(), task))
}
