package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/roledash/roledash/internal/jobs"
	"github.com/roledash/roledash/internal/users"
)

// Exporter renders a CSV export of the user directory.
type Exporter interface {
	Export(ctx context.Context, ids []string) (users.Export, error)
}

// UsersExportJob writes directory exports into Dir.
type UsersExportJob struct {
	Exporter Exporter
	Dir      string
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewUsersExportJob wires dependencies for the export handler.
func NewUsersExportJob(exporter Exporter, dir string, logger *slog.Logger, metrics *jobmetrics.Metrics) *UsersExportJob {
	return &UsersExportJob{
		Exporter: exporter,
		Dir:      dir,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskUsersExport tasks.
func (j *UsersExportJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Exporter == nil {
		return errors.New("users export: handler not configured")
	}
	var payload UsersExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("users export: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskUsersExport)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("requested_by", payload.RequestedBy))
	export, err := j.Exporter.Export(ctx, payload.IDs)
	if err != nil {
		logger.Error("users export failed", slog.Any("error", err))
		return err
	}
	path, err := j.write(export)
	if err != nil {
		logger.Error("users export write failed", slog.Any("error", err))
		return err
	}
	rows := strings.Count(export.Data, "\n")
	j.Metrics.AddRows(TaskUsersExport, rows)
	logger.Info("users export written", slog.String("path", path), slog.Int("rows", rows))
	return nil
}

// write stores the export under a run-unique name via a temp file and rename.
func (j *UsersExportJob) write(export users.Export) (string, error) {
	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return "", fmt.Errorf("users export: create dir: %w", err)
	}
	stamp := j.clock().Format("150405")
	name := strings.TrimSuffix(export.Filename, ".csv") + "_" + stamp + ".csv"
	tmp, err := os.CreateTemp(j.Dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("users export: temp file: %w", err)
	}
	if _, err := tmp.WriteString(export.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("users export: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("users export: close: %w", err)
	}
	path := filepath.Join(j.Dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("users export: rename: %w", err)
	}
	return path, nil
}

func (j *UsersExportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
