package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUsersExport writes a CSV snapshot of the user directory to disk.
	TaskUsersExport = "users:export"
)

// UsersExportPayload describes one export run. A nil IDs list exports the
// whole directory.
type UsersExportPayload struct {
	IDs          []string  `json:"ids,omitempty"`
	RequestedBy  string    `json:"requested_by,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewUsersExportTask constructs an Asynq task for a directory export.
func NewUsersExportTask(payload UsersExportPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUsersExport, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
