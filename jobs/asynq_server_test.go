package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roledash/roledash/internal/rbac"
	"github.com/roledash/roledash/internal/shared"
)

func chiRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	return r
}

type fakeEnqueuer struct {
	payload UsersExportPayload
	err     error
}

func (f *fakeEnqueuer) EnqueueUsersExport(ctx context.Context, payload UsersExportPayload) (*asynq.TaskInfo, error) {
	f.payload = payload
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "task-1", Type: TaskUsersExport}, nil
}

func withRole(role, userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.NewDetachedSession()
		sess.SetUser(userID)
		sess.Set(shared.SessionRoleKey, role)
		next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
	})
}

func TestHandlerEnqueuesExport(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	h := NewHandler(nil, enqueuer, rbac.Middleware{}, discardLogger())
	r := chiRouter(h)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/users-export", strings.NewReader(`{"ids":["3"]}`))
	withRole(rbac.RoleViewer, "3", r).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "task-1", body["taskId"])
	assert.Equal(t, []string{"3"}, enqueuer.payload.IDs)
	assert.Equal(t, "3", enqueuer.payload.RequestedBy)
}

func TestHandlerEnqueueRequiresRole(t *testing.T) {
	h := NewHandler(nil, &fakeEnqueuer{}, rbac.Middleware{}, discardLogger())
	r := chiRouter(h)

	rec := httptest.NewRecorder()
	withRole("user", "9", r).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/users-export", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerHealthWithoutInspector(t *testing.T) {
	r := chiRouter(NewHandler(nil, nil, rbac.Middleware{}, discardLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

func TestTaskErrorLoggerRecordsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := taskErrorLogger(logger)
	handler.HandleError(context.Background(), asynq.NewTask(TaskUsersExport, nil), errors.New("disk full"))

	out := buf.String()
	assert.Contains(t, out, "task failed")
	assert.Contains(t, out, "type="+TaskUsersExport)
	assert.Contains(t, out, "disk full")
}

func TestNewWorkerSkipsIncompleteRegistrations(t *testing.T) {
	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Handlers:  []TaskHandler{{Type: TaskUsersExport}},
		Cron:      []CronRegistration{{Spec: "0 2 * * *"}},
	})
	require.NoError(t, err)
	assert.NotNil(t, w.server)
	assert.NotNil(t, w.scheduler)
	assert.NotNil(t, w.logger)
}
