package users

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roledash/roledash/internal/platform/httpx"
	"github.com/roledash/roledash/internal/rbac"
	"github.com/roledash/roledash/internal/shared"
)

func newTestRouter(t *testing.T, src *stubSource, role string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, newTestService(src), rbac.Middleware{Logger: logger})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := shared.NewDetachedSession()
			if role != "" {
				sess.Set(shared.SessionRoleKey, role)
			}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/api/users", handler.MountRoutes)
	return r
}

func doRequest(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerListUsers(t *testing.T) {
	h := newTestRouter(t, &stubSource{users: fixtureUsers()}, rbac.RoleViewer)

	rec := doRequest(h, http.MethodGet, "/api/users?role=viewer&status=active&sortBy=email&sortOrder=desc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "2", page.Data[0].ID)
	assert.Equal(t, DefaultPageSize, page.PageSize)
}

func TestHandlerRejectsBadQuery(t *testing.T) {
	h := newTestRouter(t, &stubSource{users: fixtureUsers()}, rbac.RoleViewer)

	rec := doRequest(h, http.MethodGet, "/api/users?page=-1&pageSize=x&sortBy=password", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Contains(t, problem.Errors, "page")
	assert.Contains(t, problem.Errors, "pageSize")
	assert.Contains(t, problem.Errors, "sortBy")
}

func TestHandlerPermissions(t *testing.T) {
	src := &stubSource{users: fixtureUsers()}

	viewer := newTestRouter(t, src, rbac.RoleViewer)
	assert.Equal(t, http.StatusForbidden, doRequest(viewer, http.MethodDelete, "/api/users/1", "").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(viewer, http.MethodPatch, "/api/users/1", `{"city":"Oslo"}`).Code)

	manager := newTestRouter(t, src, rbac.RoleManager)
	assert.Equal(t, http.StatusForbidden, doRequest(manager, http.MethodPost, "/api/users/batch-delete", `{"ids":["1"]}`).Code)
	assert.Equal(t, http.StatusOK, doRequest(manager, http.MethodPatch, "/api/users/1", `{"city":"Oslo"}`).Code)

	legacy := newTestRouter(t, src, "user")
	assert.Equal(t, http.StatusForbidden, doRequest(legacy, http.MethodGet, "/api/users", "").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(legacy, http.MethodPost, "/api/users", `{}`).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(legacy, http.MethodPatch, "/api/users/1", `{"city":"Oslo"}`).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(legacy, http.MethodDelete, "/api/users/1", "").Code)

	anonymous := newTestRouter(t, src, "")
	assert.Equal(t, http.StatusUnauthorized, doRequest(anonymous, http.MethodGet, "/api/users", "").Code)
}

func TestHandlerCreateValidation(t *testing.T) {
	h := newTestRouter(t, &stubSource{users: fixtureUsers()}, rbac.RoleAdmin)

	rec := doRequest(h, http.MethodPost, "/api/users", `{"firstName":"A","lastName":"Lovelace","email":"nope","role":"root","phone":"abc"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "must be at least 2 characters", problem.Errors["firstName"])
	assert.Equal(t, "must be a valid email address", problem.Errors["email"])
	assert.Contains(t, problem.Errors, "role")
	assert.Contains(t, problem.Errors, "phone")
}

func TestHandlerCreateAndDelete(t *testing.T) {
	h := newTestRouter(t, &stubSource{users: fixtureUsers()}, rbac.RoleAdmin)

	rec := doRequest(h, http.MethodPost, "/api/users", `{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","role":"manager","phone":"+1-555-010-9999"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "6", created.ID)
	assert.Equal(t, StatusActive, created.Status)

	assert.Equal(t, http.StatusNoContent, doRequest(h, http.MethodDelete, "/api/users/6", "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(h, http.MethodGet, "/api/users/6", "").Code)
}

func TestHandlerMapsMutationFailure(t *testing.T) {
	h := newTestRouter(t, &stubSource{users: fixtureUsers(), deleteErr: map[string]error{"2": errRemote}}, rbac.RoleAdmin)

	rec := doRequest(h, http.MethodPost, "/api/users/batch-delete", `{"ids":["1","2"]}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = doRequest(h, http.MethodGet, "/api/users/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerSourceUnavailable(t *testing.T) {
	h := newTestRouter(t, &stubSource{listErr: errRemote}, rbac.RoleViewer)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(h, http.MethodGet, "/api/users", "").Code)
}

func TestHandlerExport(t *testing.T) {
	h := newTestRouter(t, &stubSource{users: fixtureUsers()}, rbac.RoleViewer)

	rec := doRequest(h, http.MethodGet, "/api/users/export?ids=1,3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="users_export_2024-06-15.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Len(t, strings.Split(rec.Body.String(), "\n"), 3)
}

func TestHandlerLookups(t *testing.T) {
	h := newTestRouter(t, &stubSource{users: fixtureUsers()}, rbac.RoleViewer)

	rec := doRequest(h, http.MethodGet, "/api/users/cities", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cities []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cities))
	assert.Len(t, cities, 5)

	rec = doRequest(h, http.MethodGet, "/api/users/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 5, stats.TotalUsers)
}
