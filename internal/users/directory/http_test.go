// Copyright (c) 2026 Motorparc. All rights reserved.

package directory_test

import (
	"context"
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

	"github.com/motorparc/motorparc/internal/platform/middleware"
	"github.com/motorparc/motorparc/internal/platform/sec"
	"github.com/motorparc/motorparc/internal/users/directory"
)

// directoryRouter mounts the admin handler behind the same auth chain used
// in production and returns a token issuer for test requests.
type directoryRouter struct {
	handler http.Handler
	guard   *sec.Guard
	service *directory.Service
}

func newDirectoryRouter(t *testing.T) *directoryRouter {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard, err := sec.NewGuard("unit-test-signing-secret", sec.FingerprintLogOnly, logger)
	require.NoError(t, err)

	service := directory.NewService(directory.NewMemoryUserRepository())
	_, err = service.Create(context.Background(), directory.CreateInput{
		Username:  "Admin1",
		Password:  "initial-password",
		Role:      sec.RoleAdmin,
		CreatedBy: "test",
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(guard))
	router.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireRole(sec.RoleAdmin))
		admin.Mount("/users", directory.NewHandler(service).Routes())
	})

	return &directoryRouter{handler: router, guard: guard, service: service}
}

// do issues a request carrying a session of the given role. An empty role
// sends the request anonymously.
func (fixture *directoryRouter) do(t *testing.T, method, target, body string, role sec.Role) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)

	if role != "" {
		token, err := fixture.guard.IssueSession("Admin1", role, "192.0.2.1", "")
		require.NoError(t, err)
		request.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	fixture.handler.ServeHTTP(recorder, request)
	return recorder
}

/*
TestHandler_AdminGate verifies that the whole directory surface is
admin-only: 401 anonymous, 403 for Staff.
*/
func TestHandler_AdminGate(t *testing.T) {
	fixture := newDirectoryRouter(t)

	assert.Equal(t, http.StatusUnauthorized, fixture.do(t, http.MethodGet, "/users", "", "").Code)
	assert.Equal(t, http.StatusForbidden, fixture.do(t, http.MethodGet, "/users", "", sec.RoleStaff).Code)
	assert.Equal(t, http.StatusOK, fixture.do(t, http.MethodGet, "/users", "", sec.RoleAdmin).Code)
}

/*
TestHandler_Create verifies account creation over HTTP, including
validation failures and the duplicate conflict.
*/
func TestHandler_Create(t *testing.T) {
	fixture := newDirectoryRouter(t)

	// 1. Valid creation.
	recorder := fixture.do(t, http.MethodPost, "/users",
		`{"username":"Staff1","password":"initial-password","role":"Staff"}`, sec.RoleAdmin)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var envelope struct {
		Data directory.UserRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "Staff1", envelope.Data.Username)
	assert.Equal(t, "Admin1", envelope.Data.CreatedBy)
	assert.NotContains(t, recorder.Body.String(), "password")

	// 2. Case-insensitive duplicate.
	recorder = fixture.do(t, http.MethodPost, "/users",
		`{"username":"staff1","password":"initial-password","role":"Staff"}`, sec.RoleAdmin)
	assert.Equal(t, http.StatusConflict, recorder.Code)

	// 3. Validation failures.
	tests := []struct {
		name string
		body string
	}{
		{"short_password", `{"username":"Staff2","password":"short","role":"Staff"}`},
		{"unknown_role", `{"username":"Staff2","password":"initial-password","role":"Boss"}`},
		{"missing_username", `{"password":"initial-password","role":"Staff"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := fixture.do(t, http.MethodPost, "/users", tt.body, sec.RoleAdmin)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}
}

/*
TestHandler_List verifies the paginated listing envelope.
*/
func TestHandler_List(t *testing.T) {
	fixture := newDirectoryRouter(t)
	_, err := fixture.service.Create(context.Background(), directory.CreateInput{
		Username: "Staff1", Password: "initial-password", Role: sec.RoleStaff, CreatedBy: "Admin1",
	})
	require.NoError(t, err)

	recorder := fixture.do(t, http.MethodGet, "/users?page=1&limit=1", "", sec.RoleAdmin)
	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data []directory.UserRecord `json:"data"`
		Meta struct {
			Page       int `json:"page"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))

	assert.Len(t, envelope.Data, 1)
	assert.Equal(t, 1, envelope.Meta.Page)
	assert.Equal(t, 2, envelope.Meta.Total)
	assert.Equal(t, 2, envelope.Meta.TotalPages)
}

/*
TestHandler_Delete verifies removal, the last-admin refusal, and unknown
targets over HTTP.
*/
func TestHandler_Delete(t *testing.T) {
	fixture := newDirectoryRouter(t)
	_, err := fixture.service.Create(context.Background(), directory.CreateInput{
		Username: "Staff1", Password: "initial-password", Role: sec.RoleStaff, CreatedBy: "Admin1",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, fixture.do(t, http.MethodDelete, "/users/staff1", "", sec.RoleAdmin).Code)
	assert.Equal(t, http.StatusForbidden, fixture.do(t, http.MethodDelete, "/users/Admin1", "", sec.RoleAdmin).Code)
	assert.Equal(t, http.StatusNotFound, fixture.do(t, http.MethodDelete, "/users/Ghost", "", sec.RoleAdmin).Code)
}
