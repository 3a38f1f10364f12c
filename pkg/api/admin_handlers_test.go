package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sitemgmt/pkg/directory"
	"github.com/platinummonkey/sitemgmt/pkg/httputil"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// failingStore fails every transaction
type failingStore struct{}

func (failingStore) WithTx(context.Context, func(context.Context, directory.Tx) error) error {
	return errors.New("connection refused")
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(e.sessionFor(t, "boss@example.com"))
	return e.do(req)
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(e.sessionFor(t, "boss@example.com"))
	return e.do(req)
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder) httputil.SuccessResponse {
	t.Helper()
	var body httputil.SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDirectoryErrorStatus(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{directory.ErrEmptyEmail, http.StatusBadRequest, MessageEmailRequired},
		{directory.ErrInvalidEmail, http.StatusBadRequest, MessageInvalidEmail},
		{directory.ErrEmailConflict, http.StatusBadRequest, MessageEmailExists},
		{directory.ErrInactive, http.StatusBadRequest, MessageAdminInactive},
		{directory.ErrNotFound, http.StatusNotFound, MessageAdminNotFound},
		{fmt.Errorf("%w: disk full", directory.ErrPersistence), http.StatusInternalServerError, "fallback"},
		{errors.New("boom"), http.StatusInternalServerError, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, message := directoryErrorStatus(tt.err, "fallback")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestAdminForms(t *testing.T) {
	env := newTestEnv(t, "boss@example.com")

	tests := map[string][]string{
		"/add_admin":    {"email"},
		"/delete_admin": {"email"},
		"/update_admin": {"old_email", "new_email"},
	}
	for path, fields := range tests {
		rec := env.get(t, path)
		require.Equal(t, http.StatusOK, rec.Code, path)

		var form formView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
		assert.Equal(t, path, form.Action)
		assert.Equal(t, http.MethodPost, form.Method)
		assert.Equal(t, fields, form.Fields)
	}
}

func TestAddAdmin(t *testing.T) {
	env := newTestEnv(t, "boss@example.com")

	rec := env.postForm(t, "/add_admin", url.Values{"email": {"New@Example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeSuccess(t, rec)
	assert.Equal(t, directory.Created.Message(), body.Message)

	admin, err := env.dir.Lookup(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", admin.Email)

	rec = env.postForm(t, "/add_admin", url.Values{"email": {"new@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, directory.AlreadyActive.Message(), decodeSuccess(t, rec).Message)
}

func TestAddAdmin_Reactivates(t *testing.T) {
	env := newTestEnv(t, "boss@example.com", "old@example.com")
	_, err := env.dir.Deactivate(context.Background(), "old@example.com")
	require.NoError(t, err)

	rec := env.postForm(t, "/add_admin", url.Values{"email": {"old@example.com"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, directory.Reactivated.Message(), decodeSuccess(t, rec).Message)
}

func TestAddAdmin_Errors(t *testing.T) {
	env := newTestEnv(t, "boss@example.com")

	tests := []struct {
		name    string
		email   string
		status  int
		message string
	}{
		{"empty", "", http.StatusBadRequest, MessageEmailRequired},
		{"blank", "   ", http.StatusBadRequest, MessageEmailRequired},
		{"invalid", "not-an-email", http.StatusBadRequest, MessageInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.postForm(t, "/add_admin", url.Values{"email": {tt.email}})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec))
		})
	}
}

func TestAddAdmin_JSONBody(t *testing.T) {
	env := newTestEnv(t, "boss@example.com")

	req := httptest.NewRequest(http.MethodPost, "/add_admin", strings.NewReader(`{"email":"json@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(env.sessionFor(t, "boss@example.com"))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	_, err := env.dir.Lookup(context.Background(), "json@example.com")
	assert.NoError(t, err)
}

func TestDeleteAdmin(t *testing.T) {
	env := newTestEnv(t, "boss@example.com", "gone@example.com")

	rec := env.postForm(t, "/delete_admin", url.Values{"email": {"GONE@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, directory.Deactivated.Message(), decodeSuccess(t, rec).Message)

	_, err := env.dir.Lookup(context.Background(), "gone@example.com")
	assert.ErrorIs(t, err, directory.ErrInactive)

	// deactivating again succeeds
	rec = env.postForm(t, "/delete_admin", url.Values{"email": {"gone@example.com"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteAdmin_Errors(t *testing.T) {
	env := newTestEnv(t, "boss@example.com")

	rec := env.postForm(t, "/delete_admin", url.Values{"email": {"ghost@example.com"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MessageAdminNotFound, decodeError(t, rec))

	rec = env.postForm(t, "/delete_admin", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MessageEmailRequired, decodeError(t, rec))
}

func TestUpdateAdmin(t *testing.T) {
	env := newTestEnv(t, "boss@example.com", "old@example.com", "taken@example.com")

	tests := []struct {
		name    string
		form    url.Values
		status  int
		message string
	}{
		{"rename", url.Values{"old_email": {"old@example.com"}, "new_email": {"new@example.com"}},
			http.StatusOK, directory.Updated.Message()},
		{"unknown", url.Values{"old_email": {"ghost@example.com"}, "new_email": {"x@example.com"}},
			http.StatusNotFound, MessageAdminNotFound},
		{"conflict", url.Values{"old_email": {"new@example.com"}, "new_email": {"taken@example.com"}},
			http.StatusBadRequest, MessageEmailExists},
		{"invalid", url.Values{"old_email": {"new@example.com"}, "new_email": {"nope"}},
			http.StatusBadRequest, MessageInvalidEmail},
		{"active without new email", url.Values{"old_email": {"new@example.com"}},
			http.StatusBadRequest, MessageEmailRequired},
		{"missing old email", url.Values{"new_email": {"x@example.com"}},
			http.StatusBadRequest, MessageEmailRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.postForm(t, "/update_admin", tt.form)
			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.message, decodeSuccess(t, rec).Message)
			} else {
				assert.Equal(t, tt.message, decodeError(t, rec))
			}
		})
	}

	_, err := env.dir.Lookup(context.Background(), "new@example.com")
	assert.NoError(t, err)
}

func TestUpdateAdmin_ReactivatesDeletedAdmin(t *testing.T) {
	env := newTestEnv(t, "boss@example.com", "old@example.com")
	_, err := env.dir.Deactivate(context.Background(), "old@example.com")
	require.NoError(t, err)

	rec := env.postForm(t, "/update_admin", url.Values{"email": {"old@example.com"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, directory.Reactivated.Message(), decodeSuccess(t, rec).Message)
}

func TestListAndGetAdmins(t *testing.T) {
	env := newTestEnv(t, "boss@example.com", "second@example.com")

	rec := env.get(t, "/admins")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Admins []directory.Admin `json:"admins"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Admins, 2)
	assert.Equal(t, "second@example.com", list.Admins[1].Email)

	rec = env.get(t, fmt.Sprintf("/admins/%d", list.Admins[1].ID))
	require.Equal(t, http.StatusOK, rec.Code)
	var admin directory.Admin
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &admin))
	assert.Equal(t, "second@example.com", admin.Email)

	rec = env.get(t, "/admins/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminHandlers_PersistenceFailure(t *testing.T) {
	env := newTestEnv(t, "boss@example.com")
	cookie := env.sessionFor(t, "boss@example.com")

	// the gate only needs the token, so the directory can be swapped out
	env.server.directory = directory.New(failingStore{})

	tests := []struct {
		path    string
		message string
	}{
		{"/add_admin", MessageRequestFailed},
		{"/delete_admin", MessageDeactivateFailed},
		{"/update_admin", MessageRequestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			form := url.Values{"email": {"a@example.com"}, "new_email": {"b@example.com"}}
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.AddCookie(cookie)
			rec := env.do(req)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec))
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestAdminHandlers_LogRosterChanges(t *testing.T) {
	env := newTestEnv(t, "boss@example.com")
	var buf bytes.Buffer

	form := url.Values{"email": {"New@Example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/add_admin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(env.sessionFor(t, "boss@example.com"))
	req = req.WithContext(observability.WithLogger(req.Context(), observability.NewLogger(observability.InfoLevel, &buf)))

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entry map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var candidate map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &candidate))
		if candidate["msg"] == "Admin roster changed" {
			entry = candidate
		}
	}
	require.NotNil(t, entry, buf.String())
	assert.Equal(t, "add", entry["operation"])
	assert.Equal(t, "new@example.com", entry["target"])
	assert.Equal(t, "created", entry["result"])
	assert.Equal(t, "boss@example.com", entry["actor"])
}
