package fakegalley

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, srv http.Handler, method, path, user, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("Z-User", user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func newUser(t *testing.T, srv http.Handler, name string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/i/users", "", `{"name":"`+name+`","email":"`+name+`@example.com","password":"secret"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func connect(t *testing.T, srv http.Handler, a, b string) {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/connections", a, `{"user":"`+b+`","name":"test"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, srv, http.MethodPut, "/connections/"+a, b, `{"status":"accepted"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestStatus(t *testing.T) {
	srv := New(nil)

	rec := do(t, srv, http.MethodGet, "/i/status", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodHead, "/i/status", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestMetricsExposesDurationHistogram(t *testing.T) {
	srv := New(nil)

	rec := do(t, srv, http.MethodGet, "/i/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# TYPE http_request_duration_seconds histogram")
}

func TestUserScopedRoutesRequireZUser(t *testing.T) {
	srv := New(nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/connections"},
		{http.MethodPut, "/connections/abc"},
		{http.MethodPost, "/conversations"},
		{http.MethodGet, "/conversations/abc"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.path, "", `{}`)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "missing-auth", decode(t, rec)["label"])
		})
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	srv := New(nil)

	rec := do(t, srv, http.MethodGet, "/i/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnections(t *testing.T) {
	srv := New(nil)
	alice := newUser(t, srv, "alice")
	bob := newUser(t, srv, "bob")

	t.Run("accept without request is forbidden", func(t *testing.T) {
		rec := do(t, srv, http.MethodPut, "/connections/"+alice, bob, `{"status":"accepted"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("request then accept", func(t *testing.T) {
		connect(t, srv, alice, bob)
	})

	t.Run("repeated request reports existing connection", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/connections", alice, `{"user":"`+bob+`","name":"again"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "accepted", decode(t, rec)["status"])
	})

	t.Run("unknown target", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/connections", alice, `{"user":"00000000-0000-0000-0000-000000000000"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestConversationVersions(t *testing.T) {
	srv := New(&Config{VersionHeader: "Z-API-Version"})
	alice := newUser(t, srv, "alice")
	bob := newUser(t, srv, "bob")
	connect(t, srv, alice, bob)

	rec := do(t, srv, http.MethodPost, "/conversations", alice, `{"participants":["`+bob+`"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id := created["id"].(string)
	assert.Equal(t, []any{"team_member", "non_team_member", "guest", "service"}, created["access_role"])
	assert.NotContains(t, created, "access_role_v2")

	expected := make(map[string]any, len(created)+1)
	for k, v := range created {
		expected[k] = v
	}
	expected["access_role_v2"] = created["access_role"]
	expected["access_role"] = "activated"

	t.Run("path prefix", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/v2/conversations/"+id, alice, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, expected, decode(t, rec))
	})

	t.Run("version header", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/conversations/"+id, alice, "", "Z-API-Version", "2")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, expected, decode(t, rec))
	})

	t.Run("unversioned matches creation", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/conversations/"+id, alice, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, created, decode(t, rec))
	})

	t.Run("non-member cannot see it", func(t *testing.T) {
		carol := newUser(t, srv, "carol")
		rec := do(t, srv, http.MethodGet, "/conversations/"+id, carol, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateConversationRequiresConnection(t *testing.T) {
	srv := New(nil)
	alice := newUser(t, srv, "alice")
	bob := newUser(t, srv, "bob")

	rec := do(t, srv, http.MethodPost, "/conversations", alice, `{"participants":["`+bob+`"]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not-connected", decode(t, rec)["label"])
}

func TestInternalDeletes(t *testing.T) {
	srv := New(nil)
	alice := newUser(t, srv, "alice")
	rec := do(t, srv, http.MethodPost, "/conversations", alice, `{"participants":[]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["id"].(string)

	users, convs := srv.Counts()
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, convs)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodDelete, "/i/conversations/"+id, "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/i/conversations/"+id, "", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodDelete, "/i/users/"+alice, "", "").Code)

	users, convs = srv.Counts()
	assert.Zero(t, users)
	assert.Zero(t, convs)
}
