package suite

import (
	"context"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galleyprobe/internal/harness"
)

// DurationHistogram is the metric galley must expose on /i/metrics.
const DurationHistogram = "http_request_duration_seconds"

// Status checks that galley reports itself alive on both GET and HEAD.
func Status(ctx context.Context, t TB, h harness.Harness) {
	t.Helper()
	u, err := h.Resolve("galley", "/i/status", true)
	mustSucceed(t, err)

	mustSucceed(t, h.Do(ctx, http.MethodGet, u, func(resp *harness.Response) error {
		assert.Equal(t, http.StatusOK, resp.StatusCode, "GET /i/status")
		return nil
	}))

	mustSucceed(t, h.Do(ctx, http.MethodHead, u, func(resp *harness.Response) error {
		assert.Equal(t, http.StatusOK, resp.StatusCode, "HEAD /i/status")
		body, err := resp.Body()
		if err != nil {
			return err
		}
		assert.Empty(t, body, "HEAD /i/status must not carry a body")
		return nil
	}))
}

// Metrics checks the Prometheus exposition on /i/metrics.
func Metrics(ctx context.Context, t TB, h harness.Harness) {
	t.Helper()
	u, err := h.Resolve("galley", "/i/metrics", true)
	mustSucceed(t, err)

	mustSucceed(t, h.Do(ctx, http.MethodGet, u, func(resp *harness.Response) error {
		require.Equal(t, http.StatusOK, resp.StatusCode, "GET /i/metrics")

		text, err := resp.Text()
		if err != nil {
			return err
		}
		require.Contains(t, text, "TYPE "+DurationHistogram+" histogram")

		families, err := harness.MetricFamilies(resp)
		if err != nil {
			return err
		}
		family, ok := families[DurationHistogram]
		require.True(t, ok, "exposition has no %s family", DurationHistogram)
		assert.Equal(t, dto.MetricType_HISTOGRAM, family.GetType())
		return nil
	}))
}

// ConversationV2 creates a conversation between two connected users and checks
// that API version 2 returns the same object with access_role moved to
// access_role_v2 and access_role set to "activated".
func ConversationV2(ctx context.Context, t TB, h harness.Harness) {
	t.Helper()
	users, err := harness.ConnectedUsers(ctx, h, 2)
	mustSucceed(t, err)
	alice, bob := users[0], users[1]

	var (
		id       string
		expected map[string]any
	)
	mustSucceed(t, h.CreateConversation(ctx, alice, []harness.User{bob}, func(resp *harness.Response) error {
		require.Equal(t, http.StatusCreated, resp.StatusCode, "POST /conversations")

		var created map[string]any
		if err := resp.Decode(&created); err != nil {
			return err
		}
		require.Contains(t, created, "access_role")

		id = harness.ConversationID(resp)
		require.NotEmpty(t, id, "created conversation has no id")

		expected = make(map[string]any, len(created)+1)
		for k, v := range created {
			expected[k] = v
		}
		expected["access_role_v2"] = created["access_role"]
		expected["access_role"] = "activated"
		return nil
	}))

	mustSucceed(t, h.Versioned(2).GetConversation(ctx, alice, id, func(resp *harness.Response) error {
		require.Equal(t, http.StatusOK, resp.StatusCode, "GET /v2/conversations/{id}")

		var got map[string]any
		if err := resp.Decode(&got); err != nil {
			return err
		}
		assert.Equal(t, expected, got)
		return nil
	}))
}
