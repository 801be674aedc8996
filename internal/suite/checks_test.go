package suite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galleyprobe/config"
	"galleyprobe/internal/core"
	"galleyprobe/internal/harness/harnesstest"
	"galleyprobe/internal/suite"
)

func TestChecksAgainstFake(t *testing.T) {
	modes := map[string]func(*config.Config){
		"path versioning":   nil,
		"header versioning": func(cfg *config.Config) { cfg.Harness.VersionHeader = "X-Api-Version" },
	}
	for mode, mutate := range modes {
		t.Run(mode, func(t *testing.T) {
			h, _ := harnesstest.Fake(t, mutate)
			for _, c := range suite.Default() {
				t.Run(c.Name, func(t *testing.T) {
					c.Run(context.Background(), t, h)
				})
			}
		})
	}
}

func TestConversationV2_DeletePolicyCleansUp(t *testing.T) {
	var srvUsers, srvConvs func() int

	t.Run("check", func(t *testing.T) {
		h, srv := harnesstest.Fake(t, func(cfg *config.Config) { cfg.Harness.Cleanup = config.CleanupDelete })
		srvUsers = func() int { u, _ := srv.Counts(); return u }
		srvConvs = func() int { _, c := srv.Counts(); return c }

		suite.ConversationV2(context.Background(), t, h)
		assert.Equal(t, 2, srvUsers())
		assert.Equal(t, 1, srvConvs())
	})

	// The subtest's cleanup ran the teardown stack.
	assert.Equal(t, 0, srvUsers())
	assert.Equal(t, 0, srvConvs())
}

func TestSelect(t *testing.T) {
	all, err := suite.Select(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"status", "metrics", "conversation_v2"}, names(all))

	some, err := suite.Select([]string{"conversation_v2", "status", "status"})
	require.NoError(t, err)
	assert.Equal(t, []string{"conversation_v2", "status"}, names(some))

	_, err = suite.Select([]string{"status", "nope"})
	require.Error(t, err)
	assert.True(t, core.IsType(err, core.ErrorTypeConfig))
	assert.Contains(t, err.Error(), `unknown check "nope"`)
}

func names(checks []suite.Check) []string {
	out := make([]string, len(checks))
	for i, c := range checks {
		out[i] = c.Name
	}
	return out
}
