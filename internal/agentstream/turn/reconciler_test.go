package turn

import (
	"context"
	"testing"

	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/agentstream/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T) (*Reconciler, *storetest.Store, chan CommitResult) {
	t.Helper()
	s := storetest.New()
	s.Seed("c1", "test")
	commits := make(chan CommitResult, 4)
	r := NewReconciler(context.Background(), ReconcilerConfig{
		ConversationID: "c1",
		Store:          s,
		OnCommitted:    func(res CommitResult) { commits <- res },
	})
	t.Cleanup(r.Wait)
	return r, s, commits
}

func TestReconcilerFinalContentOrder(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	r.CreatePlaceholder("corr")
	r.UpdatePlaceholder("partial answer")

	assert.Equal(t, "final", r.FinalContent("corr", "final", "streamed"))
	assert.Equal(t, "streamed", r.FinalContent("corr", "  ", "streamed"))
	assert.Equal(t, "partial answer", r.FinalContent("corr", "", ""))
	assert.Empty(t, r.FinalContent("unrelated", "", ""))

	// empty updates and a repeated create keep what the placeholder holds
	r.UpdatePlaceholder("")
	r.CreatePlaceholder("corr")
	require.NotNil(t, r.Placeholder())
	assert.Equal(t, "partial answer", r.Placeholder().Content)
}

func TestReconcilerEmptyFinalKeepsPriorContent(t *testing.T) {
	r, s, commits := newTestReconciler(t)
	s.FailMessages(1)

	r.CreatePlaceholder("corr")
	r.UpdatePlaceholder("first draft")
	require.True(t, r.Commit("corr", "", "first draft"))
	res := <-commits
	require.ErrorIs(t, res.Err, errno.ErrPersistence)

	// another message takes the placeholder; the failed one is resent with
	// neither explicit content nor accumulated text
	r.CreatePlaceholder("next")
	require.True(t, r.Commit("corr", "", ""))
	res = <-commits
	require.NoError(t, res.Err)
	assert.Equal(t, "first draft", res.Content)

	assistant := s.Messages("c1", store.RoleAssistant)
	require.Len(t, assistant, 1)
	assert.Equal(t, "first draft", assistant[0].Content)

	// a placeholder recreated for the same message starts from that content
	r.CreatePlaceholder("corr")
	assert.Equal(t, "first draft", r.Placeholder().Content)
}
