package tracker

import (
	"testing"

	"github.com/fintellect/nexus/internal/agentstream/artifact"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consolidator() Consolidator {
	ex := artifact.NewExtractor(artifact.DefaultPlaceholderConfig())
	return Consolidator{ResolvePath: ex.ResolvePath, Sentinels: DefaultSentinels()}
}

func TestConsolidateDuplicateCompletionsForSameFile(t *testing.T) {
	tr := newTracker()
	payload := func() *event.ToolPayload {
		return &event.ToolPayload{Name: "create_file", Index: 0, Status: event.ToolSuccess,
			Args: map[string]any{"file_path": "report.md"}, Result: map[string]any{"path": "report.md"}}
	}
	tr.OnToolCompleted("m1", payload())
	tr.OnToolCompleted("m1", payload())
	require.Equal(t, 2, tr.Len())

	got := consolidator().Consolidate(tr.Ledger())
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Seq, "most recently completed wins")
}

func TestConsolidateSamePathDifferentIndexes(t *testing.T) {
	tr := newTracker()
	for i := 0; i < 3; i++ {
		tr.OnToolCompleted("m1", &event.ToolPayload{Name: "create_file", Index: i, Args: map[string]any{"path": "a.md"}})
	}
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "create_file", Index: 3, Args: map[string]any{"path": "b.md"}})
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "full_file_rewrite", Index: 4, Args: map[string]any{"path": "a.md"}})

	got := consolidator().Consolidate(tr.Ledger())
	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 3, 4}, []int{got[0].ToolIndex, got[1].ToolIndex, got[2].ToolIndex})
}

func TestConsolidateIndexTieKeepsFirstPositionAndDropsProvisional(t *testing.T) {
	tr := newTracker()
	tr.OnToolStarted("m1", &event.ToolPayload{Name: "web_search", Index: 0, Args: map[string]any{"query": "a"}})
	tr.OnToolStarted("m1", &event.ToolPayload{Name: "execute_command", Index: 1})
	tr.OnToolStarted("m1", &event.ToolPayload{Name: "web_search", Index: 0, Args: map[string]any{"query": "b"}})
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "web_search", Index: 0, Result: "done b"})

	got := consolidator().Consolidate(tr.Ledger())
	require.Len(t, got, 2)
	assert.Equal(t, "web_search", got[0].ToolName)
	assert.Equal(t, "b", got[0].Args["query"])
	assert.False(t, got[0].Provisional())
	assert.Equal(t, "execute_command", got[1].ToolName)
}

func TestConsolidateDropsSentinels(t *testing.T) {
	tr := newTracker()
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "create_file", Index: 0, Result: "Result: No File Information available"})
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "web_search", Index: 1, Result: "Could not extract file details from the operation"})
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "web_search", Index: 2, Result: "Could not extract file details from the operation, partially"})

	got := consolidator().Consolidate(tr.Ledger())
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].ToolIndex)
}

func TestConsolidateNonFileDedupIsOptIn(t *testing.T) {
	tr := newTracker()
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "web_search", Index: 0, Args: map[string]any{"query": "Rates"}})
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "web_search", Index: 1, Args: map[string]any{"query": "rates "}})

	c := consolidator()
	assert.Len(t, c.Consolidate(tr.Ledger()), 2)

	c.NonFileKey = QueryKey
	assert.Len(t, c.Consolidate(tr.Ledger()), 1)
}

func TestConsolidateIsIdempotent(t *testing.T) {
	tr := newTracker()
	tr.OnToolStarted("m1", &event.ToolPayload{Name: "create_file", Index: 0, Args: map[string]any{"path": "x.md"}})
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "create_file", Index: 0})
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "create_file", Index: 0})
	tr.OnToolCompleted("m1", &event.ToolPayload{Name: "create_file", Index: 1, Args: map[string]any{"path": "x.md"}})
	tr.OnToolCompleted("m2", &event.ToolPayload{Name: "web_search", Index: 0, Result: "No File Information"})
	tr.OnToolStarted("m2", &event.ToolPayload{Name: "execute_command", Index: 1})

	c := consolidator()
	c.NonFileKey = QueryKey
	once := c.Consolidate(tr.Ledger())
	twice := c.Consolidate(once)
	assert.Equal(t, once, twice)
}

func TestConsolidateWithoutResolver(t *testing.T) {
	ledger := []toolcall.Record{
		{MessageID: "m", ToolIndex: 0, ToolName: "create_file", Seq: 0},
		{MessageID: "m", ToolIndex: 1, ToolName: "create_file", Seq: 1},
	}
	got := Consolidator{}.Consolidate(ledger)
	assert.Len(t, got, 1)
}
