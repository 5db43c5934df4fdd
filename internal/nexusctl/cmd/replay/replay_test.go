package replay

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	cmdtesting "github.com/fintellect/nexus/internal/nexusctl/cmd/testing"
	"github.com/fintellect/nexus/internal/nexusctl/cmd/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planRecording = `# recorded from a planning turn
{"type":"assistant_chunk","content":"Writing the plan"}
{"type":"tool_started","messageId":"m1","toolName":"create_file","toolIndex":0,"args":{"file_path":"docs/plan.md"}}
{"type":"tool_completed","messageId":"m1","toolName":"create_file","toolIndex":0,"status":"success","args":{"file_path":"docs/plan.md","content":"# Plan\n\n## Steps\n\nMeasure first, then cut."}}

{"type":"assistant_chunk","content":" - done."}
{"type":"message_complete"}
`

func writeRecording(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newOptions(t *testing.T, file string) (*ReplayOptions, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	o := NewReplayOptions(util.IOStreams{Out: out, ErrOut: errOut})
	require.NoError(t, o.Complete(cmdtesting.NewTestFactory(""), []string{file}))
	return o, out, errOut
}

func TestReplayCompletedTurn(t *testing.T) {
	o, out, _ := newOptions(t, writeRecording(t, planRecording))
	require.NoError(t, o.Validate())
	require.NoError(t, o.Run(context.Background()))

	assert.Contains(t, out.String(), "state:        completed")
	assert.Contains(t, out.String(), "committed:    yes")
	assert.Contains(t, out.String(), "Writing the plan - done.")
	assert.Contains(t, out.String(), "create_file")
	assert.Contains(t, out.String(), "docs/plan.md")
	assert.Contains(t, out.String(), "markdown")
}

func TestReplayPersistsToSQLite(t *testing.T) {
	o, out, _ := newOptions(t, writeRecording(t, planRecording))
	o.StoreType = "sqlite"
	o.StorePath = filepath.Join(t.TempDir(), "replay.sqlite")
	require.NoError(t, o.Validate())
	require.NoError(t, o.Run(context.Background()))
	assert.Contains(t, out.String(), "committed:    yes")

	_, err := os.Stat(o.StorePath)
	assert.NoError(t, err)
}

func TestReplayIncompleteRecording(t *testing.T) {
	o, out, errOut := newOptions(t, writeRecording(t, `{"type":"assistant_chunk","content":"half"}`+"\n"))
	o.Wait = 200 * time.Millisecond
	err := o.Run(context.Background())
	assert.ErrorIs(t, err, util.ErrExit)
	assert.Contains(t, out.String(), "half")
	assert.Contains(t, errOut.String(), "recording ended with the turn streaming")
}

func TestReplayErrorEvent(t *testing.T) {
	o, _, errOut := newOptions(t, writeRecording(t, `{"type":"error","message":"model overloaded"}`+"\n"))
	err := o.Run(context.Background())
	assert.ErrorIs(t, err, util.ErrExit)
	assert.Contains(t, errOut.String(), "model overloaded")
}

func TestReplayValidate(t *testing.T) {
	o, _, _ := newOptions(t, filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, o.Validate())

	o, _, _ = newOptions(t, writeRecording(t, planRecording))
	o.StoreType = "redis"
	assert.Error(t, o.Validate())
}
