package conversations

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fintellect/nexus/internal/agentstream/store/storetest"
	cmdtesting "github.com/fintellect/nexus/internal/nexusctl/cmd/testing"
	"github.com/fintellect/nexus/internal/nexusctl/cmd/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, f util.Factory, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewCmdConversations(f, util.IOStreams{Out: out, ErrOut: &bytes.Buffer{}})
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestListEmpty(t *testing.T) {
	out, err := run(t, cmdtesting.NewTestFactory(""), "list")
	require.NoError(t, err)
	assert.Equal(t, "No conversations.\n", out)
}

func TestCreateListDelete(t *testing.T) {
	f := cmdtesting.NewTestFactory("")

	out, err := run(t, f, "create", "Quarterly plan")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = run(t, f, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Quarterly plan")
	assert.Contains(t, out, id)

	out, err = run(t, f, "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	convs, err := f.Backing.(*storetest.Store).ListConversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestDeleteUnknown(t *testing.T) {
	_, err := run(t, cmdtesting.NewTestFactory(""), "delete", "missing")
	assert.Error(t, err)
}
