package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/pkg/errno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type serviceSuite struct {
	suite.Suite
	storeType string
	module    *Module
}

func (s *serviceSuite) SetupTest() {
	dir := s.T().TempDir()
	cfg := &Config{
		StoreType:  s.storeType,
		BoltDBPath: filepath.Join(dir, "bolt", "nexus.db"),
		SQLitePath: filepath.Join(dir, "sqlite", "nexus.sqlite"),
	}
	m, err := cfg.Complete().New(context.Background())
	s.Require().NoError(err)
	s.module = m
}

func (s *serviceSuite) TearDownTest() {
	s.NoError(s.module.Close())
}

func (s *serviceSuite) TestConversationLifecycle() {
	ctx := context.Background()
	svc := s.module.Service

	a, err := svc.CreateConversation(ctx, "  first ")
	s.Require().NoError(err)
	s.Equal("first", a.Title)
	b, err := svc.CreateConversation(ctx, "")
	s.Require().NoError(err)
	s.Equal("New conversation", b.Title)

	// appending to a bumps it to the top
	time.Sleep(2 * time.Millisecond)
	_, err = svc.AppendMessage(ctx, a.ID, &entity.Message{Role: entity.RoleUser, Content: "hi"})
	s.Require().NoError(err)

	list, err := svc.ListConversations(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(a.ID, list[0].ID)

	got, err := svc.GetConversation(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(b.Title, got.Title)

	s.Require().NoError(svc.DeleteConversation(ctx, a.ID))
	_, err = svc.GetConversation(ctx, a.ID)
	s.ErrorIs(err, errno.ErrConversationNotFound)
	s.ErrorIs(svc.DeleteConversation(ctx, a.ID), errno.ErrConversationNotFound)
	_, err = svc.ListMessages(ctx, a.ID)
	s.ErrorIs(err, errno.ErrConversationNotFound)
}

func (s *serviceSuite) TestMessagesKeepAppendOrder() {
	ctx := context.Background()
	svc := s.module.Service
	conv, err := svc.CreateConversation(ctx, "order")
	s.Require().NoError(err)
	other, err := svc.CreateConversation(ctx, "other")
	s.Require().NoError(err)

	for i, text := range []string{"one", "two", "three"} {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		msg, err := svc.AppendMessage(ctx, conv.ID, &entity.Message{
			Role: role, Content: text, Metadata: map[string]string{"n": text},
		})
		s.Require().NoError(err)
		s.NotEmpty(msg.ID)
		s.Equal(conv.ID, msg.ConversationID)
	}
	_, err = svc.AppendMessage(ctx, other.ID, &entity.Message{Role: entity.RoleUser, Content: "elsewhere"})
	s.Require().NoError(err)

	msgs, err := svc.ListMessages(ctx, conv.ID)
	s.Require().NoError(err)
	s.Require().Len(msgs, 3)
	s.Equal("one", msgs[0].Content)
	s.Equal("three", msgs[2].Content)
	s.Equal(entity.RoleAssistant, msgs[1].Role)
	s.Equal("two", msgs[1].Metadata["n"])

	_, err = svc.AppendMessage(ctx, conv.ID, &entity.Message{Role: "robot", Content: "x"})
	s.ErrorIs(err, errno.ErrInvalidRole)
	_, err = svc.AppendMessage(ctx, "missing", &entity.Message{Role: entity.RoleUser, Content: "x"})
	s.ErrorIs(err, errno.ErrConversationNotFound)
}

func (s *serviceSuite) TestToolCalls() {
	ctx := context.Background()
	svc := s.module.Service
	conv, err := svc.CreateConversation(ctx, "tools")
	s.Require().NoError(err)

	_, err = svc.AppendToolCall(ctx, conv.ID, &entity.ToolCall{
		MessageID: "m1", ToolName: "create_file", ToolIndex: 0,
		Args:   map[string]any{"file_path": "a.md"},
		Result: map[string]any{"ok": true},
		Status: "success",
	})
	s.Require().NoError(err)
	_, err = svc.AppendToolCall(ctx, conv.ID, &entity.ToolCall{
		MessageID: "m1", ToolName: "web_search", ToolIndex: 1, Status: "error", Error: "timeout",
	})
	s.Require().NoError(err)

	calls, err := svc.ListToolCalls(ctx, conv.ID)
	s.Require().NoError(err)
	s.Require().Len(calls, 2)
	s.Equal("create_file", calls[0].ToolName)
	s.Equal("a.md", calls[0].Args["file_path"])
	s.Equal(map[string]any{"ok": true}, calls[0].Result)
	s.Equal("timeout", calls[1].Error)
	s.Equal(1, calls[1].ToolIndex)

	_, err = svc.AppendToolCall(ctx, conv.ID, &entity.ToolCall{MessageID: "m1"})
	s.ErrorIs(err, errno.ErrMissingToolName)

	s.Require().NoError(svc.DeleteConversation(ctx, conv.ID))
	again, err := svc.CreateConversation(ctx, "tools")
	s.Require().NoError(err)
	calls, err = svc.ListToolCalls(ctx, again.ID)
	s.Require().NoError(err)
	s.Empty(calls)
}

func TestServiceInMemory(t *testing.T) {
	suite.Run(t, &serviceSuite{storeType: StoreInMemory})
}

func TestServiceBoltDB(t *testing.T) {
	suite.Run(t, &serviceSuite{storeType: StoreBoltDB})
}

func TestServiceSQLite(t *testing.T) {
	suite.Run(t, &serviceSuite{storeType: StoreSQLite})
}

func TestUnknownStoreType(t *testing.T) {
	_, err := (&Config{StoreType: "etcd"}).Complete().New(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etcd")
}

func TestCompleteDefaults(t *testing.T) {
	cfg := (&Config{}).Complete()
	assert.Equal(t, StoreInMemory, cfg.StoreType)
	assert.Equal(t, "data/nexus.db", cfg.BoltDBPath)
}
