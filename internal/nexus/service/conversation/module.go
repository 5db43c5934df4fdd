package conversation

import (
	"context"
	"fmt"
	"io"

	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/repo"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/service"
	boltdbStore "github.com/fintellect/nexus/internal/nexus/service/conversation/store/boltdb"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/store/inmemory"
	sqliteStore "github.com/fintellect/nexus/internal/nexus/service/conversation/store/sqlite"
	"github.com/fintellect/nexus/pkg/logger"
)

// Store backends.
const (
	StoreInMemory = "inmemory"
	StoreBoltDB   = "boltdb"
	StoreSQLite   = "sqlite"
)

// Config holds the configuration for the Conversation module.
// Follows K8S-style: Config → Complete() → New(ctx).
type Config struct {
	// StoreType selects the persistence backend: "inmemory", "boltdb" or "sqlite".
	// Default: "inmemory".
	StoreType string `json:"store_type,omitempty"`

	// BoltDBPath is the file path for BoltDB storage (when StoreType="boltdb").
	// Default: "data/nexus.db".
	BoltDBPath string `json:"boltdb_path,omitempty"`

	// SQLitePath is the file path for SQLite storage (when StoreType="sqlite").
	// Default: "data/nexus.sqlite".
	SQLitePath string `json:"sqlite_path,omitempty"`
}

// CompletedConfig is the validated and completed configuration.
type CompletedConfig struct {
	*Config
}

// Complete validates and fills defaults.
func (c *Config) Complete() CompletedConfig {
	if c.StoreType == "" {
		c.StoreType = StoreInMemory
	}
	if c.BoltDBPath == "" {
		c.BoltDBPath = "data/nexus.db"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/nexus.sqlite"
	}
	return CompletedConfig{c}
}

// Module is the top-level Conversation module.
type Module struct {
	Service service.ConversationService
	closer  io.Closer // nil when using inmemory store
}

// Close releases resources held by the module (BoltDB or SQLite handle).
func (m *Module) Close() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}

// New creates and initializes the Conversation module from a completed config.
func (c CompletedConfig) New(_ context.Context) (*Module, error) {
	var (
		conversations repo.ConversationRepository
		messages      repo.MessageRepository
		toolCalls     repo.ToolCallRepository
		closer        io.Closer
	)

	switch c.StoreType {
	case StoreBoltDB:
		db, err := boltdbStore.Open(c.BoltDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open boltdb at %s: %w", c.BoltDBPath, err)
		}
		conversations = boltdbStore.NewConversationStore(db)
		messages = boltdbStore.NewMessageStore(db)
		toolCalls = boltdbStore.NewToolCallStore(db)
		closer = db
		logger.Info("[Conversation] using BoltDB store at %s", c.BoltDBPath)
	case StoreSQLite:
		db, err := sqliteStore.Open(c.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite at %s: %w", c.SQLitePath, err)
		}
		conversations = sqliteStore.NewConversationStore(db)
		messages = sqliteStore.NewMessageStore(db)
		toolCalls = sqliteStore.NewToolCallStore(db)
		closer = db
		logger.Info("[Conversation] using SQLite store at %s", c.SQLitePath)
	case StoreInMemory:
		conversations = inmemory.NewConversationStore()
		messages = inmemory.NewMessageStore()
		toolCalls = inmemory.NewToolCallStore()
		logger.Info("[Conversation] using in-memory store")
	default:
		return nil, fmt.Errorf("unknown store type %q", c.StoreType)
	}

	return &Module{
		Service: service.NewConversationService(conversations, messages, toolCalls),
		closer:  closer,
	}, nil
}
