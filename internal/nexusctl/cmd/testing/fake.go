// Package testing provides a Factory backed by in-process collaborators for
// nexusctl command tests.
package testing

import (
	"context"

	"github.com/fintellect/nexus/internal/agentstream"
	"github.com/fintellect/nexus/internal/agentstream/session"
	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/agentstream/store/storetest"
)

// TestFactory implements util.Factory without a server.
type TestFactory struct {
	Server    string
	Backing   store.Store
	Dialer    session.Dialer
	Submitter session.Submitter
	Config    agentstream.Config
}

// NewTestFactory returns a factory over a fresh storetest store that replays
// recording on every dial and accepts every submission.
func NewTestFactory(recording string) *TestFactory {
	return &TestFactory{
		Server:  "http://nexus.test",
		Backing: storetest.New(),
		Dialer:  session.NewReplayBytes([]byte(recording)),
		Submitter: session.SubmitterFunc(func(context.Context, string, string, string) error {
			return nil
		}),
	}
}

func (f *TestFactory) ServerURL() string { return f.Server }

func (f *TestFactory) Store() store.Store { return f.Backing }

func (f *TestFactory) EngineConfig() *agentstream.Config {
	cfg := f.Config
	return &cfg
}

func (f *TestFactory) NewEngine(ctx context.Context, deps agentstream.Dependencies) (*agentstream.Engine, error) {
	if deps.Store == nil {
		deps.Store = f.Backing
	}
	if deps.Dialer == nil {
		deps.Dialer = f.Dialer
	}
	if deps.Submitter == nil {
		deps.Submitter = f.Submitter
	}
	return f.EngineConfig().Complete().New(ctx, deps)
}
