// Package util holds what every nexusctl subcommand shares: IO streams,
// global flags and the factory for engine collaborators.
package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fintellect/nexus/internal/agentstream"
	"github.com/fintellect/nexus/internal/agentstream/session"
	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/agentstream/store/httpstore"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/spf13/viper"
)

// Global flag names, also the viper keys they bind to.
const (
	FlagServer  = "server"
	FlagToken   = "token"
	FlagTimeout = "timeout"
	FlagConfig  = "config"
)

// IOStreams provides the standard names for iostreams.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// Factory builds the collaborators subcommands need.
type Factory interface {
	// ServerURL is the nexusd base URL.
	ServerURL() string
	// Store is the conversation store of the server.
	Store() store.Store
	// NewEngine builds an engine against the server; deps fields already set
	// are kept.
	NewEngine(ctx context.Context, deps agentstream.Dependencies) (*agentstream.Engine, error)
	// EngineConfig is the engine section of the config file.
	EngineConfig() *agentstream.Config
}

type factory struct {
	v *viper.Viper
}

// NewDefaultFactory reads the global flags through v.
func NewDefaultFactory(v *viper.Viper) Factory {
	return &factory{v: v}
}

func (f *factory) ServerURL() string {
	s := strings.TrimSpace(f.v.GetString(FlagServer))
	if s == "" {
		s = "http://127.0.0.1:11790"
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "http://" + s
	}
	return strings.TrimRight(s, "/")
}

func (f *factory) timeout() time.Duration {
	if d := f.v.GetDuration(FlagTimeout); d > 0 {
		return d
	}
	return 30 * time.Second
}

func (f *factory) Store() store.Store {
	return httpstore.New(f.ServerURL(), f.v.GetString(FlagToken), f.timeout())
}

func (f *factory) EngineConfig() *agentstream.Config {
	cfg := &agentstream.Config{}
	if err := f.v.UnmarshalKey("engine", cfg); err != nil {
		logger.Warn("[Nexusctl] ignoring engine config: %v", err)
		return &agentstream.Config{}
	}
	return cfg
}

func (f *factory) NewEngine(ctx context.Context, deps agentstream.Dependencies) (*agentstream.Engine, error) {
	token := f.v.GetString(FlagToken)
	if deps.Store == nil {
		deps.Store = f.Store()
	}
	if deps.Dialer == nil {
		deps.Dialer = session.NewSSEDialer(f.ServerURL(), token)
	}
	if deps.Submitter == nil {
		deps.Submitter = session.NewHTTPSubmitter(f.ServerURL(), token, f.timeout())
	}
	return f.EngineConfig().Complete().New(ctx, deps)
}

// ErrExit may be returned to exit with status 1 without printing anything.
var ErrExit = errors.New("exit")

// CheckErr prints a user-friendly error to STDERR and exits with a non-zero
// exit code.
func CheckErr(err error) {
	if err == nil {
		return
	}
	if !errors.Is(err, ErrExit) {
		msg := err.Error()
		if !strings.HasPrefix(msg, "error: ") {
			msg = "error: " + msg
		}
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}
