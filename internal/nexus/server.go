package nexus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fintellect/nexus/internal/nexus/config"
	"github.com/fintellect/nexus/internal/nexus/handler/middleware"
	"github.com/fintellect/nexus/internal/nexus/hub"
	"github.com/fintellect/nexus/internal/nexus/options"
	"github.com/fintellect/nexus/internal/nexus/service/conversation"
	"github.com/fintellect/nexus/internal/nexus/service/upstream"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type apiServer struct {
	cfg *config.Config

	engine     *gin.Engine
	httpServer *http.Server

	conversationModule *conversation.Module
	hub                *hub.Hub
	forwarder          upstream.Forwarder
	auth               *middleware.AuthConfig
}

type preparedAPIServer struct {
	*apiServer
}

func createAPIServer(cfg *config.Config) (*apiServer, error) {
	gin.SetMode(cfg.ServingOptions.Mode)

	// Initialize Conversation module (K8S-style: Config → Complete → New).
	convCfg := &conversation.Config{
		StoreType:  cfg.StoreOptions.Type,
		BoltDBPath: cfg.StoreOptions.BoltDBPath,
		SQLitePath: cfg.StoreOptions.SQLitePath,
	}
	convModule, err := convCfg.Complete().New(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize conversation module: %w", err)
	}
	logger.Info("[Nexusd] Conversation module initialized successfully (store=%s)", convCfg.StoreType)

	upstreamCfg := &upstream.Config{
		SubmitURL: cfg.UpstreamOptions.SubmitURL,
		Token:     cfg.UpstreamOptions.Token,
		Timeout:   cfg.UpstreamOptions.Timeout,
	}

	return &apiServer{
		cfg:                cfg,
		engine:             gin.New(),
		conversationModule: convModule,
		hub:                hub.New(cfg.StreamOptions.SubscriberBuffer),
		forwarder:          upstreamCfg.Complete().New(),
		auth:               middleware.NewAuthConfig(cfg.AuthOptions.Enabled, cfg.AuthOptions.Token),
	}, nil
}

func (s *apiServer) PrepareRun() preparedAPIServer {
	initRouter(s.engine, &routerDeps{
		conversations: s.conversationModule.Service,
		hub:           s.hub,
		forwarder:     s.forwarder,
		authConfig:    s.auth,
		heartbeat:     s.cfg.StreamOptions.Heartbeat,
		profiling:     s.cfg.ServingOptions.EnableProfiling,
	})
	s.httpServer = &http.Server{
		Addr:              s.cfg.ServingOptions.Address(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return preparedAPIServer{s}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s preparedAPIServer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("[Nexusd] serving HTTP API on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s preparedAPIServer) shutdown() error {
	logger.Info("[Nexusd] shutting down")
	// Streams never finish on their own; end them first so Shutdown can drain.
	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ServingOptions.ShutdownTimeout)
	defer cancel()
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := s.conversationModule.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close conversation store: %w", err))
	}
	return errors.Join(errs...)
}

// applyOptions re-applies the settings that may change at runtime.
func (s *apiServer) applyOptions(next *options.Options) {
	if err := logger.SetLevel(next.LogOptions.Level); err != nil {
		logger.Warn("[Nexusd] ignoring log level %q: %v", next.LogOptions.Level, err)
	}
	s.auth.Update(next.AuthOptions.Enabled, next.AuthOptions.Token)
	logger.Info("[Nexusd] reloaded log level and auth settings")
}
