package app

import (
	"context"
	"fmt"

	"github.com/mirren/bunnymo-bridge-go/internal/bridge"
	"github.com/mirren/bunnymo-bridge-go/internal/config"
	"github.com/mirren/bunnymo-bridge-go/internal/constants"
	"github.com/mirren/bunnymo-bridge-go/internal/host"
	"github.com/mirren/bunnymo-bridge-go/internal/inject"
	"github.com/mirren/bunnymo-bridge-go/internal/optimizer"
	"github.com/mirren/bunnymo-bridge-go/internal/parser"
	"github.com/mirren/bunnymo-bridge-go/internal/scanner"
	"github.com/mirren/bunnymo-bridge-go/internal/service/cache"
	"github.com/mirren/bunnymo-bridge-go/internal/session"
	"github.com/mirren/bunnymo-bridge-go/internal/util"
	"go.uber.org/zap"
)

// Container bundles assembled services for constructing the runtime bridge.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	bridgeDeps *bridge.Dependencies
	cacheSvc   *cache.CacheService
}

// NewBridge instantiates a bridge using the pre-built dependency graph.
func (c *Container) NewBridge() (*bridge.Bridge, error) {
	if c == nil || c.bridgeDeps == nil {
		return nil, fmt.Errorf("bridge dependencies not initialized")
	}
	return bridge.New(c.bridgeDeps)
}

// Close releases container-owned resources.
func (c *Container) Close() {
	if c.cacheSvc != nil {
		_ = c.cacheSvc.Close()
	}
}

// Build assembles all services. The Redis cache is optional: with no
// REDIS_HOST configured the scanner simply runs uncached.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var cacheSvc *cache.CacheService
	if cfg.Redis.Host != "" {
		svc, err := cache.NewCacheService(cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Warn("Redis unavailable, scanning uncached", zap.Error(err))
		} else {
			cacheSvc = svc
		}
	}

	client := host.NewClient(cfg.Host.BaseURL, logger)
	ws := host.NewWebSocket(
		cfg.Host.WSURL,
		constants.WebSocketConfig.MaxReconnectAttempts,
		constants.WebSocketConfig.ReconnectDelay,
		logger,
	)

	tagParser := parser.New(logger)
	opt := optimizer.New(logger)
	scan := scanner.New(client, cacheSvc, tagParser, logger, cfg.Scanner.Concurrency)
	templates := inject.NewTemplateStore()
	limiter := util.NewActivationLimiter(util.ActivationLimiterConfig{
		Cooldown:       cfg.Limiter.Cooldown,
		Window:         cfg.Limiter.Window,
		MaxActivations: cfg.Limiter.MaxActivations,
		TripDuration:   cfg.Limiter.TripDuration,
	}, logger)

	sess := session.New(session.Dependencies{
		Host:      client,
		Scanner:   scan,
		Parser:    tagParser,
		Optimizer: opt,
		Templates: templates,
		Limiter:   limiter,
		Logger:    logger,
		Settings: session.Settings{
			CharacterRepoBooks: cfg.Scanner.CharacterRepoBooks,
			TagLibraryBooks:    cfg.Scanner.TagLibraryBooks,
			MaxCharacters:      cfg.Optimizer.MaxCharacters,
			PriorityTags:       cfg.Optimizer.PriorityTags,
			MaxTagsPerCategory: cfg.Optimizer.MaxTagsPerCategory,
			CompactFormat:      cfg.Optimizer.CompactFormat,
			ScanUserMessages:   cfg.Injection.ScanUserMessages,
			InjectionRole:      cfg.Injection.Role,
			InjectionDepth:     cfg.Injection.Depth,
			InjectionEnabled:   cfg.Injection.Enabled,
			CardsEnabled:       cfg.Injection.CardsEnabled,
		},
	})

	deps := &bridge.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Client:    client,
		WebSocket: ws,
		Session:   sess,
	}

	return &Container{
		Config:     cfg,
		Logger:     logger,
		bridgeDeps: deps,
		cacheSvc:   cacheSvc,
	}, nil
}
