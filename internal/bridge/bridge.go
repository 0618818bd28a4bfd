// Package bridge is the runtime shell: it connects the host event stream,
// feeds message events into the session pipeline, and handles shutdown.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/mirren/bunnymo-bridge-go/internal/config"
	"github.com/mirren/bunnymo-bridge-go/internal/domain"
	"github.com/mirren/bunnymo-bridge-go/internal/host"
	"github.com/mirren/bunnymo-bridge-go/internal/session"
	"go.uber.org/zap"
)

type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Client    *host.Client
	WebSocket *host.WebSocket
	Session   *session.Session
}

type Bridge struct {
	cfg        *config.Config
	logger     *zap.Logger
	client     *host.Client
	ws         *host.WebSocket
	session    *session.Session
	unsubMsg   func()
	unsubState func()

	mu           sync.Mutex
	wasConnected bool
}

func New(deps *Dependencies) (*Bridge, error) {
	if deps == nil || deps.Config == nil || deps.Client == nil || deps.WebSocket == nil || deps.Session == nil {
		return nil, fmt.Errorf("bridge dependencies not initialized")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		cfg:     deps.Config,
		logger:  logger,
		client:  deps.Client,
		ws:      deps.WebSocket,
		session: deps.Session,
	}, nil
}

// Start performs the initial lorebook scan, subscribes to the host event
// stream, and blocks until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.client.Ping(ctx) {
		b.logger.Warn("Host API not reachable yet, continuing anyway")
	}

	b.session.RescanLorebooks(ctx)

	b.unsubMsg = b.ws.OnMessage(func(msg *domain.ChatMessage) {
		b.session.HandleMessage(ctx, msg)
	})

	// On reconnect the host may have changed lorebooks while we were away.
	b.unsubState = b.ws.OnStateChange(func(state host.WebSocketState) {
		if state != host.WSStateConnected {
			return
		}
		b.mu.Lock()
		reconnected := b.wasConnected
		b.wasConnected = true
		b.mu.Unlock()
		if reconnected {
			b.logger.Info("Reconnected, refreshing lorebook scan")
			go b.session.RescanLorebooks(ctx)
		}
	})

	if err := b.ws.Connect(ctx); err != nil {
		// The websocket reconnects on its own; a failed first dial is not
		// fatal to the bridge.
		b.logger.Warn("Initial WebSocket connect failed, relying on reconnect", zap.Error(err))
	}

	b.logger.Info("Bridge running",
		zap.String("host", b.cfg.Host.BaseURL),
		zap.Bool("ws_connected", b.ws.IsConnected()),
		zap.Int("character_repos", len(b.cfg.Scanner.CharacterRepoBooks)),
		zap.Int("tag_libraries", len(b.cfg.Scanner.TagLibraryBooks)),
	)

	<-ctx.Done()
	return ctx.Err()
}

// Shutdown disconnects from the host event stream.
func (b *Bridge) Shutdown(ctx context.Context) error {
	if b.unsubMsg != nil {
		b.unsubMsg()
		b.unsubMsg = nil
	}
	if b.unsubState != nil {
		b.unsubState()
		b.unsubState = nil
	}

	done := make(chan error, 1)
	go func() {
		done <- b.ws.Disconnect()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
