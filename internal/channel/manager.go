package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/stellarlinkco/edusphere/internal/bus"
	"github.com/stellarlinkco/edusphere/internal/config"
)

type ChannelManager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
	logger   *zap.Logger
}

func newManager(b *bus.MessageBus, logger *zap.Logger) *ChannelManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelManager{
		channels: make(map[string]Channel),
		bus:      b,
		logger:   logger,
	}
}

// NewChannelManager builds the bot transports (Telegram) enabled in cfg.
func NewChannelManager(cfg config.ChannelsConfig, b *bus.MessageBus, logger *zap.Logger) (*ChannelManager, error) {
	m := newManager(b, logger)

	if cfg.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Telegram, b)
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		ch.SetLogger(m.logger)
		m.Register(ch)
	}

	return m, nil
}

// NewChannelManagerWithGateway also builds the web chat, which listens on
// the gateway address.
func NewChannelManagerWithGateway(cfg config.ChannelsConfig, gwCfg config.GatewayConfig, b *bus.MessageBus, logger *zap.Logger) (*ChannelManager, error) {
	m, err := NewChannelManager(cfg, b, logger)
	if err != nil {
		return nil, err
	}

	if cfg.WebUI.Enabled {
		ch, err := NewWebUIChannel(cfg.WebUI, gwCfg, b)
		if err != nil {
			return nil, fmt.Errorf("init webui channel: %w", err)
		}
		ch.SetLogger(m.logger)
		m.Register(ch)
	}

	return m, nil
}

// Register adds ch and subscribes it to outbound traffic for its name.
func (m *ChannelManager) Register(ch Channel) {
	m.channels[ch.Name()] = ch
	m.bus.SubscribeOutbound(ch.Name(), func(msg bus.OutboundMessage) {
		if err := ch.Send(msg); err != nil {
			m.logger.Error("send failed",
				zap.String("channel", ch.Name()),
				zap.String("chat_id", msg.ChatID),
				zap.Error(err))
		}
	})
}

func (m *ChannelManager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

func (m *ChannelManager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			m.logger.Info("starting channel", zap.String("channel", name))
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

// StopAll stops every channel; failures are logged, not returned.
func (m *ChannelManager) StopAll() error {
	for name, ch := range m.channels {
		m.logger.Info("stopping channel", zap.String("channel", name))
		if err := ch.Stop(); err != nil {
			m.logger.Error("stop failed", zap.String("channel", name), zap.Error(err))
		}
	}
	return nil
}

func (m *ChannelManager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
