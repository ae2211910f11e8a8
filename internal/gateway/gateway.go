package gateway

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/edusphere/internal/advisor"
	"github.com/stellarlinkco/edusphere/internal/api"
	"github.com/stellarlinkco/edusphere/internal/bus"
	"github.com/stellarlinkco/edusphere/internal/channel"
	"github.com/stellarlinkco/edusphere/internal/chat"
	"github.com/stellarlinkco/edusphere/internal/config"
	"github.com/stellarlinkco/edusphere/internal/insights"
	"github.com/stellarlinkco/edusphere/internal/llm"
	"github.com/stellarlinkco/edusphere/internal/logging"
	"github.com/stellarlinkco/edusphere/internal/school"
	"github.com/stellarlinkco/edusphere/internal/tools"
)

// BackendFactory creates the text-generation backend (allows injection in
// tests).
type BackendFactory func(ctx context.Context, cfg *config.Config) (llm.Backend, error)

// Options for creating a Gateway
type Options struct {
	BackendFactory BackendFactory
	SignalChan     chan os.Signal // for testing signal handling
	Logger         *zap.Logger
}

// DefaultBackendFactory builds the backend named by cfg.Provider.
func DefaultBackendFactory(ctx context.Context, cfg *config.Config) (llm.Backend, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'edusphere onboard' or set GEMINI_API_KEY / EDUSPHERE_PROVIDER_APIKEY")
	}
	return llm.New(ctx, cfg.Provider, cfg.Chat.Model, cfg.Chat.MaxTokens)
}

// BuildStore seeds the in-memory store from the configured seed file (or
// the demo dataset) plus the generated roster.
func BuildStore(cfg config.DataConfig) (*school.Store, error) {
	seed := school.DefaultSeed()
	if cfg.SeedFile != "" {
		loaded, err := school.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		seed = loaded
	}

	if cfg.ExtraStudents > 0 || cfg.ExtraTeachers > 0 {
		n := uint64(cfg.RandomSeed)
		if n == 0 {
			n = uint64(time.Now().UnixNano())
		}
		rng := rand.New(rand.NewPCG(n, n>>1))
		seed = school.Generate(rng, cfg.ExtraStudents, cfg.ExtraTeachers, seed)
	}
	return school.NewStore(seed), nil
}

// Components are the long-lived services shared by every surface.
type Components struct {
	Store    *school.Store
	Registry *tools.Registry
	Chat     *chat.Manager
	Advisor  *advisor.Handler
}

// NewComponents wires the domain services around backend.
func NewComponents(cfg *config.Config, backend llm.Backend, logger *zap.Logger) (*Components, error) {
	store, err := BuildStore(cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}

	registry := tools.NewRegistry(store)
	chatBackend := llm.WithTimeout(backend, time.Duration(cfg.Chat.TimeoutSeconds)*time.Second)
	advisorBackend := llm.WithTimeout(backend, time.Duration(cfg.Advisor.TimeoutSeconds)*time.Second)

	return &Components{
		Store:    store,
		Registry: registry,
		Chat: chat.NewManager(chatBackend, registry, chat.Options{
			Model:         cfg.Chat.Model,
			MaxTokens:     cfg.Chat.MaxTokens,
			ParallelTools: cfg.Chat.ParallelTools,
			Logger:        logger.Named("chat"),
		}),
		Advisor: advisor.New(advisorBackend, advisorBackend, store, advisor.Config{
			PrimaryModel:   cfg.Advisor.PrimaryModel,
			FallbackModel:  cfg.Advisor.FallbackModel,
			AnalysisModel:  cfg.Advisor.AnalysisModel,
			ThinkingBudget: cfg.Advisor.ThinkingBudget,
			MaxTokens:      cfg.Chat.MaxTokens,
		}, logger.Named("advisor")),
	}, nil
}

type Gateway struct {
	cfg        *config.Config
	logger     *zap.Logger
	bus        *bus.MessageBus
	components *Components
	channels   *channel.ChannelManager
	insights   *insights.Service
	api        api.Server
	signalChan chan os.Signal // for testing

	// lanes queue inbound turns per session key
	mu    sync.Mutex
	lanes map[string]*lane

	cancel   context.CancelFunc
	handlers sync.WaitGroup
	loops    sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		cfg:        cfg,
		logger:     logger.Named("gateway"),
		bus:        bus.NewMessageBus(config.DefaultBufSize),
		signalChan: opts.SignalChan,
		lanes:      make(map[string]*lane),
	}

	factory := opts.BackendFactory
	if factory == nil {
		factory = DefaultBackendFactory
	}
	backend, err := factory(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	g.components, err = NewComponents(cfg, backend, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Insights.Enabled {
		g.insights = insights.NewService(g.components.Advisor, g.components.Store, insights.Options{
			Schedule:   cfg.Insights.Schedule,
			RunOnStart: cfg.Insights.RunOnStart,
			StorePath:  filepath.Join(config.ConfigDir(), "data", "insights.json"),
			Logger:     logger.Named("insights"),
		})
	}

	if cfg.API.Enabled {
		apiOpts := &api.Options{
			Address:        net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.API.Port)),
			Debug:          cfg.API.Debug,
			DisableReqLogs: cfg.API.DisableReqLogs,
			Store:          g.components.Store,
			Advisor:        g.components.Advisor,
			Chat:           g.components.Chat,
			Logger:         logger.Named("api"),
		}
		if g.insights != nil {
			apiOpts.Insights = g.insights
		}
		g.api = api.NewServer(apiOpts)
	}

	// Channels (with gateway config for WebUI port)
	chMgr, err := channel.NewChannelManagerWithGateway(cfg.Channels, cfg.Gateway, g.bus, logger.Named("channel"))
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

func (g *Gateway) Components() *Components { return g.components }

// Run starts every service and blocks until a signal arrives or ctx is
// done, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)
	defer g.cancel()

	g.loops.Add(2)
	go func() {
		defer g.loops.Done()
		g.bus.DispatchOutbound(ctx, func(msg bus.OutboundMessage) {
			g.logger.Warn("no subscriber for outbound message", zap.String("channel", msg.Channel))
		})
	}()
	go func() {
		defer g.loops.Done()
		g.processLoop(ctx)
	}()

	if err := g.channels.StartAll(ctx); err != nil {
		_ = g.Shutdown()
		return fmt.Errorf("start channels: %w", err)
	}
	g.logger.Info("channels started", zap.Strings("channels", g.channels.EnabledChannels()))

	if g.insights != nil {
		if err := g.insights.Start(ctx); err != nil {
			g.logger.Warn("insights start failed", zap.Error(err))
		}
	}

	apiErr := make(chan error, 1)
	if g.api != nil {
		go func() { apiErr <- g.api.Start() }()
	}

	g.logger.Info("running",
		zap.String("host", g.cfg.Gateway.Host),
		zap.Int("port", g.cfg.Gateway.Port),
		zap.Int("api_port", g.cfg.API.Port))

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	var runErr error
	select {
	case sig := <-sigCh:
		g.logger.Info("shutting down", zap.Stringer("signal", sig))
	case <-ctx.Done():
		g.logger.Info("shutting down", zap.Error(ctx.Err()))
	case err := <-apiErr:
		if err != nil {
			runErr = fmt.Errorf("api server: %w", err)
		}
	}

	if err := g.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// lane holds the pending turns of one conversation. At most one worker
// drains a lane, so turns of a session run in arrival order.
type lane struct {
	pending []bus.InboundMessage
}

// processLoop routes inbound messages to their session's lane. Resets are
// applied inline so a message that follows a reset always lands on the
// fresh conversation.
func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.route(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) route(ctx context.Context, msg bus.InboundMessage) {
	key := msg.SessionKey()
	if msg.Command == bus.CommandReset {
		g.mu.Lock()
		if l, ok := g.lanes[key]; ok {
			l.pending = nil
		}
		g.mu.Unlock()
		g.logger.Info("conversation reset", zap.String("session", key))
		g.components.Chat.Drop(key)
		return
	}

	g.mu.Lock()
	l, busy := g.lanes[key]
	if !busy {
		l = &lane{}
		g.lanes[key] = l
	}
	l.pending = append(l.pending, msg)
	g.mu.Unlock()
	if busy {
		return
	}

	g.handlers.Add(1)
	go func() {
		defer g.handlers.Done()
		g.drain(ctx, key, l)
	}()
}

// drain handles the lane's turns one by one and retires the lane once it
// is empty.
func (g *Gateway) drain(ctx context.Context, key string, l *lane) {
	for {
		g.mu.Lock()
		if len(l.pending) == 0 || ctx.Err() != nil {
			delete(g.lanes, key)
			g.mu.Unlock()
			return
		}
		msg := l.pending[0]
		l.pending = l.pending[1:]
		g.mu.Unlock()

		g.handle(ctx, msg)
	}
}

func (g *Gateway) handle(ctx context.Context, msg bus.InboundMessage) {
	key := msg.SessionKey()
	g.logger.Info("inbound",
		zap.String("channel", msg.Channel),
		zap.String("sender", msg.SenderID),
		zap.String("content", logging.Truncate(msg.Content, 80)))

	reply := g.components.Chat.Send(ctx, key, msg.Content)
	if reply.Discarded || reply.Text == "" {
		return
	}

	out := bus.OutboundMessage{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		Content:  reply.Text,
		Segments: reply.Segments,
	}
	select {
	case g.bus.Outbound <- out:
	case <-ctx.Done():
	}
}

// Shutdown stops every service and waits for in-flight turns.
func (g *Gateway) Shutdown() error {
	g.stopOnce.Do(func() {
		if g.api != nil {
			if err := g.api.Stop(context.Background()); err != nil {
				g.logger.Warn("api shutdown", zap.Error(err))
			}
		}
		_ = g.channels.StopAll()
		if g.insights != nil {
			g.insights.Stop()
		}
		if g.cancel != nil {
			g.cancel()
		}
		g.loops.Wait()
		g.handlers.Wait()
		g.logger.Info("shutdown complete")
	})
	return nil
}
