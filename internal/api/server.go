// Package api serves the dashboard data, the advisor and the chat over
// HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/stellarlinkco/edusphere/internal/advisor"
	"github.com/stellarlinkco/edusphere/internal/chat"
	"github.com/stellarlinkco/edusphere/internal/insights"
	"github.com/stellarlinkco/edusphere/internal/school"
)

type Advisor interface {
	Advise(ctx context.Context, query string) advisor.Advice
}

type Chat interface {
	Send(ctx context.Context, key, text string) chat.Reply
	Drop(key string)
}

type Insights interface {
	Latest() (insights.Insight, error)
	Status() insights.Status
}

type (
	Options struct {
		Address        string
		Debug          bool
		DisableReqLogs bool

		Store   *school.Store
		Advisor Advisor
		Chat    Chat
		// Insights is optional; without it /v1/insights answers 404.
		Insights Insights
		Logger   *zap.Logger
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts      *Options
		app       *echo.Echo
		validator *Validator
		logger    *zap.Logger
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{
		opts:      opts,
		app:       echo.New(),
		validator: NewValidator(),
		logger:    logger,
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(s.requestLogger())
	}
	// do not recover in debug mode
	if !s.opts.Debug {
		s.app.Use(middleware.Recover())
	}

	s.app.Validator = s.validator
	s.app.HTTPErrorHandler = newHTTPErrorHandler(s.logger, s.validator)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	s.registerSchoolAPI(v1)
	s.registerAdvisorAPI(v1)
	s.registerChatAPI(v1)
}

func (s *server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	})
}

// Start blocks until the server is stopped.
func (s *server) Start() error {
	s.logger.Info("api listening", zap.String("addr", s.opts.Address))
	if err := s.app.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to EduSphere API!")
}
