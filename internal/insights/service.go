// Package insights runs the scheduled dashboard analysis: on a cron
// schedule it asks the advisor for three bullet points about the current
// numbers and keeps the latest answer.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/stellarlinkco/edusphere/internal/logging"
	"github.com/stellarlinkco/edusphere/internal/school"
)

// ErrNoInsight is returned by Latest before the first successful run.
var ErrNoInsight = errors.New("no insight generated yet")

// Analyzer is the advisor side the service needs.
type Analyzer interface {
	Analyze(ctx context.Context, payload string) (string, error)
}

// Source is the store side the service needs.
type Source interface {
	Stats() school.Stats
	FinanceSummary() school.FinanceSummary
	RecentStudents(n int) []school.Student
}

type Insight struct {
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type Status struct {
	Schedule   string     `json:"schedule"`
	LastRunAt  *time.Time `json:"lastRunAt,omitempty"`
	LastStatus string     `json:"lastStatus,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	NextRunAt  *time.Time `json:"nextRunAt,omitempty"`
	Runs       int        `json:"runs"`
}

type Options struct {
	Schedule   string
	RunOnStart bool
	// StorePath, when set, persists the latest insight across restarts.
	StorePath string
	Logger    *zap.Logger
}

type Service struct {
	analyzer Analyzer
	source   Source
	opts     Options
	logger   *zap.Logger

	mu      sync.Mutex
	latest  *Insight
	status  Status
	cron    *rcron.Cron
	entryID rcron.EntryID
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(analyzer Analyzer, source Source, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		analyzer: analyzer,
		source:   source,
		opts:     opts,
		logger:   logger,
		status:   Status{Schedule: opts.Schedule},
	}
}

// Start registers the schedule and returns; jobs run in the background
// until Stop or ctx is done.
func (s *Service) Start(ctx context.Context) error {
	if err := s.load(); err != nil {
		s.logger.Warn("failed to load stored insight", zap.Error(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := rcron.New(rcron.WithSeconds())
	id, err := c.AddFunc(s.opts.Schedule, func() { s.RunNow(runCtx) })
	if err != nil {
		cancel()
		return fmt.Errorf("invalid insights schedule %q: %w", s.opts.Schedule, err)
	}

	s.mu.Lock()
	s.cron = c
	s.entryID = id
	s.cancel = cancel
	s.mu.Unlock()

	c.Start()
	s.logger.Info("insights scheduler started", zap.String("schedule", s.opts.Schedule))

	if s.opts.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.RunNow(runCtx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-runCtx.Done()
		s.stopCron()
	}()
	return nil
}

// Stop cancels running analyses and waits for them to return.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.stopCron()
	s.wg.Wait()
	s.logger.Info("insights scheduler stopped")
}

func (s *Service) stopCron() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("stop timeout waiting for running analysis")
	}
}

// RunNow generates a fresh insight immediately.
func (s *Service) RunNow(ctx context.Context) (Insight, error) {
	payload, err := s.payload()
	if err != nil {
		s.record(time.Now(), nil, err)
		return Insight{}, err
	}

	s.logger.Info("generating insight")
	text, err := s.analyzer.Analyze(ctx, payload)
	now := time.Now()
	if err != nil {
		err = fmt.Errorf("analysis failed: %w", err)
		s.record(now, nil, err)
		return Insight{}, err
	}

	ins := Insight{Text: text, GeneratedAt: now}
	s.record(now, &ins, nil)
	if err := s.save(); err != nil {
		s.logger.Warn("failed to store insight", zap.Error(err))
	}
	s.logger.Info("insight generated", zap.String("text", logging.Truncate(text, 100)))
	return ins, nil
}

func (s *Service) record(at time.Time, ins *Insight, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastRunAt = &at
	s.status.Runs++
	if err != nil {
		s.status.LastStatus = "error"
		s.status.LastError = err.Error()
		s.logger.Error("insight run failed", zap.Error(err))
		return
	}
	s.status.LastStatus = "ok"
	s.status.LastError = ""
	s.latest = ins
}

// Latest returns the most recent insight.
func (s *Service) Latest() (Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Insight{}, ErrNoInsight
	}
	return *s.latest, nil
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	if s.cron != nil {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			st.NextRunAt = &next
		}
	}
	return st
}

type snapshot struct {
	Stats          school.Stats          `json:"stats"`
	Finance        school.FinanceSummary `json:"finance"`
	RecentStudents []school.Student      `json:"recentAdmissions"`
}

func (s *Service) payload() (string, error) {
	data, err := json.Marshal(snapshot{
		Stats:          s.source.Stats(),
		Finance:        s.source.FinanceSummary(),
		RecentStudents: s.source.RecentStudents(5),
	})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(data), nil
}

func (s *Service) load() error {
	if s.opts.StorePath == "" {
		return nil
	}
	data, err := os.ReadFile(s.opts.StorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var ins Insight
	if err := json.Unmarshal(data, &ins); err != nil {
		return err
	}
	s.mu.Lock()
	s.latest = &ins
	s.mu.Unlock()
	return nil
}

func (s *Service) save() error {
	if s.opts.StorePath == "" {
		return nil
	}
	s.mu.Lock()
	ins := s.latest
	s.mu.Unlock()
	if ins == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.opts.StorePath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(ins, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.opts.StorePath, data, 0644)
}
