package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"jobboard/internal/alerts"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Config 用于调度配置。
type Config struct {
	Spec    string `yaml:"spec" json:"spec"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// Runner 执行一次告警处理。
type Runner interface {
	Run(ctx context.Context) (alerts.Report, error)
}

// Scheduler 按 cron 表达式周期性触发告警处理，同一时间只运行一次。
type Scheduler struct {
	runner  Runner
	spec    string
	timeout time.Duration
	loc     *time.Location
	logger  *zap.Logger
	running atomic.Bool
}

// NewScheduler 创建 Scheduler，默认每小时整点运行，单次超时 5 分钟。
func NewScheduler(r Runner, cfg Config, loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	spec := cfg.Spec
	if spec == "" {
		spec = "0 * * * *"
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	timeout := 5 * time.Minute
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid timeout %q", cfg.Timeout)
		}
		timeout = d
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:  r,
		spec:    spec,
		timeout: timeout,
		loc:     loc,
		logger:  logger.Named("scheduler"),
	}, nil
}

// Start 启动 cron，直到上下文取消；返回前等待进行中的运行结束。
func (s *Scheduler) Start(ctx context.Context) error {
	if s.runner == nil {
		return fmt.Errorf("scheduler missing runner")
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("cron add func: %w", err)
	}

	c.Start()
	s.logger.Info("cron started", zap.String("spec", s.spec), zap.String("tz", s.loc.String()))

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("cron stopped")
	return ctx.Err()
}

// RunOnce 执行一次处理；已有运行进行中时直接跳过。
func (s *Scheduler) RunOnce(ctx context.Context) (alerts.Report, error) {
	if s.running.Swap(true) {
		s.logger.Warn("run already in progress, skipping")
		return alerts.Report{}, nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.runner.Run(ctx)
	if err != nil {
		return report, fmt.Errorf("run alerts: %w", err)
	}
	return report, nil
}
