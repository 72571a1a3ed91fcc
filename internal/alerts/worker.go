// Package alerts 负责告警调度：判断到期频率、匹配新职位、发送摘要并推进计划时间。
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobboard/internal/model"
	"jobboard/internal/notifier"
	"jobboard/internal/storage"

	"go.uber.org/zap"
)

// Store 抽象告警处理所需的存储接口。
type Store interface {
	ListActiveAlerts(ctx context.Context, freq model.Frequency) ([]model.AlertRecipient, error)
	CountJobsCreatedSince(ctx context.Context, since time.Time) (int64, error)
	FindMatchingJobs(ctx context.Context, q storage.MatchQuery) ([]model.JobMatch, error)
	MarkAlertTriggered(ctx context.Context, id string, triggeredAt, nextAt time.Time) error
}

// Config 告警处理配置。
type Config struct {
	From     string
	Links    Links
	Location *time.Location
}

// Stage 标识失败发生的步骤。
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageMatch   Stage = "match"
	StageCompose Stage = "compose"
	StageSend    Stage = "send"
	StageUpdate  Stage = "update"
)

// Failure 记录单个频率或单个告警的失败，不影响其余处理。
type Failure struct {
	Stage   Stage
	Bucket  model.Frequency
	AlertID string
	Err     error
}

func (f Failure) Error() string {
	if f.AlertID == "" {
		return fmt.Sprintf("%s %s: %v", f.Stage, f.Bucket, f.Err)
	}
	return fmt.Sprintf("%s alert %s: %v", f.Stage, f.AlertID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Report 单次运行的汇总。
// Processed 为本次考虑的告警数；NoMatch 与 NoEmail 的告警不会推进计划时间。
type Report struct {
	RunAt     time.Time
	Buckets   []model.Frequency
	Processed int
	Sent      int
	NoMatch   int
	NoEmail   int
	Failures  []Failure
}

// Worker 执行一次完整的告警处理。
type Worker struct {
	store  Store
	sender notifier.EmailSender
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewWorker 创建 Worker，未设置时区时使用 UTC。
func NewWorker(store Store, sender notifier.EmailSender, cfg Config, logger *zap.Logger) *Worker {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:  store,
		sender: sender,
		cfg:    cfg,
		logger: logger.Named("alerts"),
		now:    time.Now,
	}
}

// Run 处理所有到期告警。单个频率或告警的失败会记录在 Report 中并继续；
// 仅当所有频率都拉取失败或上下文结束时返回错误。
func (w *Worker) Run(ctx context.Context) (Report, error) {
	if w.store == nil || w.sender == nil {
		return Report{}, fmt.Errorf("alert worker missing dependencies")
	}

	now := w.now().In(w.cfg.Location)
	report := Report{RunAt: now, Buckets: DueBuckets(now)}
	w.logger.Info("run started", zap.Time("now", now), zap.Any("buckets", report.Buckets))

	var fetchErrs []error
	fetched := 0
	for _, bucket := range report.Buckets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		recipients, err := w.fetch(ctx, bucket, now)
		if err != nil {
			w.logger.Error("fetch alerts failed", zap.String("bucket", string(bucket)), zap.Error(err))
			report.Failures = append(report.Failures, Failure{Stage: StageFetch, Bucket: bucket, Err: err})
			fetchErrs = append(fetchErrs, fmt.Errorf("%s: %w", bucket, err))
			continue
		}
		fetched++

		for _, r := range recipients {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Processed++
			w.process(ctx, bucket, r, now, &report)
		}
	}

	w.logger.Info("run finished",
		zap.Int("processed", report.Processed),
		zap.Int("sent", report.Sent),
		zap.Int("no_match", report.NoMatch),
		zap.Int("no_email", report.NoEmail),
		zap.Int("failures", len(report.Failures)),
	)

	if fetched == 0 && len(fetchErrs) > 0 {
		return report, fmt.Errorf("fetch alerts: %w", errors.Join(fetchErrs...))
	}
	return report, nil
}

func (w *Worker) fetch(ctx context.Context, bucket model.Frequency, now time.Time) ([]model.AlertRecipient, error) {
	if bucket == model.FrequencyInstant {
		fresh, err := w.store.CountJobsCreatedSince(ctx, RecencyCutoff(bucket, now))
		if err != nil {
			return nil, fmt.Errorf("count new jobs: %w", err)
		}
		if fresh == 0 {
			w.logger.Debug("no new jobs in the last hour, skipping instant alerts")
			return nil, nil
		}
	}
	return w.store.ListActiveAlerts(ctx, bucket)
}

func (w *Worker) process(ctx context.Context, bucket model.Frequency, r model.AlertRecipient, now time.Time, report *Report) {
	alert := r.Alert
	log := w.logger.With(zap.String("alert_id", alert.ID), zap.String("bucket", string(bucket)))
	fail := func(stage Stage, err error) {
		log.Error("alert failed", zap.String("stage", string(stage)), zap.Error(err))
		report.Failures = append(report.Failures, Failure{Stage: stage, Bucket: bucket, AlertID: alert.ID, Err: err})
	}

	if r.Email == "" {
		log.Warn("alert owner has no email, skipping")
		report.NoEmail++
		return
	}

	matches, err := w.store.FindMatchingJobs(ctx, MatchQueryFor(alert, now))
	if err != nil {
		fail(StageMatch, err)
		return
	}
	if len(matches) == 0 {
		log.Debug("no matching jobs")
		report.NoMatch++
		return
	}

	digest, err := ComposeDigest(r, matches, w.cfg.Links)
	if err != nil {
		fail(StageCompose, err)
		return
	}

	msg := notifier.EmailMessage{
		From:    w.cfg.From,
		To:      []string{r.Email},
		Subject: digest.Subject,
		HTML:    digest.HTML,
		Text:    digest.Text,
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		fail(StageSend, err)
		return
	}
	report.Sent++
	log.Info("digest sent", zap.Int("matches", len(matches)))

	freq := alert.Frequency
	if !freq.Valid() {
		freq = bucket
	}
	if err := w.store.MarkAlertTriggered(ctx, alert.ID, now, NextRun(freq, now)); err != nil {
		fail(StageUpdate, err)
	}
}

// MatchQueryFor 将告警条件转换为存储查询，时间窗口相对 now 计算。
func MatchQueryFor(alert model.JobAlert, now time.Time) storage.MatchQuery {
	return storage.MatchQuery{
		Keywords:        nonEmpty(alert.Keywords),
		Location:        alert.Location,
		EmploymentTypes: nonEmpty(alert.EmploymentTypes),
		JobLevels:       nonEmpty(alert.JobLevels),
		SalaryMin:       alert.SalaryMin,
		SalaryMax:       alert.SalaryMax,
		CreatedAfter:    RecencyCutoff(alert.Frequency, now),
	}
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
