package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobboard/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound 记录不存在。
var ErrNotFound = errors.New("not found")

// Store 封装职位、公司、用户资料与告警的数据库访问。
type Store struct {
	db *gorm.DB
}

// JobQueryOptions 提供职位搜索过滤条件。
type JobQueryOptions struct {
	Limit           int
	Offset          int
	Keyword         string
	Location        string
	EmploymentTypes []string
	JobLevels       []string
}

// MatchQuery 描述一次告警匹配，所有非空条件同时生效。
// Keywords 之间为 OR 关系，匹配标题或描述。
type MatchQuery struct {
	Keywords        []string
	Location        string
	EmploymentTypes []string
	JobLevels       []string
	SalaryMin       *int
	SalaryMax       *int
	CreatedAfter    time.Time
}

// NewStore 打开数据库并自动迁移数据表。
// dsn 以 postgres:// 开头时使用 Postgres，否则视为 SQLite 文件路径。
func NewStore(dsn string) (*Store, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&model.Company{}, &model.Job{}, &model.Profile{}, &model.JobAlert{}); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db}, nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn), nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return sqlite.Open(dsn), nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// Ping 检查数据库连通性。
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}

// CreateCompany 新增公司。
func (s *Store) CreateCompany(ctx context.Context, c *model.Company) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create company: %w", err)
	}
	return nil
}

// CreateJob 新增职位。
func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// UpsertProfile 写入用户资料，已存在则更新邮箱、姓名与角色。
func (s *Store) UpsertProfile(ctx context.Context, p *model.Profile) error {
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "full_name", "role"}),
	}).Create(p)
	if tx.Error != nil {
		return fmt.Errorf("upsert profile: %w", tx.Error)
	}
	return nil
}

// GetJob 根据 ID 获取职位。
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// ListJobs 返回按创建时间倒序的在招职位。
func (s *Store) ListJobs(ctx context.Context, opts JobQueryOptions) ([]model.Job, error) {
	var jobs []model.Job
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	query := s.db.WithContext(ctx).Model(&model.Job{}).Order("created_at DESC")
	query = applyJobFilters(query, opts)
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// CountJobs 返回满足过滤条件的职位数量。
func (s *Store) CountJobs(ctx context.Context, opts JobQueryOptions) (int64, error) {
	var total int64
	query := applyJobFilters(s.db.WithContext(ctx).Model(&model.Job{}), opts)
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return total, nil
}

// CountJobsCreatedSince 返回 since 之后新建的在招职位数量。
func (s *Store) CountJobsCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Job{}).
		Where("status = ? AND created_at > ?", model.JobStatusActive, since.UTC()).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count new jobs: %w", err)
	}
	return total, nil
}

// FindMatchingJobs 返回满足告警条件的在招职位，附带公司名称。
func (s *Store) FindMatchingJobs(ctx context.Context, q MatchQuery) ([]model.JobMatch, error) {
	query := s.db.WithContext(ctx).
		Table("jobs").
		Select("jobs.*, companies.name AS company_name").
		Joins("LEFT JOIN companies ON companies.id = jobs.company_id").
		Where("jobs.status = ?", model.JobStatusActive).
		Where("jobs.created_at > ?", q.CreatedAfter.UTC())

	if cond, args := keywordCondition(q.Keywords, "jobs.title", "jobs.description"); cond != "" {
		query = query.Where(cond, args...)
	}
	if loc := strings.TrimSpace(q.Location); loc != "" {
		query = query.Where(`LOWER(jobs.location) LIKE ? ESCAPE '\'`, likePattern(loc))
	}
	if len(q.EmploymentTypes) > 0 {
		query = query.Where("jobs.employment_type IN ?", q.EmploymentTypes)
	}
	if len(q.JobLevels) > 0 {
		query = query.Where("jobs.job_level IN ?", q.JobLevels)
	}
	if q.SalaryMin != nil {
		query = query.Where("jobs.salary_min >= ?", *q.SalaryMin)
	}
	if q.SalaryMax != nil {
		query = query.Where("jobs.salary_max <= ?", *q.SalaryMax)
	}

	var matches []model.JobMatch
	if err := query.Order("jobs.created_at DESC").Scan(&matches).Error; err != nil {
		return nil, fmt.Errorf("find matching jobs: %w", err)
	}
	return matches, nil
}

// CreateAlert 新增告警。
func (s *Store) CreateAlert(ctx context.Context, alert *model.JobAlert) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// GetAlert 根据 ID 获取告警。
func (s *Store) GetAlert(ctx context.Context, id string) (*model.JobAlert, error) {
	var alert model.JobAlert
	if err := s.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &alert, nil
}

// ListAlertsByUser 返回用户的全部告警。
func (s *Store) ListAlertsByUser(ctx context.Context, userID string) ([]model.JobAlert, error) {
	var alerts []model.JobAlert
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// DeleteAlert 删除告警。
func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	tx := s.db.WithContext(ctx).Delete(&model.JobAlert{}, "id = ?", id)
	if tx.Error != nil {
		return fmt.Errorf("delete alert: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("delete alert %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListActiveAlerts 返回指定频率下的启用告警，并关联所有者邮箱与姓名。
// 资料缺失的告警仍会返回，Email 为空。
func (s *Store) ListActiveAlerts(ctx context.Context, freq model.Frequency) ([]model.AlertRecipient, error) {
	var alerts []model.JobAlert
	if err := s.db.WithContext(ctx).
		Where("frequency = ? AND is_active = ?", freq, true).
		Order("created_at ASC").
		Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}

	userIDs := make([]string, 0, len(alerts))
	seen := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		if _, ok := seen[a.UserID]; ok {
			continue
		}
		seen[a.UserID] = struct{}{}
		userIDs = append(userIDs, a.UserID)
	}

	var profiles []model.Profile
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list alert owners: %w", err)
	}
	byID := make(map[string]model.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	out := make([]model.AlertRecipient, 0, len(alerts))
	for _, a := range alerts {
		r := model.AlertRecipient{Alert: a}
		if p, ok := byID[a.UserID]; ok {
			r.Email = strings.TrimSpace(p.Email)
			r.Name = strings.TrimSpace(p.FullName)
		}
		out = append(out, r)
	}
	return out, nil
}

// MarkAlertTriggered 记录告警的触发时间与下次计划时间。
func (s *Store) MarkAlertTriggered(ctx context.Context, id string, triggeredAt, nextAt time.Time) error {
	tx := s.db.WithContext(ctx).Model(&model.JobAlert{}).Where("id = ?", id).Updates(map[string]any{
		"last_triggered_at": triggeredAt.UTC(),
		"next_scheduled_at": nextAt.UTC(),
	})
	if tx.Error != nil {
		return fmt.Errorf("mark alert triggered: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("mark alert triggered %s: %w", id, ErrNotFound)
	}
	return nil
}

func applyJobFilters(db *gorm.DB, opts JobQueryOptions) *gorm.DB {
	db = db.Where("status = ?", model.JobStatusActive)
	if kw := strings.TrimSpace(opts.Keyword); kw != "" {
		cond, args := keywordCondition(strings.Fields(kw), "title", "description")
		db = db.Where(cond, args...)
	}
	if loc := strings.TrimSpace(opts.Location); loc != "" {
		db = db.Where(`LOWER(location) LIKE ? ESCAPE '\'`, likePattern(loc))
	}
	if len(opts.EmploymentTypes) > 0 {
		db = db.Where("employment_type IN ?", opts.EmploymentTypes)
	}
	if len(opts.JobLevels) > 0 {
		db = db.Where("job_level IN ?", opts.JobLevels)
	}
	return db
}

// keywordCondition 构造 "任一关键词出现在任一列" 的条件，大小写不敏感。
func keywordCondition(keywords []string, columns ...string) (string, []any) {
	var parts []string
	var args []any
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		pattern := likePattern(kw)
		for _, col := range columns {
			parts = append(parts, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, col))
			args = append(args, pattern)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}
