// Package subscription 管理用户的职位告警：校验请求、写入与删除。
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobboard/internal/alerts"
	"jobboard/internal/model"

	"gorm.io/datatypes"
)

// ErrInvalid 请求校验失败。
var ErrInvalid = errors.New("invalid alert")

// Store 定义持久化接口。
type Store interface {
	CreateAlert(ctx context.Context, alert *model.JobAlert) error
	ListAlertsByUser(ctx context.Context, userID string) ([]model.JobAlert, error)
	DeleteAlert(ctx context.Context, id string) error
}

// Config 控制可选的用工类型、职级与关键词数量。
type Config struct {
	EmploymentTypes []string `yaml:"employment_types" json:"employment_types"`
	JobLevels       []string `yaml:"job_levels" json:"job_levels"`
	MaxKeywords     int      `yaml:"max_keywords" json:"max_keywords"`
}

var (
	defaultEmploymentTypes = []string{"full_time", "part_time", "contract", "internship", "temporary"}
	defaultJobLevels       = []string{"entry", "junior", "mid", "senior", "lead", "executive"}
)

// Request 表示创建告警的请求。
type Request struct {
	UserID          string   `json:"user_id"`
	Keywords        []string `json:"keywords"`
	Location        string   `json:"location"`
	EmploymentTypes []string `json:"employment_types"`
	JobLevels       []string `json:"job_levels"`
	SalaryMin       *int     `json:"salary_min"`
	SalaryMax       *int     `json:"salary_max"`
	Frequency       string   `json:"frequency"`
}

// Service 负责验证与写入告警。
type Service struct {
	store       Store
	types       map[string]string
	levels      map[string]string
	maxKeywords int
	loc         *time.Location
	now         func() time.Time
}

// NewService 创建告警服务，loc 用于计算首次计划时间。
func NewService(store Store, cfg Config, loc *time.Location) *Service {
	if len(cfg.EmploymentTypes) == 0 {
		cfg.EmploymentTypes = defaultEmploymentTypes
	}
	if len(cfg.JobLevels) == 0 {
		cfg.JobLevels = defaultJobLevels
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = 10
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:       store,
		types:       lookup(cfg.EmploymentTypes),
		levels:      lookup(cfg.JobLevels),
		maxKeywords: cfg.MaxKeywords,
		loc:         loc,
		now:         time.Now,
	}
}

func lookup(values []string) map[string]string {
	out := make(map[string]string, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out[strings.ToLower(trimmed)] = trimmed
		}
	}
	return out
}

// Create 校验请求并写入数据库，新告警默认启用。
func (s *Service) Create(ctx context.Context, req Request) (model.JobAlert, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return model.JobAlert{}, fmt.Errorf("%w: user_id required", ErrInvalid)
	}

	freq, err := model.ParseFrequency(req.Frequency)
	if err != nil {
		return model.JobAlert{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	keywords := dedupe(req.Keywords)
	if len(keywords) > s.maxKeywords {
		return model.JobAlert{}, fmt.Errorf("%w: at most %d keywords", ErrInvalid, s.maxKeywords)
	}

	types, err := canonical(req.EmploymentTypes, s.types, "employment type")
	if err != nil {
		return model.JobAlert{}, err
	}
	levels, err := canonical(req.JobLevels, s.levels, "job level")
	if err != nil {
		return model.JobAlert{}, err
	}

	if (req.SalaryMin != nil && *req.SalaryMin < 0) || (req.SalaryMax != nil && *req.SalaryMax < 0) {
		return model.JobAlert{}, fmt.Errorf("%w: salary must not be negative", ErrInvalid)
	}
	if req.SalaryMin != nil && req.SalaryMax != nil && *req.SalaryMin > *req.SalaryMax {
		return model.JobAlert{}, fmt.Errorf("%w: salary_min greater than salary_max", ErrInvalid)
	}

	next := alerts.NextRun(freq, s.now().In(s.loc))
	alert := model.JobAlert{
		UserID:          userID,
		Keywords:        datatypes.JSONSlice[string](keywords),
		Location:        strings.TrimSpace(req.Location),
		EmploymentTypes: datatypes.JSONSlice[string](types),
		JobLevels:       datatypes.JSONSlice[string](levels),
		SalaryMin:       req.SalaryMin,
		SalaryMax:       req.SalaryMax,
		Frequency:       freq,
		IsActive:        true,
		NextScheduledAt: &next,
	}
	if err := s.store.CreateAlert(ctx, &alert); err != nil {
		return model.JobAlert{}, err
	}
	return alert, nil
}

// List 返回用户的告警。
func (s *Service) List(ctx context.Context, userID string) ([]model.JobAlert, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id required", ErrInvalid)
	}
	return s.store.ListAlertsByUser(ctx, userID)
}

// Delete 删除告警。
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id required", ErrInvalid)
	}
	return s.store.DeleteAlert(ctx, id)
}

// dedupe 去除空白与大小写重复的关键词，保留首次出现的写法。
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func canonical(values []string, allowed map[string]string, what string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range dedupe(values) {
		c, ok := allowed[strings.ToLower(v)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown %s %s", ErrInvalid, what, v)
		}
		out = append(out, c)
	}
	return out, nil
}
