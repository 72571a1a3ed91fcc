package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus 职位状态，仅 active 参与匹配与搜索。
type JobStatus string

const (
	JobStatusActive JobStatus = "active"
	JobStatusClosed JobStatus = "closed"
	JobStatusDraft  JobStatus = "draft"
)

// Job 表示雇主发布的一个职位。
// - SalaryMin/SalaryMax: 可为空，空值不满足薪资过滤
// - OnsiteType: remote / hybrid / onsite
// - CreatedAt: 用于告警的时间窗口过滤

type Job struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	CompanyID      string    `gorm:"index" json:"company_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	OnsiteType     string    `json:"onsite_type"`
	EmploymentType string    `gorm:"index" json:"employment_type"`
	JobLevel       string    `gorm:"index" json:"job_level"`
	SalaryMin      *int      `json:"salary_min,omitempty"`
	SalaryMax      *int      `json:"salary_max,omitempty"`
	Currency       string    `json:"currency"`
	Status         JobStatus `gorm:"index" json:"status"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BeforeCreate 补齐主键与默认状态。
func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = JobStatusActive
	}
	if !j.CreatedAt.IsZero() {
		j.CreatedAt = j.CreatedAt.UTC()
	}
	return nil
}

// Company 雇主公司。
type Company struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	LogoURL   string    `json:"logo_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Company) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// JobMatch 职位及其公司名称，用于邮件摘要。
type JobMatch struct {
	Job
	CompanyName string `json:"company_name"`
}
