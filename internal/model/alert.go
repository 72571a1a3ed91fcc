package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Frequency 告警推送频率。
type Frequency string

const (
	FrequencyDailyAM Frequency = "daily_am"
	FrequencyDailyPM Frequency = "daily_pm"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyInstant Frequency = "instant"
)

// Frequencies 按处理顺序列出全部频率。
var Frequencies = []Frequency{FrequencyDailyAM, FrequencyDailyPM, FrequencyWeekly, FrequencyInstant}

// Valid 判断是否为已知频率。
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDailyAM, FrequencyDailyPM, FrequencyWeekly, FrequencyInstant:
		return true
	}
	return false
}

// ParseFrequency 解析频率字符串，忽略大小写与首尾空白。
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}

// JobAlert 用户保存的职位搜索。
// LastTriggeredAt 仅在成功发送摘要后更新；没有匹配时保持不变。
type JobAlert struct {
	ID              string                      `gorm:"primaryKey" json:"id"`
	UserID          string                      `gorm:"index" json:"user_id"`
	Keywords        datatypes.JSONSlice[string] `json:"keywords"`
	Location        string                      `json:"location,omitempty"`
	EmploymentTypes datatypes.JSONSlice[string] `json:"employment_types"`
	JobLevels       datatypes.JSONSlice[string] `json:"job_levels"`
	SalaryMin       *int                        `json:"salary_min,omitempty"`
	SalaryMax       *int                        `json:"salary_max,omitempty"`
	Frequency       Frequency                   `gorm:"index" json:"frequency"`
	IsActive        bool                        `gorm:"index" json:"is_active"`
	CreatedAt       time.Time                   `json:"created_at"`
	LastTriggeredAt *time.Time                  `json:"last_triggered_at,omitempty"`
	NextScheduledAt *time.Time                  `json:"next_scheduled_at,omitempty"`
}

func (a *JobAlert) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Describe 返回用于邮件的告警描述，如 "engineer, go in London"。
func (a JobAlert) Describe() string {
	desc := strings.Join(a.Keywords, ", ")
	if desc == "" {
		desc = "all jobs"
	}
	if loc := strings.TrimSpace(a.Location); loc != "" {
		desc += " in " + loc
	}
	return desc
}

// AlertRecipient 告警及其所有者的联系方式；关联失败时 Email 为空。
type AlertRecipient struct {
	Alert JobAlert
	Email string
	Name  string
}
