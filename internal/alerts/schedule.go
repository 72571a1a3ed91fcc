package alerts

import (
	"time"

	"jobboard/internal/model"
)

// DueBuckets 返回 now 时刻需要处理的频率。instant 每次都会处理。
func DueBuckets(now time.Time) []model.Frequency {
	buckets := make([]model.Frequency, 0, 4)
	switch now.Hour() {
	case 8:
		buckets = append(buckets, model.FrequencyDailyAM)
	case 17:
		buckets = append(buckets, model.FrequencyDailyPM)
	}
	// 每周告警只在周一 09:00 这一分钟内到期，09:01 之后的触发不再发送
	if now.Weekday() == time.Monday && now.Hour() == 9 && now.Minute() == 0 {
		buckets = append(buckets, model.FrequencyWeekly)
	}
	return append(buckets, model.FrequencyInstant)
}

// RecencyCutoff 返回匹配窗口的起点，只考虑之后创建的职位。
func RecencyCutoff(freq model.Frequency, now time.Time) time.Time {
	switch freq {
	case model.FrequencyInstant:
		return now.Add(-time.Hour)
	case model.FrequencyWeekly:
		return now.AddDate(0, 0, -7)
	default:
		return now.Add(-24 * time.Hour)
	}
}

// NextRun 计算发送成功后的下次计划时间，使用 now 所在时区。
func NextRun(freq model.Frequency, now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	switch freq {
	case model.FrequencyDailyAM:
		return time.Date(y, m, d+1, 8, 0, 0, 0, loc)
	case model.FrequencyDailyPM:
		return time.Date(y, m, d+1, 17, 0, 0, 0, loc)
	case model.FrequencyWeekly:
		days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
		if days <= 0 {
			days = 7
		}
		return time.Date(y, m, d+days, 9, 0, 0, 0, loc)
	default:
		return now.Add(time.Hour)
	}
}
