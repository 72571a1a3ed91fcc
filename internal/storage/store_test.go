package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"jobboard/internal/model"

	"gorm.io/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func intPtr(v int) *int { return &v }

func TestStoreFindMatchingJobs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	company := &model.Company{Name: "Acme"}
	if err := store.CreateCompany(ctx, company); err != nil {
		t.Fatalf("CreateCompany error: %v", err)
	}

	jobs := []*model.Job{
		{ID: "react", CompanyID: company.ID, Title: "React Developer", Location: "London, UK", EmploymentType: "full_time", JobLevel: "mid", SalaryMin: intPtr(55000), SalaryMax: intPtr(85000), CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "low-pay", CompanyID: company.ID, Title: "React Engineer", Location: "London", EmploymentType: "full_time", JobLevel: "mid", SalaryMin: intPtr(40000), SalaryMax: intPtr(60000), CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "stale", CompanyID: company.ID, Title: "React Lead", Location: "London", EmploymentType: "full_time", JobLevel: "mid", SalaryMin: intPtr(60000), SalaryMax: intPtr(80000), CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "closed", CompanyID: company.ID, Title: "React Developer", Location: "London", EmploymentType: "full_time", JobLevel: "mid", SalaryMin: intPtr(60000), SalaryMax: intPtr(80000), Status: model.JobStatusClosed, CreatedAt: now.Add(-time.Hour)},
		{ID: "paris", CompanyID: company.ID, Title: "Product Designer", Location: "Paris", EmploymentType: "full_time", JobLevel: "mid", SalaryMin: intPtr(60000), SalaryMax: intPtr(80000), CreatedAt: now.Add(-time.Hour)},
	}
	for _, j := range jobs {
		if err := store.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob error: %v", err)
		}
	}

	got, err := store.FindMatchingJobs(ctx, MatchQuery{
		Keywords:        []string{"designer", "react"},
		Location:        "london",
		EmploymentTypes: []string{"full_time"},
		JobLevels:       []string{"mid", "senior"},
		SalaryMin:       intPtr(50000),
		SalaryMax:       intPtr(90000),
		CreatedAfter:    now.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("FindMatchingJobs error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(got), got)
	}
	if got[0].ID != "react" {
		t.Fatalf("expected react job, got %s", got[0].ID)
	}
	if got[0].CompanyName != "Acme" {
		t.Fatalf("expected company name Acme, got %q", got[0].CompanyName)
	}
}

func TestStoreFindMatchingJobsKeywordsAreOptional(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, j := range []*model.Job{
		{Title: "Go Engineer", Description: "backend", CreatedAt: now.Add(-time.Hour)},
		{Title: "Barista", Description: "coffee 100%", CreatedAt: now.Add(-time.Hour)},
	} {
		if err := store.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob error: %v", err)
		}
	}

	all, err := store.FindMatchingJobs(ctx, MatchQuery{CreatedAfter: now.Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("FindMatchingJobs error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both jobs without filters, got %d", len(all))
	}

	// 通配符需转义，"0%" 只能字面匹配
	literal, err := store.FindMatchingJobs(ctx, MatchQuery{Keywords: []string{"0%"}, CreatedAfter: now.Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("FindMatchingJobs error: %v", err)
	}
	if len(literal) != 1 || literal[0].Title != "Barista" {
		t.Fatalf("expected only the literal match, got %+v", literal)
	}
}

func TestStoreListActiveAlertsJoinsOwners(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertProfile(ctx, &model.Profile{ID: "u1", Email: "ada@example.com", FullName: "Ada", Role: model.RoleJobSeeker}); err != nil {
		t.Fatalf("UpsertProfile error: %v", err)
	}

	alerts := []*model.JobAlert{
		{UserID: "u1", Keywords: datatypes.JSONSlice[string]{"go"}, Frequency: model.FrequencyDailyAM, IsActive: true},
		{UserID: "ghost", Frequency: model.FrequencyDailyAM, IsActive: true},
		{UserID: "u1", Frequency: model.FrequencyDailyAM, IsActive: false},
		{UserID: "u1", Frequency: model.FrequencyWeekly, IsActive: true},
	}
	for _, a := range alerts {
		if err := store.CreateAlert(ctx, a); err != nil {
			t.Fatalf("CreateAlert error: %v", err)
		}
	}

	got, err := store.ListActiveAlerts(ctx, model.FrequencyDailyAM)
	if err != nil {
		t.Fatalf("ListActiveAlerts error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 active daily_am alerts, got %d", len(got))
	}
	byUser := map[string]model.AlertRecipient{}
	for _, r := range got {
		byUser[r.Alert.UserID] = r
	}
	if byUser["u1"].Email != "ada@example.com" || byUser["u1"].Name != "Ada" {
		t.Fatalf("expected owner joined, got %+v", byUser["u1"])
	}
	if byUser["ghost"].Email != "" {
		t.Fatalf("expected empty email for missing profile, got %q", byUser["ghost"].Email)
	}
	if len(byUser["u1"].Alert.Keywords) != 1 || byUser["u1"].Alert.Keywords[0] != "go" {
		t.Fatalf("expected keywords round trip, got %v", byUser["u1"].Alert.Keywords)
	}
}

func TestStoreMarkAlertTriggered(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	alert := &model.JobAlert{UserID: "u1", Frequency: model.FrequencyDailyAM, IsActive: true}
	if err := store.CreateAlert(ctx, alert); err != nil {
		t.Fatalf("CreateAlert error: %v", err)
	}

	triggered := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	next := triggered.Add(24 * time.Hour)
	if err := store.MarkAlertTriggered(ctx, alert.ID, triggered, next); err != nil {
		t.Fatalf("MarkAlertTriggered error: %v", err)
	}

	fetched, err := store.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert error: %v", err)
	}
	if fetched.LastTriggeredAt == nil || !fetched.LastTriggeredAt.Equal(triggered) {
		t.Fatalf("expected last triggered %v, got %v", triggered, fetched.LastTriggeredAt)
	}
	if fetched.NextScheduledAt == nil || !fetched.NextScheduledAt.Equal(next) {
		t.Fatalf("expected next scheduled %v, got %v", next, fetched.NextScheduledAt)
	}

	if err := store.DeleteAlert(ctx, alert.ID); err != nil {
		t.Fatalf("DeleteAlert error: %v", err)
	}
	err = store.MarkAlertTriggered(ctx, alert.ID, triggered, next)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreListJobsFiltersAndOrders(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, j := range []*model.Job{
		{ID: "1", Title: "Backend Engineer", Location: "Berlin", EmploymentType: "full_time", CreatedAt: base},
		{ID: "2", Title: "Frontend Engineer", Location: "Remote", EmploymentType: "contract", CreatedAt: base.Add(time.Hour)},
		{ID: "3", Title: "Data Engineer", Location: "Berlin", EmploymentType: "full_time", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "4", Title: "Closed Engineer", Status: model.JobStatusClosed, CreatedAt: base.Add(3 * time.Hour)},
	} {
		if err := store.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob error: %v", err)
		}
	}

	got, err := store.ListJobs(ctx, JobQueryOptions{Keyword: "engineer", Location: "berlin", Limit: 10})
	if err != nil {
		t.Fatalf("ListJobs error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(got))
	}
	if got[0].ID != "3" {
		t.Fatalf("expected newest job first, got %s", got[0].ID)
	}

	total, err := store.CountJobs(ctx, JobQueryOptions{EmploymentTypes: []string{"contract"}})
	if err != nil {
		t.Fatalf("CountJobs error: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 contract job, got %d", total)
	}

	fresh, err := store.CountJobsCreatedSince(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("CountJobsCreatedSince error: %v", err)
	}
	if fresh != 1 {
		t.Fatalf("expected 1 active job after cutoff, got %d", fresh)
	}
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if _, err := store.GetJob(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
