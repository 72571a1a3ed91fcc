package alerts

import (
	"strings"
	"testing"

	"jobboard/internal/model"

	"gorm.io/datatypes"
)

func TestComposeDigest(t *testing.T) {
	t.Parallel()

	lo, hi := 55000, 85000
	r := model.AlertRecipient{
		Alert: model.JobAlert{Keywords: datatypes.JSONSlice[string]{"engineer", "go"}, Location: "London"},
		Email: "ada@example.com",
		Name:  "Ada",
	}
	matches := []model.JobMatch{
		{Job: model.Job{ID: "j1", Title: "Software Engineer", Location: "London, UK", OnsiteType: "hybrid", JobLevel: "senior", EmploymentType: "full_time", SalaryMin: &lo, SalaryMax: &hi, Currency: "gbp"}, CompanyName: "Acme"},
		{Job: model.Job{ID: "j2", Title: "Go Developer <Backend>", Location: "London", SalaryMin: &lo}, CompanyName: "Globex"},
	}

	d, err := ComposeDigest(r, matches, DefaultLinks("https://jobs.example.com/"))
	if err != nil {
		t.Fatalf("ComposeDigest error: %v", err)
	}
	if d.Subject != "2 new jobs matching your alert" {
		t.Fatalf("unexpected subject %q", d.Subject)
	}
	for _, want := range []string{
		"Hi Ada,",
		"<strong>2</strong> new jobs",
		"engineer, go in London",
		"Software Engineer",
		"Acme",
		"Hybrid",
		"Senior",
		"Full time",
		"55,000 - 85,000 GBP",
		`href="https://jobs.example.com/jobs/j1"`,
		`href="https://jobs.example.com/jobs/j2/apply"`,
		"Go Developer &lt;Backend&gt;",
	} {
		if !strings.Contains(d.HTML, want) {
			t.Fatalf("expected html to contain %q\n%s", want, d.HTML)
		}
	}
	if strings.Count(d.HTML, "GBP") != 1 {
		t.Fatalf("salary range should only render when both bounds are known")
	}
	if !strings.Contains(d.Text, "View Job (https://jobs.example.com/jobs/j1)") {
		t.Fatalf("expected text part with view link, got %q", d.Text)
	}
}

func TestComposeDigestFallbacks(t *testing.T) {
	t.Parallel()

	r := model.AlertRecipient{Email: "anon@example.com"}
	d, err := ComposeDigest(r, []model.JobMatch{{Job: model.Job{ID: "x", Title: "Anything"}}}, DefaultLinks("https://jobs.example.com"))
	if err != nil {
		t.Fatalf("ComposeDigest error: %v", err)
	}
	if d.Subject != "1 new job matching your alert" {
		t.Fatalf("unexpected subject %q", d.Subject)
	}
	if !strings.Contains(d.HTML, "Hi there,") {
		t.Fatalf("expected generic greeting")
	}
	if !strings.Contains(d.HTML, "all jobs") {
		t.Fatalf("expected generic alert description")
	}

	if _, err := ComposeDigest(r, nil, Links{}); err == nil {
		t.Fatalf("expected error for empty match list")
	}
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	cases := map[int]string{0: "0", 999: "999", 1000: "1,000", 55000: "55,000", 1234567: "1,234,567", -4500: "-4,500"}
	for in, want := range cases {
		if got := formatAmount(in); got != want {
			t.Fatalf("formatAmount(%d) = %q, want %q", in, got, want)
		}
	}
}
