package alerts

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"jobboard/internal/model"
	"jobboard/internal/notifier"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Links 定义职位链接模板，{id} 会被替换为职位 ID。
type Links struct {
	ViewURL  string `yaml:"view_url" json:"view_url"`
	ApplyURL string `yaml:"apply_url" json:"apply_url"`
}

// DefaultLinks 基于站点地址生成默认链接模板。
func DefaultLinks(siteURL string) Links {
	base := strings.TrimSuffix(strings.TrimSpace(siteURL), "/")
	return Links{
		ViewURL:  base + "/jobs/{id}",
		ApplyURL: base + "/jobs/{id}/apply",
	}
}

func (l Links) view(id string) string  { return expandLink(l.ViewURL, id) }
func (l Links) apply(id string) string { return expandLink(l.ApplyURL, id) }

func expandLink(tmpl, id string) string {
	return strings.ReplaceAll(tmpl, "{id}", url.PathEscape(id))
}

// Digest 一封告警摘要邮件的内容。
type Digest struct {
	Subject string
	HTML    string
	Text    string
}

type digestEntry struct {
	Title          string
	CompanyName    string
	Location       string
	OnsiteType     string
	JobLevel       string
	EmploymentType string
	Salary         string
	ViewURL        string
	ApplyURL       string
}

type digestData struct {
	Name        string
	Count       int
	Description string
	Jobs        []digestEntry
}

var digestTmpl = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Hi {{.Name}},</h2>
  <p>We found <strong>{{.Count}}</strong> new job{{if ne .Count 1}}s{{end}} matching your alert: <em>{{.Description}}</em></p>
  {{range .Jobs}}
  <div style="border: 1px solid #e5e7eb; border-radius: 8px; padding: 16px; margin-bottom: 12px;">
    <h3 style="margin: 0 0 4px 0;">{{.Title}}</h3>
    <p style="margin: 0 0 8px 0;">{{.CompanyName}}{{if .Location}} · {{.Location}}{{end}}</p>
    <p style="margin: 0 0 8px 0;">{{if .OnsiteType}}{{.OnsiteType}}{{end}}{{if .JobLevel}} · {{.JobLevel}}{{end}}{{if .EmploymentType}} · {{.EmploymentType}}{{end}}</p>
    {{if .Salary}}<p style="margin: 0 0 8px 0;">{{.Salary}}</p>{{end}}
    <a href="{{.ViewURL}}">View Job</a> | <a href="{{.ApplyURL}}">Apply Now</a>
  </div>
  {{end}}
  <p style="font-size: 12px; color: #6b7280;">You are receiving this email because you created a job alert.</p>
</body>
</html>
`))

// ComposeDigest 渲染一封告警摘要，matches 不能为空。
func ComposeDigest(r model.AlertRecipient, matches []model.JobMatch, links Links) (Digest, error) {
	if len(matches) == 0 {
		return Digest{}, fmt.Errorf("compose digest: no matches")
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = "there"
	}
	data := digestData{
		Name:        name,
		Count:       len(matches),
		Description: r.Alert.Describe(),
		Jobs:        make([]digestEntry, 0, len(matches)),
	}
	for _, m := range matches {
		company := m.CompanyName
		if company == "" {
			company = "Unknown company"
		}
		data.Jobs = append(data.Jobs, digestEntry{
			Title:          m.Title,
			CompanyName:    company,
			Location:       m.Location,
			OnsiteType:     humanize(m.OnsiteType),
			JobLevel:       humanize(m.JobLevel),
			EmploymentType: humanize(m.EmploymentType),
			Salary:         salaryRange(m.SalaryMin, m.SalaryMax, m.Currency),
			ViewURL:        links.view(m.ID),
			ApplyURL:       links.apply(m.ID),
		})
	}

	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, data); err != nil {
		return Digest{}, fmt.Errorf("render digest: %w", err)
	}

	plural := "s"
	if len(matches) == 1 {
		plural = ""
	}
	html := buf.String()
	return Digest{
		Subject: fmt.Sprintf("%d new job%s matching your alert", len(matches), plural),
		HTML:    html,
		Text:    notifier.PlainText(html),
	}, nil
}

// humanize 将 full_time 转为 Full time。
func humanize(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func salaryRange(lo, hi *int, currency string) string {
	if lo == nil || hi == nil {
		return ""
	}
	out := formatAmount(*lo) + " - " + formatAmount(*hi)
	if c := strings.TrimSpace(currency); c != "" {
		out += " " + strings.ToUpper(c)
	}
	return out
}

var amountPrinter = message.NewPrinter(language.English)

func formatAmount(v int) string {
	return amountPrinter.Sprintf("%d", v)
}
