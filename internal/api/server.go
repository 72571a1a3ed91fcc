package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"jobboard/internal/alerts"
	"jobboard/internal/model"
	"jobboard/internal/ratelimit"
	"jobboard/internal/storage"
	"jobboard/internal/subscription"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Runner 触发一次告警处理。
type Runner interface {
	RunOnce(ctx context.Context) (alerts.Report, error)
}

// JobStore 职位查询接口。
type JobStore interface {
	ListJobs(ctx context.Context, opts storage.JobQueryOptions) ([]model.Job, error)
	CountJobs(ctx context.Context, opts storage.JobQueryOptions) (int64, error)
}

// AlertService 告警管理接口。
type AlertService interface {
	Create(ctx context.Context, req subscription.Request) (model.JobAlert, error)
	List(ctx context.Context, userID string) ([]model.JobAlert, error)
	Delete(ctx context.Context, id string) error
}

// RateLimiter 密码重置限流。
type RateLimiter interface {
	Allow(ctx context.Context, email string) (ratelimit.Decision, error)
}

// PasswordResetter 请求身份服务发送重置邮件。
type PasswordResetter interface {
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
}

// QueryCorrector 搜索词纠错。
type QueryCorrector interface {
	Correct(query string) (string, bool)
}

// Deps 汇总 HTTP 层依赖，未提供的功能返回 503。
type Deps struct {
	Runner        Runner
	Jobs          JobStore
	Alerts        AlertService
	Limiter       RateLimiter
	Resetter      PasswordResetter
	Corrector     QueryCorrector
	ResetRedirect string
	Logger        *zap.Logger
}

// AlertsFunctionPath 告警处理的触发地址。
const AlertsFunctionPath = "/functions/v1/job-alerts"

type handler struct {
	Deps
	logger *zap.Logger
}

// NewHandler 构造 HTTP 路由。
func NewHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{Deps: deps, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.HandleFunc(AlertsFunctionPath, h.runAlerts)

	r.Route("/api", func(r chi.Router) {
		r.Get("/jobs", h.listJobs)
		r.Post("/alerts", h.createAlert)
		r.Get("/alerts", h.listAlerts)
		r.Delete("/alerts/{id}", h.deleteAlert)
		r.Post("/auth/password-reset", h.passwordReset)
	})

	return r
}

// cors 对所有请求添加宽松的跨域头，OPTIONS 预检直接返回。
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type runResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
}

func (h *handler) runAlerts(w http.ResponseWriter, r *http.Request) {
	if h.Runner == nil {
		writeError(w, http.StatusServiceUnavailable, "alert runner disabled")
		return
	}
	report, err := h.Runner.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("alert run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		Success:   true,
		Processed: report.Processed,
		Sent:      report.Sent,
		Failed:    len(report.Failures),
	})
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job search disabled")
		return
	}
	q := r.URL.Query()

	limit := 20
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			if v > 100 {
				v = 100
			}
			limit = v
		}
	}
	page := 1
	if p := q.Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	keyword := strings.TrimSpace(q.Get("q"))
	if keyword != "" && h.Corrector != nil {
		if corrected, changed := h.Corrector.Correct(keyword); changed {
			w.Header().Set("X-Corrected-Query", corrected)
			keyword = corrected
		}
	}

	opts := storage.JobQueryOptions{
		Keyword:         keyword,
		Location:        q.Get("location"),
		EmploymentTypes: splitList(q["type"]),
		JobLevels:       splitList(q["level"]),
	}
	total, err := h.Jobs.CountJobs(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts.Limit = limit + 1
	opts.Offset = (page - 1) * limit
	jobs, err := h.Jobs.ListJobs(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	hasMore := false
	if len(jobs) > limit {
		hasMore = true
		jobs = jobs[:limit]
	}
	if jobs == nil {
		jobs = []model.Job{}
	}

	w.Header().Set("X-Page", strconv.Itoa(page))
	w.Header().Set("X-Limit", strconv.Itoa(limit))
	w.Header().Set("X-Has-More", strconv.FormatBool(hasMore))
	w.Header().Set("X-Total", strconv.FormatInt(total, 10))
	writeJSON(w, http.StatusOK, jobs)
}

func (h *handler) createAlert(w http.ResponseWriter, r *http.Request) {
	if h.Alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alerts disabled")
		return
	}
	var req subscription.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	alert, err := h.Alerts.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (h *handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if h.Alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alerts disabled")
		return
	}
	list, err := h.Alerts.List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []model.JobAlert{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) deleteAlert(w http.ResponseWriter, r *http.Request) {
	if h.Alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alerts disabled")
		return
	}
	if err := h.Alerts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (h *handler) passwordReset(w http.ResponseWriter, r *http.Request) {
	if h.Resetter == nil {
		writeError(w, http.StatusServiceUnavailable, "password reset disabled")
		return
	}
	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	if h.Limiter != nil {
		decision, err := h.Limiter.Allow(r.Context(), email)
		if err != nil {
			h.logger.Error("rate limiter failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "rate limiter unavailable")
			return
		}
		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "too many password reset attempts, try again later")
			return
		}
	}

	if err := h.Resetter.RequestPasswordReset(r.Context(), email, h.ResetRedirect); err != nil {
		h.logger.Error("password reset request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not request password reset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, subscription.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		h.logger.Error("alert request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// splitList 支持 ?type=a&type=b 与 ?type=a,b 两种写法。
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
