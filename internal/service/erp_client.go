package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/studentpulse/internal/metrics"
	"github.com/studentpulse/internal/scoring"
	"github.com/studentpulse/internal/view"
)

// 教务接口路径。
const (
	ERPEndpointStudents = "api-students"
	ERPEndpointProgress = "api-progress"
	ERPEndpointNotices  = "api-notices"
)

// ERPStudent 是教务系统中的学生
type ERPStudent struct {
	ID         string  `json:"id"`
	RollNo     string  `json:"roll_no"`
	Name       string  `json:"name"`
	Branch     string  `json:"branch"`
	Attendance float64 `json:"attendance"`
	CIEMarks   string  `json:"cie_marks"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// ERPProgress 是某个学生单科的进度
type ERPProgress struct {
	ID               string  `json:"id"`
	StudentID        string  `json:"student_id"`
	Subject          string  `json:"subject"`
	Attendance       float64 `json:"attendance"`
	Marks            float64 `json:"marks"`
	AssignmentsDone  int     `json:"assignments_done"`
	TotalAssignments int     `json:"total_assignments"`
	CreatedAt        string  `json:"created_at"`
}

// ERPNotice 是教务通知，Content 为 Markdown
type ERPNotice struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	Priority  string `json:"priority"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// ERPResponse 是教务接口的统一返回
type ERPResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// ERPStudentView 附带根据教务数据计算的风险等级
type ERPStudentView struct {
	ERPStudent
	MarksPercentage int               `json:"marksPercentage"`
	RiskLevel       scoring.RiskLevel `json:"riskLevel"`
}

// NoticeView 是渲染后的通知
type NoticeView struct {
	ERPNotice
	ContentHTML template.HTML `json:"contentHtml"`
}

// ERPClient 读取教务系统接口。任何失败都记录日志并返回空列表，不向调用方报错。
type ERPClient struct {
	baseURL string
	http    httpDoer
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewERPClient 构造 ERPClient，baseURL 为空时所有请求直接返回空结果
func NewERPClient(baseURL string) *ERPClient {
	return &ERPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// SetHTTPClient 替换 HTTP 客户端，主要面向测试。
func (c *ERPClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	c.http = client
}

// SetMetrics 设置指标收集器。
func (c *ERPClient) SetMetrics(m *metrics.Metrics) { c.metrics = m }

// Students 返回全部学生
func (c *ERPClient) Students(ctx context.Context) ERPResponse[ERPStudent] {
	return fetchERP[ERPStudent](ctx, c, ERPEndpointStudents)
}

// Progress 返回全部科目进度
func (c *ERPClient) Progress(ctx context.Context) ERPResponse[ERPProgress] {
	return fetchERP[ERPProgress](ctx, c, ERPEndpointProgress)
}

// Notices 返回全部通知
func (c *ERPClient) Notices(ctx context.Context) ERPResponse[ERPNotice] {
	return fetchERP[ERPNotice](ctx, c, ERPEndpointNotices)
}

// FindByRollNo 按学号查找学生，不存在时返回 nil
func (c *ERPClient) FindByRollNo(ctx context.Context, rollNo string) *ERPStudent {
	rollNo = strings.TrimSpace(rollNo)
	for _, student := range c.Students(ctx).Data {
		if student.RollNo == rollNo {
			found := student
			return &found
		}
	}
	return nil
}

// ByBranch 返回某个专业的学生
func (c *ERPClient) ByBranch(ctx context.Context, branch string) []ERPStudent {
	result := []ERPStudent{}
	for _, student := range c.Students(ctx).Data {
		if student.Branch == branch {
			result = append(result, student)
		}
	}
	return result
}

// AtRisk 返回状态不是 Regular 的学生
func (c *ERPClient) AtRisk(ctx context.Context) []ERPStudent {
	result := []ERPStudent{}
	for _, student := range c.Students(ctx).Data {
		if student.Status != scoring.ERPStatusRegular {
			result = append(result, student)
		}
	}
	return result
}

// StudentViews 为学生附加风险等级
func StudentViews(students []ERPStudent) []ERPStudentView {
	views := make([]ERPStudentView, 0, len(students))
	for _, student := range students {
		views = append(views, ERPStudentView{
			ERPStudent:      student,
			MarksPercentage: scoring.ParseCIEMarks(student.CIEMarks),
			RiskLevel:       scoring.ERPRiskLevel(student.Status, student.Attendance, student.CIEMarks),
		})
	}
	return views
}

// SubjectsFor 把某个学生的教务进度转换为科目快照
func (c *ERPClient) SubjectsFor(ctx context.Context, studentID string) []scoring.SubjectData {
	subjects := []scoring.SubjectData{}
	for _, progress := range c.Progress(ctx).Data {
		if progress.StudentID != studentID {
			continue
		}
		subjects = append(subjects, scoring.SubjectData{
			ID:               progress.ID,
			Name:             progress.Subject,
			Code:             progress.Subject,
			Attendance:       scoring.ClampPercent(progress.Attendance),
			InternalMarks:    scoring.ClampPercent(progress.Marks),
			AssignmentsDone:  progress.AssignmentsDone,
			TotalAssignments: progress.TotalAssignments,
		})
	}
	return subjects
}

// ActiveNotices 返回未过期的通知并渲染正文
func (c *ERPClient) ActiveNotices(ctx context.Context) []NoticeView {
	now := c.now()
	notices := c.Notices(ctx).Data
	views := make([]NoticeView, 0, len(notices))
	for _, notice := range notices {
		if expires, err := time.Parse(time.RFC3339, notice.ExpiresAt); err == nil && expires.Before(now) {
			continue
		}
		html, err := view.RenderMarkdown(notice.Content)
		if err != nil {
			log.Printf("[ERP] render notice %s failed: %v", notice.ID, err)
			html = template.HTML(template.HTMLEscapeString(notice.Content))
		}
		views = append(views, NoticeView{ERPNotice: notice, ContentHTML: html})
	}
	return views
}

func fetchERP[T any](ctx context.Context, c *ERPClient, endpoint string) ERPResponse[T] {
	empty := ERPResponse[T]{Data: []T{}}
	if c.baseURL == "" {
		return empty
	}

	fail := func(err error) ERPResponse[T] {
		log.Printf("[ERP] fetch %s failed: %v", endpoint, err)
		c.metrics.ERPError(endpoint)
		return empty
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint, nil)
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fail(fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fail(err)
	}
	var result ERPResponse[T]
	if err := json.Unmarshal(body, &result); err != nil {
		return fail(err)
	}
	if result.Data == nil {
		result.Data = []T{}
	}
	return result
}
