package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/studentpulse/internal/metrics"
	"github.com/studentpulse/internal/scoring"
)

// 评估结果来源。
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// 兜底原因。
const (
	FallbackParseError = "parse_error"
	FallbackUpstream   = "upstream_error"
	FallbackTimeout    = "timeout"
	FallbackNoAPIKey   = "api_key_missing"
	FallbackUnknown    = "error"
)

// ErrInvalidFeatures 表示特征摘要中存在越界字段
var ErrInvalidFeatures = errors.New("invalid student data")

const riskAssessorTemperature = 0.3

// AssessResult 是一次评估的结果与来源
type AssessResult struct {
	scoring.Assessment
	Source         string `json:"source"`
	FallbackReason string `json:"fallbackReason,omitempty"`
	Model          string `json:"model,omitempty"`
}

// RiskAssessor 把特征摘要交给语言模型判断风险，模型输出无法解析时按规则兜底。
// 网络与上游错误原样返回，由调用方决定是否兜底。
type RiskAssessor struct {
	settings *SystemSettingService
	client   *aiChatClient
	validate *validator.Validate
	metrics  *metrics.Metrics
}

// NewRiskAssessor 构造 RiskAssessor
func NewRiskAssessor(settings *SystemSettingService) *RiskAssessor {
	return &RiskAssessor{
		settings: settings,
		client:   newAIChatClient(settings),
		validate: validator.New(),
	}
}

// SetHTTPClient 替换访问模型接口的 HTTP 客户端，主要面向测试。
func (a *RiskAssessor) SetHTTPClient(client httpDoer) { a.client.SetHTTPClient(client) }

// SetBaseURL 覆盖当前平台的接口地址。
func (a *RiskAssessor) SetBaseURL(provider, base string) {
	if normalizeAIProvider(provider) == AIProviderDeepSeek {
		a.client.SetDeepSeekBaseURL(base)
		return
	}
	a.client.SetOpenAIBaseURL(base)
}

// SetMetrics 设置指标收集器。
func (a *RiskAssessor) SetMetrics(m *metrics.Metrics) { a.metrics = m }

// Validate 检查特征摘要的取值范围。
func (a *RiskAssessor) Validate(summary scoring.FeatureSummary) error {
	if err := a.validate.Struct(summary); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %s", ErrInvalidFeatures, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidFeatures, err)
	}
	return nil
}

// Assess 校验摘要并调用模型。
func (a *RiskAssessor) Assess(ctx context.Context, summary scoring.FeatureSummary) (*AssessResult, error) {
	if err := a.Validate(summary); err != nil {
		return nil, err
	}

	settings, err := a.settings.GetSettings()
	if err != nil {
		return nil, err
	}

	userPrompt := buildRiskUserPrompt(summary)
	logAIExchange("RISK", "prompt", userPrompt)

	started := time.Now()
	resp, err := a.client.callWithSettings(ctx, settings, aiChatRequest{
		SystemPrompt: buildRiskSystemPrompt(settings.InstitutionName),
		UserPrompt:   userPrompt,
		Temperature:  riskAssessorTemperature,
	})
	a.metrics.AIRequest(time.Since(started))
	if err != nil {
		logAIExchange("RISK", "error", err.Error())
		return nil, err
	}
	logAIExchange("RISK", "response", resp.Content)

	assessment, err := parseAssessment(resp.Content)
	if err != nil {
		logAIExchange("RISK", "parse failed", err.Error())
		return &AssessResult{
			Assessment:     scoring.FallbackAssessment(summary),
			Source:         SourceFallback,
			FallbackReason: FallbackParseError,
		}, nil
	}

	return &AssessResult{Assessment: assessment, Source: SourceModel, Model: resp.Model}, nil
}

// parseAssessment 取第一个 { 到最后一个 } 之间的内容解析，等级无法识别视为失败。
func parseAssessment(content string) (scoring.Assessment, error) {
	raw, ok := extractJSONObject(content)
	if !ok {
		return scoring.Assessment{}, errors.New("no json object in response")
	}

	var assessment scoring.Assessment
	if err := json.Unmarshal([]byte(raw), &assessment); err != nil {
		return scoring.Assessment{}, fmt.Errorf("decode assessment: %w", err)
	}
	assessment.RiskLevel = scoring.RiskLevel(strings.ToLower(strings.TrimSpace(string(assessment.RiskLevel))))
	if !assessment.Normalize() {
		return scoring.Assessment{}, fmt.Errorf("unknown risk level %q", assessment.RiskLevel)
	}
	for i := range assessment.SubjectRisks {
		risk := scoring.RiskLevel(strings.ToLower(strings.TrimSpace(string(assessment.SubjectRisks[i].Risk))))
		if !risk.Valid() {
			risk = scoring.RiskMedium
		}
		assessment.SubjectRisks[i].Risk = risk
	}
	return assessment, nil
}

func extractJSONObject(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

func buildRiskSystemPrompt(institution string) string {
	if strings.TrimSpace(institution) == "" {
		institution = defaultInstitutionName
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a student risk assessment system for %s.\n", institution)
	b.WriteString("Analyze the student's academic data and predict their risk level.\n\n")
	b.WriteString("Risk Level Criteria:\n")
	fmt.Fprintf(&b, "- LOW RISK: Attendance >= %d%%, Average marks >= %d%%, Pending assignments <= %d\n",
		scoring.PromptLowAttendance, scoring.PromptLowMarks, scoring.PromptLowPending)
	fmt.Fprintf(&b, "- MEDIUM RISK: Attendance %d-%d%%, Average marks %d-%d%%, OR Pending assignments %d-%d\n",
		scoring.PromptHighAttendance, scoring.PromptLowAttendance-1,
		scoring.PromptHighMarks, scoring.PromptLowMarks-1,
		scoring.PromptLowPending+1, scoring.PromptHighPending)
	fmt.Fprintf(&b, "- HIGH RISK: Attendance < %d%%, Average marks < %d%%, OR Pending assignments > %d\n\n",
		scoring.PromptHighAttendance, scoring.PromptHighMarks, scoring.PromptHighPending)
	b.WriteString("Respond with ONLY a valid JSON object in this exact format:\n")
	b.WriteString(`{
  "riskLevel": "low" | "medium" | "high",
  "explanation": "Brief explanation of the risk assessment",
  "recommendations": ["recommendation1", "recommendation2"],
  "subjectRisks": [{"subject": "subject name", "risk": "low|medium|high", "reason": "why"}]
}`)
	return b.String()
}

func buildRiskUserPrompt(summary scoring.FeatureSummary) string {
	var b strings.Builder
	b.WriteString("Analyze this student's data and predict their risk level:\n\n")
	fmt.Fprintf(&b, "Student Name: %s\nCourse: %s\nSemester: %d\n\n", summary.Name, summary.Course, summary.Semester)
	b.WriteString("Subject Performance:\n")
	for _, subject := range summary.Subjects {
		fmt.Fprintf(&b, "- %s: Attendance %g%%, Marks %g%%, Pending Assignments: %d\n",
			subject.Name, subject.Attendance, subject.Marks, subject.PendingAssignments)
	}
	fmt.Fprintf(&b, "\nOverall Attendance: %g%%\nAverage Marks: %g%%\nTotal Pending Assignments: %d\n\n",
		summary.OverallAttendance, summary.AverageMarks, summary.TotalPendingAssignments)

	b.WriteString("Well-being Data:\n")
	var mood, stress, sleep *int
	if summary.WellBeing != nil {
		mood, stress, sleep = summary.WellBeing.Mood, summary.WellBeing.Stress, summary.WellBeing.Sleep
	}
	fmt.Fprintf(&b, "- Recent Mood: %s\n- Stress Level: %s\n- Sleep Quality: %s\n\n",
		scaleOrUnavailable(mood), scaleOrUnavailable(stress), scaleOrUnavailable(sleep))
	b.WriteString("Provide a risk assessment with specific recommendations for this student.")
	return b.String()
}

func scaleOrUnavailable(v *int) string {
	if v == nil {
		return "Not available"
	}
	return fmt.Sprintf("%d", *v)
}
