package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/studentpulse/internal/analytics"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/events"
	"github.com/studentpulse/internal/metrics"
	"github.com/studentpulse/internal/scoring"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 预测状态。
const (
	PredictionPending = "pending"
	PredictionSuccess = "success"
	PredictionFailure = "failure"
)

// DefaultPredictionTimeout 是模型调用的默认超时
const DefaultPredictionTimeout = 10 * time.Second

const (
	fallbackModelVersion = "rules-v1"
	fallbackConfidence   = 0.6
	modelConfidence      = 0.8
)

// Prediction 是一次风险预测的完整结果
type Prediction struct {
	AssessResult
	StudentID   string    `json:"studentId"`
	Sequence    uint64    `json:"sequence"`
	PredictedAt time.Time `json:"predictedAt"`
}

// PredictionState 是某个学生最近一次预测的状态。
// failure 时 Result 仍携带兜底结果，Message 说明失败原因，前端可手动重试。
type PredictionState struct {
	Status    string      `json:"status"`
	Sequence  uint64      `json:"sequence"`
	Message   string      `json:"message,omitempty"`
	Result    *Prediction `json:"result,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// RiskPredictor 从学生数据生成特征并调用 RiskAssessor，任何失败都退回规则计算。
// 每次请求分配递增序号，旧请求的结果不会覆盖新请求的状态。
type RiskPredictor struct {
	db        *gorm.DB
	students  *StudentRepository
	assessor  *RiskAssessor
	warehouse *analytics.Warehouse
	publisher events.Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration

	mu       sync.Mutex
	sequence uint64
	states   map[string]*PredictionState
}

// NewRiskPredictor 构造 RiskPredictor
func NewRiskPredictor(gdb *gorm.DB, students *StudentRepository, assessor *RiskAssessor, timeout time.Duration) *RiskPredictor {
	if timeout <= 0 {
		timeout = DefaultPredictionTimeout
	}
	return &RiskPredictor{
		db:        gdb,
		students:  students,
		assessor:  assessor,
		publisher: events.NopPublisher{},
		timeout:   timeout,
		states:    make(map[string]*PredictionState),
	}
}

// SetWarehouse 设置预测审计表的写入目标。
func (p *RiskPredictor) SetWarehouse(w *analytics.Warehouse) { p.warehouse = w }

// SetPublisher 设置事件发布器。
func (p *RiskPredictor) SetPublisher(pub events.Publisher) {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	p.publisher = pub
}

// SetMetrics 设置指标收集器。
func (p *RiskPredictor) SetMetrics(m *metrics.Metrics) { p.metrics = m }

// Summary 从学生数据生成特征摘要
func (p *RiskPredictor) Summary(code string) (scoring.FeatureSummary, error) {
	data, err := p.students.Load(code)
	if err != nil {
		return scoring.FeatureSummary{}, err
	}
	return summaryFromData(data), nil
}

// Predict 为学生生成风险预测。除学生不存在外不会返回错误。
func (p *RiskPredictor) Predict(ctx context.Context, code string) (*Prediction, error) {
	data, err := p.students.Load(code)
	if err != nil {
		return nil, err
	}
	summary := summaryFromData(data)
	seq := p.begin(code)

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		result     *AssessResult
		failureMsg string
	)
	if p.assessor == nil {
		err = ErrAIAPIKeyMissing
	} else {
		result, err = p.assessor.Assess(callCtx, summary)
	}
	if err != nil {
		reason := fallbackReason(callCtx, err)
		failureMsg = err.Error()
		result = &AssessResult{
			Assessment:     scoring.FallbackAssessment(summary),
			Source:         SourceFallback,
			FallbackReason: reason,
		}
	}
	if result.Source == SourceFallback {
		p.metrics.AIFallback(result.FallbackReason)
	}
	p.metrics.RiskPrediction(result.Source, string(result.RiskLevel))

	prediction := &Prediction{
		AssessResult: *result,
		StudentID:    data.Profile.ID,
		Sequence:     seq,
		PredictedAt:  time.Now().UTC(),
	}

	if p.finish(code, seq, prediction, failureMsg) {
		p.record(ctx, data.Profile.ID, prediction)
	}
	return prediction, nil
}

// State 返回学生最近一次预测的状态
func (p *RiskPredictor) State(code string) (PredictionState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.states[code]
	if !ok {
		return PredictionState{}, false
	}
	return *state, true
}

// Latest 返回数据库中最近一次保存的预测
func (p *RiskPredictor) Latest(code string) (*db.RiskAssessment, error) {
	student, err := p.students.Resolve(code)
	if err != nil {
		return nil, err
	}
	var row db.RiskAssessment
	if err := p.db.Where("student_id = ?", student.ID).Order("created_at DESC, id DESC").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load latest assessment: %w", err)
	}
	return &row, nil
}

func (p *RiskPredictor) begin(code string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sequence++
	state := &PredictionState{Status: PredictionPending, Sequence: p.sequence, UpdatedAt: time.Now().UTC()}
	if previous, ok := p.states[code]; ok {
		state.Result = previous.Result
	}
	p.states[code] = state
	return p.sequence
}

// finish 只在序号仍是最新时写入状态，返回是否写入。
func (p *RiskPredictor) finish(code string, seq uint64, prediction *Prediction, failureMsg string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.states[code]
	if !ok || state.Sequence != seq {
		return false
	}
	state.Result = prediction
	state.UpdatedAt = time.Now().UTC()
	if failureMsg != "" {
		state.Status = PredictionFailure
		state.Message = failureMsg
	} else {
		state.Status = PredictionSuccess
		state.Message = ""
	}
	return true
}

func (p *RiskPredictor) record(ctx context.Context, code string, prediction *Prediction) {
	if err := p.store(code, prediction); err != nil {
		logServiceError("RISK", "store assessment", err)
	}

	if p.warehouse != nil {
		row := analytics.RiskPredictionRow{
			StudentID:      code,
			PredictionDate: prediction.PredictedAt,
			RiskLevel:      string(prediction.RiskLevel),
			Confidence:     modelConfidence,
			Factors:        strings.Join(prediction.Recommendations, "; "),
			ModelVersion:   prediction.Model,
		}
		if prediction.Source == SourceFallback {
			row.Confidence = fallbackConfidence
			row.ModelVersion = fallbackModelVersion
		}
		if err := p.warehouse.StoreRiskPrediction(ctx, row); err != nil {
			logServiceError("RISK", "write prediction history", err)
		}
	}

	events.PublishBestEffort(ctx, p.publisher, events.TypeRiskAssessed, code, map[string]interface{}{
		"riskLevel": prediction.RiskLevel,
		"source":    prediction.Source,
		"sequence":  prediction.Sequence,
	})
}

func (p *RiskPredictor) store(code string, prediction *Prediction) error {
	student, err := p.students.Resolve(code)
	if err != nil {
		return err
	}
	recommendations, err := json.Marshal(prediction.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	subjectRisks, err := json.Marshal(prediction.SubjectRisks)
	if err != nil {
		return fmt.Errorf("encode subject risks: %w", err)
	}

	row := db.RiskAssessment{
		StudentID:       student.ID,
		RiskLevel:       string(prediction.RiskLevel),
		Source:          prediction.Source,
		FallbackReason:  prediction.FallbackReason,
		Explanation:     prediction.Explanation,
		Recommendations: datatypes.JSON(recommendations),
		SubjectRisks:    datatypes.JSON(subjectRisks),
		Sequence:        prediction.Sequence,
	}
	if err := p.db.Create(&row).Error; err != nil {
		return fmt.Errorf("create risk assessment: %w", err)
	}
	return nil
}

func summaryFromData(data StudentData) scoring.FeatureSummary {
	summary := scoring.SummarizeFeatures(data.Subjects, data.Assignments, scoring.LatestWellBeing(data.WellBeing))
	summary.Name = data.Profile.Name
	summary.Course = data.Profile.Course
	summary.Semester = data.Profile.Semester
	return summary
}

func fallbackReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, ErrInvalidFeatures):
		return "invalid_data"
	case errors.Is(err, ErrAIAPIKeyMissing):
		return FallbackNoAPIKey
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return FallbackTimeout
	}
	if _, ok := AsUpstreamError(err); ok {
		return FallbackUpstream
	}
	return FallbackUnknown
}
