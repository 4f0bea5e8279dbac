package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/analytics"
	"github.com/studentpulse/internal/scoring"
	"github.com/studentpulse/internal/service"
)

type predictRiskRequest struct {
	StudentData *scoring.FeatureSummary `json:"studentData" binding:"required"`
}

// PredictRisk 评估请求体 studentData 中的特征摘要，上游错误按状态码透传。
func (a *API) PredictRisk(c *gin.Context) {
	var req predictRiskRequest
	if !bindJSON(c, &req, "Invalid student data") {
		return
	}

	result, err := a.assessor.Assess(c.Request.Context(), *req.StudentData)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFeatures) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		if upstream, ok := service.AsUpstreamError(err); ok {
			switch upstream.Kind {
			case service.UpstreamRateLimited:
				respondError(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			case service.UpstreamQuota:
				respondError(c, http.StatusPaymentRequired, "AI credits exhausted. Please add credits.")
				return
			}
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":           err.Error(),
			"riskLevel":       scoring.RiskMedium,
			"explanation":     "Unable to analyze - using default assessment",
			"recommendations": []string{"Please try again later"},
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// PredictStudentRisk 基于学生已保存的数据生成预测，失败时返回规则兜底结果。
func (a *API) PredictStudentRisk(c *gin.Context) {
	prediction, err := a.predictor.Predict(c.Request.Context(), studentCodeParam(c))
	if err != nil {
		handleServiceError(c, err, "Failed to predict risk")
		return
	}
	c.JSON(http.StatusOK, prediction)
}

// GetPredictionState 返回最近一次预测的状态。
func (a *API) GetPredictionState(c *gin.Context) {
	state, ok := a.predictor.State(studentCodeParam(c))
	if !ok {
		respondError(c, http.StatusNotFound, "No prediction has been requested")
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetLatestAssessment 返回最近一次持久化的评估。
func (a *API) GetLatestAssessment(c *gin.Context) {
	latest, err := a.predictor.Latest(studentCodeParam(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load assessment")
		return
	}
	if latest == nil {
		respondError(c, http.StatusNotFound, "No assessment recorded")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"riskLevel":       latest.RiskLevel,
		"source":          latest.Source,
		"fallbackReason":  latest.FallbackReason,
		"explanation":     latest.Explanation,
		"recommendations": json.RawMessage(nonEmptyJSON(latest.Recommendations)),
		"subjectRisks":    json.RawMessage(nonEmptyJSON(latest.SubjectRisks)),
		"sequence":        latest.Sequence,
		"assessedAt":      latest.CreatedAt,
	})
}

// GetStudentAnalytics 返回历史聚合特征与最近的预测记录。
func (a *API) GetStudentAnalytics(c *gin.Context) {
	ctx := c.Request.Context()
	code := studentCodeParam(c)
	if _, err := a.students.Resolve(code); err != nil {
		handleServiceError(c, err, "Failed to load analytics")
		return
	}

	features, err := a.warehouse.Features(ctx, code)
	if err != nil {
		handleServiceError(c, err, "Failed to load analytics")
		return
	}
	predictions, err := a.warehouse.RiskPredictionHistory(ctx, code, parseLimitQuery(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load analytics")
		return
	}
	wellBeing, err := a.warehouse.WellBeingHistory(ctx, code, parseLimitQuery(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load analytics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"features":    features,
		"predictions": predictions,
		"wellBeing":   wellBeing,
	})
}

// IngestAttendance 批量写入出勤明细。
func (a *API) IngestAttendance(c *gin.Context) {
	var rows []analytics.AttendanceRow
	if !bindJSON(c, &rows, "Invalid attendance rows") {
		return
	}
	inserted, err := a.warehouse.InsertAttendance(c.Request.Context(), rows...)
	if err != nil {
		handleServiceError(c, err, "Failed to store attendance")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"inserted": inserted})
}

// IngestMarks 批量写入成绩明细。
func (a *API) IngestMarks(c *gin.Context) {
	var rows []analytics.MarksRow
	if !bindJSON(c, &rows, "Invalid marks rows") {
		return
	}
	inserted, err := a.warehouse.InsertMarks(c.Request.Context(), rows...)
	if err != nil {
		handleServiceError(c, err, "Failed to store marks")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"inserted": inserted})
}

func nonEmptyJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("[]")
	}
	return raw
}
