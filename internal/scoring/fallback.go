package scoring

import "math"

// 以下阈值是提供给语言模型的分档标准，与 CalculateRiskLevel 的加权阶梯是两套独立规则。
const (
	PromptLowAttendance  = 75
	PromptLowMarks       = 60
	PromptLowPending     = 2
	PromptHighAttendance = 60
	PromptHighMarks      = 40
	PromptHighPending    = 5
)

// SubjectFeature 是特征摘要中的单科数据。
type SubjectFeature struct {
	Name               string  `json:"name" validate:"required,max=120"`
	Attendance         float64 `json:"attendance" validate:"gte=0,lte=100"`
	Marks              float64 `json:"marks" validate:"gte=0,lte=100"`
	PendingAssignments int     `json:"pendingAssignments" validate:"gte=0,lte=50"`
}

// WellBeingFeature 是最近一次自评；字段为 nil 表示没有数据。
type WellBeingFeature struct {
	Mood   *int `json:"mood,omitempty" validate:"omitempty,gte=1,lte=5"`
	Stress *int `json:"stress,omitempty" validate:"omitempty,gte=1,lte=5"`
	Sleep  *int `json:"sleep,omitempty" validate:"omitempty,gte=1,lte=5"`
}

// FeatureSummary 是发送给风险预测的学生特征摘要。
type FeatureSummary struct {
	Name                    string            `json:"name" validate:"max=120"`
	Course                  string            `json:"course" validate:"max=120"`
	Semester                int               `json:"semester" validate:"omitempty,gte=1,lte=10"`
	Subjects                []SubjectFeature  `json:"subjects" validate:"max=30,dive"`
	OverallAttendance       float64           `json:"overallAttendance" validate:"gte=0,lte=100"`
	AverageMarks            float64           `json:"averageMarks" validate:"gte=0,lte=100"`
	TotalPendingAssignments int               `json:"totalPendingAssignments" validate:"gte=0,lte=50"`
	WellBeing               *WellBeingFeature `json:"wellbeing,omitempty"`
}

// SubjectRiskAssessment 是单科的风险判断与原因。
type SubjectRiskAssessment struct {
	Subject string    `json:"subject"`
	Risk    RiskLevel `json:"risk"`
	Reason  string    `json:"reason"`
}

// Assessment 是风险预测结果，模型输出与规则兜底共用此结构。
type Assessment struct {
	RiskLevel       RiskLevel               `json:"riskLevel"`
	Explanation     string                  `json:"explanation"`
	Recommendations []string                `json:"recommendations"`
	SubjectRisks    []SubjectRiskAssessment `json:"subjectRisks"`
}

// Normalize 补齐空切片并校正未知等级，返回 false 表示等级无法识别。
func (a *Assessment) Normalize() bool {
	if a.Recommendations == nil {
		a.Recommendations = []string{}
	}
	if a.SubjectRisks == nil {
		a.SubjectRisks = []SubjectRiskAssessment{}
	}
	return a.RiskLevel.Valid()
}

// SummarizeFeatures 从科目、作业和最新自评生成特征摘要。
// 总体出勤与平均成绩取各科均值四舍五入；单科待交作业为 total-done。
func SummarizeFeatures(subjects []SubjectData, assignments []Assignment, wellBeing *WellBeingRecord) FeatureSummary {
	summary := FeatureSummary{
		Subjects:                make([]SubjectFeature, 0, len(subjects)),
		TotalPendingAssignments: PendingAssignments(assignments),
	}

	var attendanceSum, marksSum float64
	for _, subject := range subjects {
		pending := subject.TotalAssignments - subject.AssignmentsDone
		if pending < 0 {
			pending = 0
		}
		summary.Subjects = append(summary.Subjects, SubjectFeature{
			Name:               subject.Name,
			Attendance:         subject.Attendance,
			Marks:              subject.InternalMarks,
			PendingAssignments: pending,
		})
		attendanceSum += subject.Attendance
		marksSum += subject.InternalMarks
	}
	if n := float64(len(subjects)); n > 0 {
		summary.OverallAttendance = math.Round(attendanceSum / n)
		summary.AverageMarks = math.Round(marksSum / n)
	}

	if wellBeing != nil {
		mood, stress, sleep := wellBeing.Mood, wellBeing.Stress, wellBeing.Sleep
		summary.WellBeing = &WellBeingFeature{Mood: &mood, Stress: &stress, Sleep: &sleep}
	}
	return summary
}

// FallbackRiskLevel 按模型提示中的分档标准判断等级。
// 出勤为 0 视为 75，成绩为 0 视为 60。
func FallbackRiskLevel(summary FeatureSummary) RiskLevel {
	attendance, marks, pending := fallbackInputs(summary)
	switch {
	case attendance < PromptHighAttendance || marks < PromptHighMarks || pending > PromptHighPending:
		return RiskHigh
	case attendance < PromptLowAttendance || marks < PromptLowMarks || pending > PromptLowPending:
		return RiskMedium
	default:
		return RiskLow
	}
}

// FallbackAssessment 是模型不可用时的规则兜底，总是返回完整结果。
func FallbackAssessment(summary FeatureSummary) Assessment {
	attendance, marks, pending := fallbackInputs(summary)
	level := FallbackRiskLevel(summary)

	result := Assessment{
		RiskLevel:       level,
		Recommendations: []string{},
		SubjectRisks:    make([]SubjectRiskAssessment, 0, len(summary.Subjects)),
	}

	switch level {
	case RiskHigh:
		result.Explanation = "Critical attention needed - multiple academic indicators are concerning."
		if attendance < PromptHighAttendance {
			result.Recommendations = append(result.Recommendations, "Improve attendance immediately - attend all classes this week")
		}
		if marks < PromptHighMarks {
			result.Recommendations = append(result.Recommendations, "Schedule extra tutoring sessions for weak subjects")
		}
		if pending > PromptHighPending {
			result.Recommendations = append(result.Recommendations, "Create a priority list and complete assignments one by one")
		}
	case RiskMedium:
		result.Explanation = "Some areas need attention to prevent falling behind."
		if attendance < PromptLowAttendance {
			result.Recommendations = append(result.Recommendations, "Aim to attend 2-3 more classes this month")
		}
		if marks < PromptLowMarks {
			result.Recommendations = append(result.Recommendations, "Review study methods and seek help in challenging subjects")
		}
		if pending > PromptLowPending {
			result.Recommendations = append(result.Recommendations, "Set deadlines to complete pending assignments this week")
		}
	default:
		result.Explanation = "Student is performing well academically."
		result.Recommendations = append(result.Recommendations,
			"Keep up the good work!",
			"Consider helping peers who may need support",
		)
	}

	for _, subject := range summary.Subjects {
		result.SubjectRisks = append(result.SubjectRisks, fallbackSubjectRisk(subject))
	}
	return result
}

func fallbackSubjectRisk(subject SubjectFeature) SubjectRiskAssessment {
	risk := RiskLow
	switch {
	case subject.Attendance < PromptHighAttendance || subject.Marks < PromptHighMarks:
		risk = RiskHigh
	case subject.Attendance < PromptLowAttendance || subject.Marks < PromptLowMarks:
		risk = RiskMedium
	}

	reason := "Good performance"
	switch {
	case subject.Attendance < PromptLowAttendance:
		reason = "Low attendance"
	case subject.Marks < PromptLowMarks:
		reason = "Low marks"
	}

	return SubjectRiskAssessment{Subject: subject.Name, Risk: risk, Reason: reason}
}

func fallbackInputs(summary FeatureSummary) (float64, float64, int) {
	attendance := summary.OverallAttendance
	if attendance == 0 {
		attendance = PromptLowAttendance
	}
	marks := summary.AverageMarks
	if marks == 0 {
		marks = PromptLowMarks
	}
	return attendance, marks, summary.TotalPendingAssignments
}
