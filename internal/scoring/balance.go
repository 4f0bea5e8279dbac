package scoring

import "math"

// BalanceStatus 描述学业负荷与身心状态之间的平衡。
type BalanceStatus string

const (
	BalanceBalanced     BalanceStatus = "balanced"
	BalanceOverloaded   BalanceStatus = "overloaded"
	BalanceUnderEngaged BalanceStatus = "under-engaged"
)

const defaultSubScore = 50

// BalanceBreakdown 是四个 0-100 子分。
type BalanceBreakdown struct {
	Attendance int `json:"attendance"`
	Stress     int `json:"stress"`
	Sleep      int `json:"sleep"`
	Engagement int `json:"engagement"`
}

// BalanceResult 是平衡度仪表的输出。
type BalanceResult struct {
	Score     int              `json:"score"`
	Status    BalanceStatus    `json:"status"`
	Breakdown BalanceBreakdown `json:"breakdown"`
}

// BalanceMeter 是启发式评分，不是统计模型。
//
// 子分：出勤取 min(最新出勤,100)；压力反转为 (5-stress)*20；睡眠为 sleep*20；
// 参与度为作业完成百分比。缺少自评时压力和睡眠取 50，作业为空时参与度取 50。
// 总分为四项均值四舍五入。
//
// 状态判定按顺序，先命中者生效：
// 压力子分 <40 且总分 <60 为 overloaded；否则出勤 <70 且参与度 <50 为 under-engaged；否则 balanced。
func BalanceMeter(latestAttendance float64, wellBeing *WellBeingRecord, assignments []Assignment) BalanceResult {
	attendanceScore := ClampPercent(latestAttendance)

	stressScore := float64(defaultSubScore)
	sleepScore := float64(defaultSubScore)
	if wellBeing != nil {
		stressScore = float64(clampScore((5 - wellBeing.Stress) * 20))
		sleepScore = float64(clampScore(wellBeing.Sleep * 20))
	}

	engagementScore := float64(defaultSubScore)
	if len(assignments) > 0 {
		done := len(assignments) - PendingAssignments(assignments)
		engagementScore = float64(done) / float64(len(assignments)) * 100
	}

	// 阈值比较使用未取整的子分，只有输出取整
	overall := int(math.Round((attendanceScore + stressScore + sleepScore + engagementScore) / 4))

	status := BalanceBalanced
	switch {
	case stressScore < 40 && overall < 60:
		status = BalanceOverloaded
	case attendanceScore < 70 && engagementScore < 50:
		status = BalanceUnderEngaged
	}

	return BalanceResult{
		Score:  overall,
		Status: status,
		Breakdown: BalanceBreakdown{
			Attendance: roundScore(attendanceScore),
			Stress:     roundScore(stressScore),
			Sleep:      roundScore(sleepScore),
			Engagement: roundScore(engagementScore),
		},
	}
}

func roundScore(v float64) int {
	return int(math.Round(v))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
