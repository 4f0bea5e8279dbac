package scoring

import "math"

// CorrelationWindow 是参与相关性分析的最近记录数。
const CorrelationWindow = 6

const insightThreshold = 0.3

// Insight 是一条面向学生的相关性解读。
type Insight struct {
	Metric   string `json:"metric"`
	Text     string `json:"text"`
	Positive bool   `json:"positive"`
}

// CorrelationResult 汇总三组相关系数与解读。
type CorrelationResult struct {
	MoodAttendance  float64   `json:"moodAttendance"`
	SleepAttendance float64   `json:"sleepAttendance"`
	StressMarks     float64   `json:"stressMarks"`
	SampleSize      int       `json:"sampleSize"`
	Insights        []Insight `json:"insights"`
}

// Pearson 计算皮尔逊相关系数。
// 长度不等、样本少于 2 或任一序列无方差时返回 0。
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}

	var sumX, sumY, sumXX, sumYY, sumXY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
		sumXX += x[i] * x[i]
		sumYY += y[i] * y[i]
		sumXY += x[i] * y[i]
	}

	fn := float64(n)
	num := sumXY - sumX*sumY/fn
	den := math.Sqrt((sumXX - sumX*sumX/fn) * (sumYY - sumY*sumY/fn))
	if den == 0 || math.IsNaN(den) {
		return 0
	}

	r := num / den
	return math.Max(-1, math.Min(1, r))
}

// AlignedSample 是同一天的身心自评与学业数据。
type AlignedSample struct {
	Date       string
	WellBeing  WellBeingRecord
	Attendance float64
	Marks      float64
}

// AlignByDate 按日期而非位置对齐三条序列，只保留三者都有记录的日期，
// 结果按身心记录顺序排列，并截取最近 window 条（window<=0 表示不截取）。
func AlignByDate(wellBeing []WellBeingRecord, attendance []AttendanceRecord, marks []MarksRecord, window int) []AlignedSample {
	attendanceByDate := make(map[string]float64, len(attendance))
	for _, record := range attendance {
		attendanceByDate[record.Date] = record.Percentage
	}
	marksByDate := make(map[string]float64, len(marks))
	for _, record := range marks {
		marksByDate[record.Date] = record.Average
	}

	samples := make([]AlignedSample, 0, len(wellBeing))
	for _, record := range wellBeing {
		att, okAtt := attendanceByDate[record.Date]
		mark, okMarks := marksByDate[record.Date]
		if !okAtt || !okMarks {
			continue
		}
		samples = append(samples, AlignedSample{Date: record.Date, WellBeing: record, Attendance: att, Marks: mark})
	}

	if window > 0 && len(samples) > window {
		samples = samples[len(samples)-window:]
	}
	return samples
}

// Correlate 计算心情↔出勤、睡眠↔出勤、反转压力↔成绩三组相关系数并生成解读。
func Correlate(samples []AlignedSample) CorrelationResult {
	mood := make([]float64, len(samples))
	sleep := make([]float64, len(samples))
	calm := make([]float64, len(samples))
	attendance := make([]float64, len(samples))
	marks := make([]float64, len(samples))

	for i, sample := range samples {
		mood[i] = float64(sample.WellBeing.Mood)
		sleep[i] = float64(sample.WellBeing.Sleep)
		calm[i] = float64(5 - sample.WellBeing.Stress)
		attendance[i] = sample.Attendance
		marks[i] = sample.Marks
	}

	result := CorrelationResult{
		MoodAttendance:  Pearson(mood, attendance),
		SleepAttendance: Pearson(sleep, attendance),
		StressMarks:     Pearson(calm, marks),
		SampleSize:      len(samples),
	}
	result.Insights = CorrelationInsights(result.MoodAttendance, result.SleepAttendance, result.StressMarks)
	return result
}

// CorrelateHistory 先按日期对齐最近 CorrelationWindow 条记录再计算相关性。
func CorrelateHistory(wellBeing []WellBeingRecord, attendance []AttendanceRecord, marks []MarksRecord) CorrelationResult {
	return Correlate(AlignByDate(wellBeing, attendance, marks, CorrelationWindow))
}

// CorrelationInsights 按固定阈值生成解读；无一命中时给出一条通用鼓励。
// 展示条数上限由前端控制。
func CorrelationInsights(moodAttendance, sleepAttendance, stressMarks float64) []Insight {
	insights := make([]Insight, 0, 3)

	switch {
	case sleepAttendance > insightThreshold:
		insights = append(insights, Insight{Metric: "sleep", Text: "Weeks with better sleep had higher attendance.", Positive: true})
	case sleepAttendance < -insightThreshold:
		insights = append(insights, Insight{Metric: "sleep", Text: "Sleep patterns may be affecting your attendance.", Positive: false})
	}

	if moodAttendance > insightThreshold {
		insights = append(insights, Insight{Metric: "mood", Text: "Better mood correlates with higher attendance.", Positive: true})
	}

	switch {
	case stressMarks > insightThreshold:
		insights = append(insights, Insight{Metric: "stress", Text: "Lower stress weeks show better marks.", Positive: true})
	case stressMarks < -insightThreshold:
		insights = append(insights, Insight{Metric: "stress", Text: "High stress may be impacting your performance.", Positive: false})
	}

	if len(insights) == 0 {
		insights = append(insights, Insight{Metric: "general", Text: "Keep tracking to see patterns between mood and academics!", Positive: true})
	}

	return insights
}
