package analytics

import (
	"context"
	"fmt"
)

// Features 是供模型使用的聚合特征。
type Features struct {
	AvgAttendance     float64 `json:"avgAttendance"`
	AvgMarks          float64 `json:"avgMarks"`
	AvgMood           float64 `json:"avgMood"`
	AvgStress         float64 `json:"avgStress"`
	AvgSleep          float64 `json:"avgSleep"`
	InterventionCount int     `json:"interventionCount"`
}

// Features 汇总某个学生的全部历史：出勤取到课率，成绩取百分比均值，
// 身心取各项均值。没有数据的项为 0。
func (w *Warehouse) Features(ctx context.Context, studentID string) (Features, error) {
	var result Features

	attendance, err := w.AttendanceHistory(ctx, studentID, 0)
	if err != nil {
		return result, fmt.Errorf("load attendance features: %w", err)
	}
	marks, err := w.MarksHistory(ctx, studentID, 0)
	if err != nil {
		return result, fmt.Errorf("load marks features: %w", err)
	}
	wellBeing, err := w.WellBeingHistory(ctx, studentID, 0)
	if err != nil {
		return result, fmt.Errorf("load wellbeing features: %w", err)
	}
	interventions, err := w.Interventions(ctx, studentID, 0)
	if err != nil {
		return result, fmt.Errorf("load intervention features: %w", err)
	}

	if len(attendance) > 0 {
		present := 0
		for _, row := range attendance {
			if row.Status == "present" {
				present++
			}
		}
		result.AvgAttendance = float64(present) / float64(len(attendance)) * 100
	}

	if len(marks) > 0 {
		var sum float64
		for _, row := range marks {
			sum += row.Score / row.MaxScore * 100
		}
		result.AvgMarks = sum / float64(len(marks))
	}

	if len(wellBeing) > 0 {
		var mood, stress, sleep float64
		for _, row := range wellBeing {
			mood += float64(row.MoodScore)
			stress += float64(row.StressLevel)
			sleep += row.SleepHours
		}
		n := float64(len(wellBeing))
		result.AvgMood = mood / n
		result.AvgStress = stress / n
		result.AvgSleep = sleep / n
	}

	result.InterventionCount = len(interventions)
	return result, nil
}
