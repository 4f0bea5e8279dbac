package scoring

// MaxTips 是单次展示的建议条数上限。
const MaxTips = 3

// Tip 是一条身心调节建议。
type Tip struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TipsFor 根据自评给出最多 MaxTips 条建议，没有命中时返回一条鼓励。
func TipsFor(record WellBeingRecord) []Tip {
	tips := make([]Tip, 0, 4)

	if record.Stress > 3 {
		tips = append(tips, Tip{
			Key:         "breathing",
			Title:       "Quick Breathing",
			Description: "Try 4-7-8 breathing: inhale 4s, hold 7s, exhale 8s. Repeat 3 times.",
		})
	}
	if record.Sleep < 3 {
		tips = append(tips, Tip{
			Key:         "sleep",
			Title:       "Sleep Hygiene",
			Description: "Aim for 7-8 hours. Avoid screens 30 mins before bed.",
		})
	}
	if record.Motivation < 3 {
		tips = append(tips, Tip{
			Key:         "pomodoro",
			Title:       "Pomodoro Technique",
			Description: "Study 25 mins, break 5 mins. Makes tasks feel manageable!",
		})
	}
	if record.Mood < 3 {
		tips = append(tips, Tip{
			Key:         "self-care",
			Title:       "Self-Care Moment",
			Description: "Take a short walk or listen to your favorite song. Small joys matter!",
		})
	}

	if len(tips) == 0 {
		return []Tip{{
			Key:         "great",
			Title:       "You're Doing Great!",
			Description: "Keep up the positive momentum. Consider sharing your strategies with peers!",
		}}
	}
	if len(tips) > MaxTips {
		tips = tips[:MaxTips]
	}
	return tips
}
